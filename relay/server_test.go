/*
Copyright 2026 The UniDrop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 4001, cfg.Port)
	require.Equal(t, int64(100*1024*1024), cfg.MaxCircuitBytes)
	require.Equal(t, 10*time.Minute, cfg.MaxCircuitDuration)
	require.NotNil(t, cfg.Log)
}

func TestNew_PeerIDEmptyBeforeStart(t *testing.T) {
	s := New(DefaultConfig())
	require.Equal(t, "", s.PeerID())
}
