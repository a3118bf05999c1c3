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

package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceID_StringIncludesProtocol(t *testing.T) {
	id := NewDeviceID(ProtocolLocalSend, "abc123")
	require.Equal(t, "localsend:abc123", id.String())
}

func TestDeviceID_SameLocalDifferentProtocolNotEqual(t *testing.T) {
	a := NewDeviceID(ProtocolLocalSend, "same")
	b := NewDeviceID(ProtocolP2P, "same")
	require.NotEqual(t, a, b)
}

func TestDeviceID_IsZero(t *testing.T) {
	require.True(t, DeviceID{}.IsZero())
	require.False(t, NewDeviceID(ProtocolLocalSend, "x").IsZero())
}
