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

package localsend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCertInfo_FingerprintShape(t *testing.T) {
	info, err := GenerateCertInfo()
	require.NoError(t, err)

	parts := strings.Split(info.Fingerprint, ":")
	require.Len(t, parts, 32, "sha256 fingerprint should have 32 colon-separated bytes")
	for _, p := range parts {
		require.Len(t, p, 2)
		require.Equal(t, strings.ToUpper(p), p)
	}

	require.Len(t, info.DeviceID, 32)
	require.NotContains(t, info.DeviceID, ":")
}

func TestGenerateCertInfo_UniquePerCall(t *testing.T) {
	a, err := GenerateCertInfo()
	require.NoError(t, err)
	b, err := GenerateCertInfo()
	require.NoError(t, err)
	require.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestDeviceIDFromFingerprint(t *testing.T) {
	info, err := GenerateCertInfo()
	require.NoError(t, err)
	require.Equal(t, info.DeviceID, deviceIDFromFingerprint(info.Fingerprint))
}
