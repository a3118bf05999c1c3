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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuessMimeType(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":    "image/jpeg",
		"notes.txt":    "text/plain",
		"archive.tar":  "application/x-tar",
		"unknown.xyz":  "application/octet-stream",
		"noextension":  "application/octet-stream",
	}
	for name, want := range cases {
		require.Equal(t, want, guessMimeType(name), name)
	}
}

func TestMulticastDto_CarriesBothAnnounceFields(t *testing.T) {
	dto := MulticastDto{Alias: "test", Announcement: true, Announce: true}
	data, err := json.Marshal(dto)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, true, decoded["announcement"])
	require.Equal(t, true, decoded["announce"])
}
