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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkCount_Boundaries(t *testing.T) {
	require.Equal(t, 0, chunkCount(0))
	require.Equal(t, 1, chunkCount(1))
	require.Equal(t, 1, chunkCount(quicChunkSize))
	require.Equal(t, 2, chunkCount(quicChunkSize+1))
	require.Equal(t, 2, chunkCount(2*quicChunkSize))
}

func TestQUICFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := quicFrame{Type: "chunk", FileID: "f1", ChunkIndex: 3, TotalChunks: 10, Data: []byte("hello")}

	require.NoError(t, writeFrame(&buf, want))
	got, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestQUICFrame_MultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	frames := []quicFrame{
		{Type: "header", FileName: "a.bin", Size: 10, TotalChunks: 1},
		{Type: "chunk", ChunkIndex: 0, TotalChunks: 1, Data: []byte("0123456789")},
		{Type: "done"},
	}
	for _, f := range frames {
		require.NoError(t, writeFrame(&buf, f))
	}
	for _, want := range frames {
		got, err := readFrame(&buf)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
