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

package p2p

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkCount_Boundaries(t *testing.T) {
	require.Equal(t, 0, chunkCount(0))
	require.Equal(t, 1, chunkCount(1))
	require.Equal(t, 1, chunkCount(ChunkSize))
	require.Equal(t, 2, chunkCount(ChunkSize+1))
	require.Equal(t, 2, chunkCount(2*ChunkSize))
}

func TestCBORFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := ChunkRequest{SessionID: "s1", FileID: "f1", ChunkIndex: 2, TotalChunks: 5, Data: []byte("payload")}

	require.NoError(t, writeCBORFrame(&buf, want))

	var got ChunkRequest
	require.NoError(t, readCBORFrame(bufio.NewReader(&buf), &got))
	require.Equal(t, want, got)
}

func TestCBORFrame_FileRequestResponse(t *testing.T) {
	var buf bytes.Buffer
	req := FileRequest{
		SessionID: "s2",
		FromName:  "laptop",
		Files:     []FileMeta{{ID: "f1", Name: "a.txt", Size: 10}},
	}
	require.NoError(t, writeCBORFrame(&buf, req))
	var gotReq FileRequest
	require.NoError(t, readCBORFrame(bufio.NewReader(&buf), &gotReq))
	require.Equal(t, req, gotReq)

	resp := FileResponse{SessionID: "s2", Accepted: true}
	require.NoError(t, writeCBORFrame(&buf, resp))
	var gotResp FileResponse
	require.NoError(t, readCBORFrame(bufio.NewReader(&buf), &gotResp))
	require.Equal(t, resp, gotResp)
}

func TestReceiveKey_IsUniquePerFile(t *testing.T) {
	require.NotEqual(t, receiveKey("s1", "f1"), receiveKey("s1", "f2"))
	require.NotEqual(t, receiveKey("s1", "f1"), receiveKey("s2", "f1"))
}

func TestToFileInfos(t *testing.T) {
	out := toFileInfos([]FileMeta{{ID: "a", Name: "a.txt", Size: 1}, {ID: "b", Name: "b.txt", Size: 2}})
	require.Len(t, out, 2)
	require.Equal(t, "a.txt", out[0].Name)
	require.Equal(t, int64(2), out[1].Size)
}
