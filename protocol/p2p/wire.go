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

// Package p2p implements the libp2p-based NAT-traversal transport: identify
// and ping for liveness, Circuit Relay v2 plus DCUtR for reaching peers
// behind NATs, and two CBOR request/response sub-protocols for the
// transfer handshake and chunked file data.
package p2p

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// FileProtocolID carries FileRequest/FileResponse: the transfer
	// handshake (what files, how big, accept or not).
	FileProtocolID protocol.ID = "/unidrop/file/1.0.0"
	// DataProtocolID carries ChunkRequest/ChunkResponse: the actual file
	// bytes, one chunk at a time.
	DataProtocolID protocol.ID = "/unidrop/data/1.0.0"

	identifyAgent = "/unidrop/1.0.0"

	// ChunkSize matches the LocalSend transport's own chunking so both
	// protocols share one mental model of "a chunk."
	ChunkSize = 64 * 1024

	maxFrameSize = ChunkSize + 4096 // chunk payload plus CBOR/envelope overhead
)

// FileMeta describes one file offered in a FileRequest.
type FileMeta struct {
	ID   string `cbor:"id"`
	Name string `cbor:"name"`
	Size int64  `cbor:"size"`
}

// FileRequest is sent over FileProtocolID to announce an incoming transfer.
type FileRequest struct {
	SessionID string     `cbor:"session_id"`
	FromName  string     `cbor:"from_name"`
	Files     []FileMeta `cbor:"files"`
}

// FileResponse answers a FileRequest. The driver's send path waits for
// Accepted before it starts pushing chunks; the reference implementation
// this is modelled on skipped that wait entirely.
type FileResponse struct {
	SessionID string `cbor:"session_id"`
	Accepted  bool   `cbor:"accepted"`
	Reason    string `cbor:"reason,omitempty"`
}

// ChunkRequest carries one file chunk. The sender waits for a matching
// ChunkResponse before sending ChunkIndex+1 (strict ack-then-next-chunk
// discipline — see behaviour.go).
type ChunkRequest struct {
	SessionID   string `cbor:"session_id"`
	FileID      string `cbor:"file_id"`
	ChunkIndex  int    `cbor:"chunk_index"`
	TotalChunks int    `cbor:"total_chunks"`
	Data        []byte `cbor:"data"`
}

// ChunkResponse acknowledges a ChunkRequest.
type ChunkResponse struct {
	SessionID  string `cbor:"session_id"`
	FileID     string `cbor:"file_id"`
	ChunkIndex int    `cbor:"chunk_index"`
	OK         bool   `cbor:"ok"`
	Err        string `cbor:"err,omitempty"`
}

// writeCBORFrame writes a length-prefixed CBOR-encoded message, mirroring
// the framing convention already used for the LocalSend QUIC transport so
// both packages read the same on the wire even though the payload codec
// differs.
func writeCBORFrame(w io.Writer, v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readCBORFrame(r *bufio.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return io.ErrShortBuffer
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return cbor.Unmarshal(payload, v)
}

func chunkCount(size int64) int {
	if size == 0 {
		return 0
	}
	return int((size + ChunkSize - 1) / ChunkSize)
}
