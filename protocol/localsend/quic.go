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
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/Marandi269/unidrop/core"
)

// quicChunkSize matches the HTTPS path's implicit chunking: io.Copy on the
// HTTP body already streams in similarly sized reads, and this is the size
// LocalSend's own QUIC transport uses.
const quicChunkSize = 64 * 1024

// Frame types on a quic.Stream. The first stream a connection opens is the
// control stream and only ever carries transferRequest/transferResponse/
// transferComplete frames; every later stream is a per-file data stream
// opened with a header frame and followed by chunk/done frames.
const (
	frameTransferRequest  = "transfer_request"
	frameTransferResponse = "transfer_response"
	frameHeader           = "header"
	frameChunk            = "chunk"
	frameDone             = "done"
	frameTransferComplete = "transfer_complete"
)

// quicFrame is the single message envelope on a stream, length-prefixed
// (4-byte big-endian length, then JSON) rather than relying on QUIC stream
// framing, so a frame boundary is always unambiguous even though Data can
// span up to quicChunkSize bytes. Payload carries the control-stream
// negotiation structs (quicTransferRequest/quicTransferResponse); the other
// fields carry per-file header/chunk data.
type quicFrame struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"sessionId,omitempty"`
	FileID      string          `json:"fileId,omitempty"`
	FileName    string          `json:"fileName,omitempty"`
	Size        int64           `json:"size,omitempty"`
	Token       string          `json:"token,omitempty"`
	ChunkIndex  int             `json:"chunkIndex,omitempty"`
	TotalChunks int             `json:"totalChunks,omitempty"`
	Data        []byte          `json:"data,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// quicTransferRequest is the control-stream negotiation payload a sender
// opens with. It mirrors PrepareUploadRequest but adds a Pin field, since
// QUIC streams have no query string to carry one out of band the way the
// HTTPS prepare-upload endpoint does.
type quicTransferRequest struct {
	Info  DeviceInfo         `json:"info"`
	Files map[string]FileDto `json:"files"`
	Pin   string             `json:"pin,omitempty"`
}

// quicTransferResponse answers a quicTransferRequest. Accepted is false and
// Files is empty when the receiver declines the transfer outright (bad
// PIN); per-file tokens are only handed out on acceptance.
type quicTransferResponse struct {
	SessionID string            `json:"sessionId,omitempty"`
	Files     map[string]string `json:"files,omitempty"` // fileID -> token
	Accepted  bool              `json:"accepted"`
	Reason    string            `json:"reason,omitempty"`
}

func writeFrame(w io.Writer, f quicFrame) error {
	payload, err := json.Marshal(f)
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

func readFrame(r io.Reader) (quicFrame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return quicFrame{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return quicFrame{}, err
	}
	var f quicFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		return quicFrame{}, err
	}
	return f, nil
}

func chunkCount(size int64) int {
	if size == 0 {
		return 0
	}
	return int((size + quicChunkSize - 1) / quicChunkSize)
}

// quicSession tracks the per-file tokens issued during a control-stream
// negotiation and the bytes received so far for each, mirroring
// uploadSession's role on the HTTPS path. One quicSession exists per QUIC
// connection, since a connection carries exactly one negotiated transfer.
type quicSession struct {
	id       string
	fromName string
	files    map[string]FileDto // fileID -> metadata
	tokens   map[string]string  // fileID -> token

	mu       sync.Mutex
	received map[string]int64 // fileID -> bytes written
}

// quicServer accepts LocalSend's alternate QUIC transport on httpPort+1. The
// first stream on each connection negotiates the transfer (SPEC_FULL.md
// §4.10); subsequent streams each carry one token-bearing file.
type quicServer struct {
	log      *slog.Logger
	certInfo *CertInfo
	saveDir  string
	pin      string
	onEvent  func(core.Event)

	ln *quic.Listener
}

func newQUICServer(log *slog.Logger, certInfo *CertInfo, saveDir, pin string, onEvent func(core.Event)) *quicServer {
	return &quicServer{
		log:      log.With("component", "quic"),
		certInfo: certInfo,
		saveDir:  saveDir,
		pin:      pin,
		onEvent:  onEvent,
	}
}

func (q *quicServer) start(ctx context.Context, port int) error {
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{q.certInfo.Cert},
		NextProtos:   []string{"unidrop-localsend"},
	}
	ln, err := quic.ListenAddr(fmt.Sprintf(":%d", port), tlsConf, nil)
	if err != nil {
		return core.WrapNetwork(err, "listen quic")
	}
	q.ln = ln

	go q.acceptLoop(ctx)
	return nil
}

func (q *quicServer) stop() error {
	if q.ln == nil {
		return nil
	}
	return q.ln.Close()
}

func (q *quicServer) acceptLoop(ctx context.Context) {
	for {
		conn, err := q.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("accept quic connection", "error", err)
			continue
		}
		go q.handleConn(ctx, conn)
	}
}

// handleConn negotiates the transfer on the connection's first stream, then
// accepts one further stream per file until the connection closes.
func (q *quicServer) handleConn(ctx context.Context, conn quic.Connection) {
	control, err := conn.AcceptStream(ctx)
	if err != nil {
		return
	}
	sess, ok := q.negotiate(control)
	if !ok {
		control.Close()
		return
	}
	go q.watchControl(control, sess)

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go q.handleFileStream(stream, sess)
	}
}

// negotiate reads the control stream's transfer_request frame, applies PIN
// gating the same way handlePrepareUpload does on the HTTPS path, and
// replies with a transfer_response carrying one token per accepted file.
func (q *quicServer) negotiate(control quic.Stream) (*quicSession, bool) {
	frame, err := readFrame(control)
	if err != nil || frame.Type != frameTransferRequest {
		q.log.Error("quic control stream missing transfer_request", "error", err)
		return nil, false
	}
	var req quicTransferRequest
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		q.log.Error("unmarshal quic transfer_request", "error", err)
		return nil, false
	}

	if q.pin != "" && req.Pin != q.pin {
		q.respond(control, quicTransferResponse{Reason: "invalid pin"})
		return nil, false
	}

	sessionID := uuid.NewString()
	sess := &quicSession{
		id:       sessionID,
		fromName: req.Info.Alias,
		files:    req.Files,
		tokens:   make(map[string]string, len(req.Files)),
		received: make(map[string]int64, len(req.Files)),
	}

	transferReq := core.TransferRequest{
		ID:       sessionID,
		From:     core.NewDeviceID(core.ProtocolLocalSend, deviceIDFromFingerprint(req.Info.Fingerprint)),
		FromName: req.Info.Alias,
		Received: time.Now(),
	}
	resp := quicTransferResponse{SessionID: sessionID, Accepted: true, Files: make(map[string]string, len(req.Files))}
	for id, f := range req.Files {
		token := uuid.NewString()
		sess.tokens[id] = token
		resp.Files[id] = token
		transferReq.Files = append(transferReq.Files, core.FileInfo{ID: id, Name: f.FileName, Size: f.Size})
	}
	transferReq.TotalSize = core.SumFileSizes(transferReq.Files)

	if err := q.respond(control, resp); err != nil {
		q.log.Error("write quic transfer_response", "error", err)
		return nil, false
	}
	q.onEvent(core.NewTransferRequestEvent(core.ProtocolLocalSend, transferReq))
	return sess, true
}

func (q *quicServer) respond(control quic.Stream, resp quicTransferResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFrame(control, quicFrame{Type: frameTransferResponse, SessionID: resp.SessionID, Payload: payload})
}

// watchControl waits for the sender's closing transfer_complete frame and
// reports the session as done; it never itself gates individual file
// streams, which validate their own tokens independently.
func (q *quicServer) watchControl(control quic.Stream, sess *quicSession) {
	defer control.Close()
	for {
		frame, err := readFrame(control)
		if err != nil {
			return
		}
		if frame.Type == frameTransferComplete {
			q.onEvent(core.NewTransferProgressEvent(core.ProtocolLocalSend, core.TransferProgress{
				SessionID: sess.id,
				State:     core.TransferStateCompleted,
			}))
			return
		}
	}
}

// handleFileStream reads one file off a data stream. A stream whose header
// frame carries no matching token is a stream the negotiation never
// authorized; it's dropped with a warning rather than failing every other
// file in the transfer.
func (q *quicServer) handleFileStream(stream quic.Stream, sess *quicSession) {
	defer stream.Close()

	header, err := readFrame(stream)
	if err != nil || header.Type != frameHeader {
		q.log.Error("quic stream missing header frame", "error", err)
		return
	}
	if header.Token == "" || sess.tokens[header.FileID] != header.Token {
		q.log.Warn("quic file stream token mismatch, dropping", "fileId", header.FileID)
		return
	}
	meta := sess.files[header.FileID]

	dest := filepath.Join(q.saveDir, filepath.Base(header.FileName))
	out, err := os.Create(dest)
	if err != nil {
		q.log.Error("create file", "error", err, "path", dest)
		return
	}
	defer out.Close()

	var received int64
	for {
		frame, err := readFrame(stream)
		if err != nil {
			if err == io.EOF {
				return
			}
			q.log.Error("read quic chunk", "error", err)
			return
		}
		if frame.Type == frameDone {
			return
		}
		if frame.Type != frameChunk {
			continue
		}
		if _, err := out.Write(frame.Data); err != nil {
			q.log.Error("write chunk", "error", err)
			return
		}
		received += int64(len(frame.Data))

		sess.mu.Lock()
		sess.received[header.FileID] = received
		sess.mu.Unlock()

		state := core.TransferStateInProgress
		if frame.ChunkIndex+1 == frame.TotalChunks {
			state = core.TransferStateCompleted
		}
		q.onEvent(core.NewTransferProgressEvent(core.ProtocolLocalSend, core.TransferProgress{
			SessionID:   sess.id,
			State:       state,
			CurrentFile: header.FileName,
			BytesSent:   received,
			BytesTotal:  meta.Size,
		}))
	}
}

// quicClient sends files over LocalSend's alternate QUIC transport,
// negotiating a session on a control stream before opening one data stream
// per file.
type quicClient struct {
	info DeviceInfo
	pin  string
}

func newQUICClient(info DeviceInfo, pin string) *quicClient {
	return &quicClient{info: info, pin: pin}
}

func (c *quicClient) send(ctx context.Context, dev core.Device, files []core.FileInfo) (string, error) {
	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{"unidrop-localsend"}}
	addr := fmt.Sprintf("%s:%d", dev.Address, dev.Port+1)
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return "", core.WrapNetwork(err, "dial quic")
	}
	defer conn.CloseWithError(0, "done")

	control, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return "", core.WrapNetwork(err, "open quic control stream")
	}
	defer control.Close()

	req := quicTransferRequest{Info: c.info, Pin: c.pin, Files: make(map[string]FileDto, len(files))}
	for _, f := range files {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		req.Files[id] = FileDto{ID: id, FileName: f.Name, Size: f.Size, FileType: guessMimeType(f.Name)}
	}
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return "", core.NewInternalError("marshal quic transfer_request: %v", err)
	}
	if err := writeFrame(control, quicFrame{Type: frameTransferRequest, Payload: reqPayload}); err != nil {
		return "", core.WrapNetwork(err, "write quic transfer_request")
	}

	respFrame, err := readFrame(control)
	if err != nil {
		return "", core.WrapNetwork(err, "read quic transfer_response")
	}
	if respFrame.Type != frameTransferResponse {
		return "", core.NewNetworkError("unexpected quic frame type %q, want %q", respFrame.Type, frameTransferResponse)
	}
	var resp quicTransferResponse
	if err := json.Unmarshal(respFrame.Payload, &resp); err != nil {
		return "", core.NewInternalError("unmarshal quic transfer_response: %v", err)
	}
	if !resp.Accepted {
		return "", core.NewRejectedError(resp.Reason)
	}

	for id, f := range req.Files {
		token, ok := resp.Files[id]
		if !ok {
			continue // remote declined this particular file
		}
		if err := c.sendFile(ctx, conn, f, token, files); err != nil {
			return resp.SessionID, err
		}
	}

	writeFrame(control, quicFrame{Type: frameTransferComplete, SessionID: resp.SessionID})
	return resp.SessionID, nil
}

func (c *quicClient) sendFile(ctx context.Context, conn quic.Connection, meta FileDto, token string, files []core.FileInfo) error {
	var path string
	for _, f := range files {
		if f.Name == meta.FileName {
			path = f.Path
			break
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return core.NewFileNotFoundError(path)
	}
	defer f.Close()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return core.WrapNetwork(err, "open quic stream")
	}
	defer stream.Close()

	total := chunkCount(meta.Size)
	if err := writeFrame(stream, quicFrame{
		Type: frameHeader, FileID: meta.ID, FileName: meta.FileName, Size: meta.Size, Token: token, TotalChunks: total,
	}); err != nil {
		return core.WrapNetwork(err, "write quic header")
	}

	buf := make([]byte, quicChunkSize)
	index := 0
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if ferr := writeFrame(stream, quicFrame{
				Type: frameChunk, FileID: meta.ID, ChunkIndex: index, TotalChunks: total,
				Data: append([]byte(nil), buf[:n]...),
			}); ferr != nil {
				return core.WrapNetwork(ferr, "write quic chunk")
			}
			index++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.WrapIO(err, "read %s", path)
		}
	}
	return writeFrame(stream, quicFrame{Type: frameDone, FileID: meta.ID})
}
