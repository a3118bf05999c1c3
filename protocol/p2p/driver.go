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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	circuit "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/client"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/Marandi269/unidrop/core"
)

// command is the driver's request type for operations that need the
// event-loop goroutine to serialize them with relay-reservation state. Plain
// connection dials (Dial) call the libp2p host directly since go-libp2p's
// host is already safe for concurrent use; Send and LocalPeerID queries go
// through this channel because they interact with the driver's own
// session/reservation bookkeeping.
type command struct {
	kind    commandKind
	ctx     context.Context
	intent  core.TransferIntent
	resultS chan string
	resultP chan peer.ID
	resultE chan error
}

type commandKind int

const (
	cmdSendRequest commandKind = iota
	cmdGetLocalPeerID
)

// receiveState tracks an inbound transfer's progress writing chunks to
// disk. Unlike the implementation this package's design is grounded on,
// which acknowledged chunks but never persisted them, the driver here
// writes each chunk as it arrives and closes the file once
// chunkIndex+1 == totalChunks.
type receiveState struct {
	file   *os.File
	fileID string
	size   int64
	total  int
}

// Driver runs the single event loop that owns the libp2p host and its
// relay reservations. Send and LocalPeerID go through that loop's command
// channel; Dial calls the host directly (see command), and the device and
// subscriber methods use the driver's own locks.
type Driver struct {
	log *slog.Logger
	b   *behaviour

	deviceName string
	saveDir    string

	cmds   chan command
	cancel context.CancelFunc

	mu         sync.Mutex
	devices    map[peer.ID]core.Device
	reservedTo *peer.ID // relay we successfully reserved through ("first relay wins", SPEC_FULL.md §6.3)

	recvMu   sync.Mutex
	receives map[string]*receiveState // sessionID|fileID -> state

	subsMu  sync.Mutex
	subs    map[int]chan core.Event
	nextSub int
}

func NewDriver(log *slog.Logger, deviceName, saveDir string) *Driver {
	return &Driver{
		log:        log.With("component", "p2p-driver"),
		deviceName: deviceName,
		saveDir:    saveDir,
		cmds:       make(chan command),
		devices:    make(map[peer.ID]core.Device),
		receives:   make(map[string]*receiveState),
		subs:       make(map[int]chan core.Event),
	}
}

// Start builds the libp2p host, registers stream handlers, dials every
// relay address concurrently, and begins servicing commands. relayAddrs may
// be empty, in which case the driver only accepts direct/relayed inbound
// connections without advertising a reservation of its own.
func (d *Driver) Start(ctx context.Context, listenAddrs, relayAddrs []multiaddr.Multiaddr) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	b, err := newHost(runCtx, d.log, listenAddrs, d.handleFileRequest, d.handleChunk)
	if err != nil {
		cancel()
		return core.WrapNetwork(err, "create libp2p host")
	}
	d.b = b

	go d.run(runCtx)
	go b.pingLoop(runCtx)

	for _, addr := range relayAddrs {
		addr := addr
		go d.reserveRelay(runCtx, addr)
	}
	return nil
}

func (d *Driver) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.b != nil {
		return d.b.close()
	}
	return nil
}

func (d *Driver) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.cmds:
			d.dispatch(ctx, cmd)
		}
	}
}

func (d *Driver) dispatch(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdGetLocalPeerID:
		cmd.resultP <- d.b.host.ID()
	case cmdSendRequest:
		// Sends run on their own goroutine rather than blocking run's
		// select loop: a 60s request timeout or a slow chunk-ack
		// shouldn't stall unrelated GetLocalPeerID/Send calls queued
		// behind it.
		sendCtx := cmd.ctx
		if sendCtx == nil {
			sendCtx = ctx
		}
		go func() {
			sid, err := d.doSend(sendCtx, cmd.intent)
			cmd.resultS <- sid
			cmd.resultE <- err
		}()
	}
}

// reserveRelay dials addr and requests a Circuit Relay v2 reservation. Only
// the first relay to complete a reservation is kept as d.reservedTo; later
// completions are logged and otherwise ignored (SPEC_FULL.md §6.3 resolves
// the original design's ambiguity here explicitly).
func (d *Driver) reserveRelay(ctx context.Context, addr multiaddr.Multiaddr) {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		d.log.Error("parse relay address", "error", err, "addr", addr)
		return
	}
	if err := d.b.host.Connect(ctx, *info); err != nil {
		d.log.Error("dial relay", "error", err, "peer", info.ID)
		return
	}
	if _, err := circuit.Reserve(ctx, d.b.host, *info); err != nil {
		d.log.Error("reserve relay slot", "error", err, "peer", info.ID)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reservedTo != nil {
		d.log.Info("relay reservation accepted but another relay already won", "peer", info.ID)
		return
	}
	d.reservedTo = &info.ID
	d.log.Info("relay reservation accepted", "peer", info.ID)
}

// LocalPeerID returns this host's peer ID.
func (d *Driver) LocalPeerID() peer.ID {
	resultP := make(chan peer.ID, 1)
	d.cmds <- command{kind: cmdGetLocalPeerID, resultP: resultP}
	return <-resultP
}

// Dial connects to the peer at addr.
func (d *Driver) Dial(ctx context.Context, addr multiaddr.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return core.WrapNetwork(err, "parse multiaddr")
	}
	if err := d.b.host.Connect(ctx, *info); err != nil {
		return core.WrapNetwork(err, "connect to peer")
	}
	return nil
}

// Send transmits intent's files to intent.Target over an already-connected
// peer, enforcing the full FileRequest/accepted/chunk-ack discipline.
func (d *Driver) Send(ctx context.Context, intent core.TransferIntent) (string, error) {
	resultS := make(chan string, 1)
	resultE := make(chan error, 1)
	d.cmds <- command{kind: cmdSendRequest, ctx: ctx, intent: intent, resultS: resultS, resultE: resultE}
	return <-resultS, <-resultE
}

func (d *Driver) doSend(ctx context.Context, intent core.TransferIntent) (string, error) {
	target, err := peer.Decode(intent.Target.Local)
	if err != nil {
		return "", core.NewConfigError("decode target peer id %q: %v", intent.Target.Local, err)
	}
	sessionID := uuid.NewString()

	req := FileRequest{SessionID: sessionID, FromName: d.deviceName}
	for _, f := range intent.Files {
		req.Files = append(req.Files, FileMeta{ID: f.ID, Name: f.Name, Size: f.Size})
	}

	resp, err := d.b.sendFileRequest(ctx, target, req)
	if err != nil {
		return sessionID, core.WrapNetwork(err, "send file request")
	}
	if !resp.Accepted {
		return sessionID, core.NewRejectedError("peer declined transfer: %s", resp.Reason)
	}

	for _, f := range intent.Files {
		if err := d.sendFileChunks(ctx, target, sessionID, f); err != nil {
			return sessionID, err
		}
	}
	return sessionID, nil
}

func (d *Driver) sendFileChunks(ctx context.Context, target peer.ID, sessionID string, file core.FileInfo) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return core.NewFileNotFoundError(file.Path)
	}
	defer f.Close()

	total := chunkCount(file.Size)
	buf := make([]byte, ChunkSize)
	index := 0
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			chunk := ChunkRequest{
				SessionID:   sessionID,
				FileID:      file.ID,
				ChunkIndex:  index,
				TotalChunks: total,
				Data:        append([]byte(nil), buf[:n]...),
			}
			resp, serr := d.b.sendChunk(ctx, target, chunk)
			if serr != nil {
				return core.WrapNetwork(serr, "send chunk %d of %s", index, file.Name)
			}
			if !resp.OK {
				return core.NewTransferFailedError("peer rejected chunk %d of %s: %s", index, file.Name, resp.Err)
			}
			sent := int64(index+1) * ChunkSize
			if sent > file.Size {
				sent = file.Size
			}
			d.broadcast(core.NewTransferProgressEvent(core.ProtocolP2P, core.TransferProgress{
				SessionID:   sessionID,
				State:       core.TransferStateInProgress,
				CurrentFile: file.Name,
				BytesSent:   sent,
				BytesTotal:  file.Size,
			}))
			index++
		}
		if rerr != nil {
			break
		}
	}
	return nil
}

// handleFileRequest auto-accepts every inbound transfer (SPEC_FULL.md
// §6.1) and prepares receive state for each file so subsequent chunks can
// be written as they arrive.
func (d *Driver) handleFileRequest(from peer.ID, req FileRequest) FileResponse {
	d.recvMu.Lock()
	for _, meta := range req.Files {
		dest := filepath.Join(d.saveDir, filepath.Base(meta.Name))
		f, err := os.Create(dest)
		if err != nil {
			d.log.Error("create receive file", "error", err, "path", dest)
			continue
		}
		d.receives[receiveKey(req.SessionID, meta.ID)] = &receiveState{
			file: f, fileID: meta.ID, size: meta.Size, total: chunkCount(meta.Size),
		}
	}
	d.recvMu.Unlock()

	files := toFileInfos(req.Files)
	d.broadcast(core.NewTransferRequestEvent(core.ProtocolP2P, core.TransferRequest{
		ID:        req.SessionID,
		From:      core.NewDeviceID(core.ProtocolP2P, from.String()),
		FromName:  req.FromName,
		Files:     files,
		TotalSize: core.SumFileSizes(files),
		Received:  time.Now(),
	}))

	return FileResponse{SessionID: req.SessionID, Accepted: true}
}

func (d *Driver) handleChunk(from peer.ID, req ChunkRequest) ChunkResponse {
	key := receiveKey(req.SessionID, req.FileID)
	d.recvMu.Lock()
	state, ok := d.receives[key]
	d.recvMu.Unlock()
	if !ok {
		return ChunkResponse{SessionID: req.SessionID, FileID: req.FileID, ChunkIndex: req.ChunkIndex, OK: false, Err: "unknown session"}
	}

	if _, err := state.file.Write(req.Data); err != nil {
		return ChunkResponse{SessionID: req.SessionID, FileID: req.FileID, ChunkIndex: req.ChunkIndex, OK: false, Err: err.Error()}
	}

	finished := req.ChunkIndex+1 == req.TotalChunks
	if finished {
		state.file.Close()
		d.recvMu.Lock()
		delete(d.receives, key)
		d.recvMu.Unlock()
	}

	progressState := core.TransferStateInProgress
	if finished {
		progressState = core.TransferStateCompleted
	}
	received := int64(req.ChunkIndex+1) * ChunkSize
	if received > state.size {
		received = state.size
	}
	d.broadcast(core.NewTransferProgressEvent(core.ProtocolP2P, core.TransferProgress{
		SessionID:  req.SessionID,
		State:      progressState,
		BytesSent:  received,
		BytesTotal: state.size,
	}))

	return ChunkResponse{SessionID: req.SessionID, FileID: req.FileID, ChunkIndex: req.ChunkIndex, OK: true}
}

func receiveKey(sessionID, fileID string) string {
	return fmt.Sprintf("%s/%s", sessionID, fileID)
}

func toFileInfos(files []FileMeta) []core.FileInfo {
	out := make([]core.FileInfo, len(files))
	for i, f := range files {
		out[i] = core.FileInfo{ID: f.ID, Name: f.Name, Size: f.Size}
	}
	return out
}

func (d *Driver) broadcast(ev core.Event) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
			d.log.Warn("dropping p2p event for slow subscriber", "kind", ev.Kind)
		}
	}
}

func (d *Driver) Subscribe(ctx context.Context) <-chan core.Event {
	ch := make(chan core.Event, 64)
	d.subsMu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch
	d.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		d.subsMu.Lock()
		if _, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(ch)
		}
		d.subsMu.Unlock()
	}()
	return ch
}

func (d *Driver) Devices() []core.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.Device, 0, len(d.devices))
	for _, dev := range d.devices {
		out = append(out, dev)
	}
	return out
}

func (d *Driver) Device(id peer.ID) (core.Device, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	return dev, ok
}

// RememberDevice records a peer as a known device, e.g. after a successful
// Dial or identify exchange. dev.ID.Local must be the peer id's base58 text
// form (peer.ID.String()), matching how every p2p DeviceID is constructed.
func (d *Driver) RememberDevice(dev core.Device) {
	pid, err := peer.Decode(dev.ID.Local)
	if err != nil {
		d.log.Error("remember device: invalid peer id", "id", dev.ID.Local, "error", err)
		return
	}
	d.mu.Lock()
	d.devices[pid] = dev
	d.mu.Unlock()
	d.broadcast(core.NewDeviceFoundEvent(core.ProtocolP2P, dev))
}
