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
	"context"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/holepunch"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"
	"github.com/multiformats/go-multiaddr"
)

const pingInterval = 15 * time.Second

// RequestTimeout bounds a single FileRequest/FileResponse round trip.
const RequestTimeout = 60 * time.Second

// ChunkAckTimeout bounds how long a sender waits for a ChunkResponse before
// treating the transfer as failed.
const ChunkAckTimeout = 30 * time.Second

// behaviour is the composite set of libp2p services UniDrop's host runs:
// identify (so peers learn our agent string and addresses), ping (a 15s
// liveness probe matching the original implementation's interval),
// holepunch/DCUtR (coordinated hole punching once a relayed connection
// exists), and the relay *client* side of Circuit Relay v2 (requested via
// libp2p.EnableRelay/EnableHolePunching at host construction rather than a
// separate behaviour struct, which is how go-libp2p's modular host wires
// these in instead of Rust's single NetworkBehaviour type).
type behaviour struct {
	host      host.Host
	identify  *identify.IDService
	ping      *ping.PingService
	holepunch *holepunch.Service
	log       *slog.Logger
}

// FileRequestHandler answers an inbound FileRequest synchronously.
type FileRequestHandler func(from peer.ID, req FileRequest) FileResponse

// ChunkHandler answers an inbound ChunkRequest synchronously, writing the
// chunk wherever the caller's transfer bookkeeping has it go.
type ChunkHandler func(from peer.ID, req ChunkRequest) ChunkResponse

func newHost(ctx context.Context, log *slog.Logger, listenAddrs []multiaddr.Multiaddr, onFileRequest FileRequestHandler, onChunk ChunkHandler) (*behaviour, error) {
	h, err := libp2p.New(
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
		libp2p.UserAgent(identifyAgent),
	)
	if err != nil {
		return nil, err
	}

	idService, err := identify.NewIDService(h, identify.UserAgent(identifyAgent))
	if err != nil {
		h.Close()
		return nil, err
	}
	idService.Start()

	pingService := ping.NewPingService(h)

	hpService, err := holepunch.NewService(h, idService, func() []multiaddr.Multiaddr { return nil })
	if err != nil {
		idService.Close()
		h.Close()
		return nil, err
	}

	b := &behaviour{host: h, identify: idService, ping: pingService, holepunch: hpService, log: log}
	b.registerHandlers(onFileRequest, onChunk)
	return b, nil
}

func (b *behaviour) registerHandlers(onFileRequest FileRequestHandler, onChunk ChunkHandler) {
	b.host.SetStreamHandler(FileProtocolID, func(s network.Stream) {
		defer s.Close()
		var req FileRequest
		r := bufio.NewReader(s)
		if err := readCBORFrame(r, &req); err != nil {
			b.log.Error("read file request", "error", err)
			return
		}
		resp := onFileRequest(s.Conn().RemotePeer(), req)
		if err := writeCBORFrame(s, resp); err != nil {
			b.log.Error("write file response", "error", err)
		}
	})

	b.host.SetStreamHandler(DataProtocolID, func(s network.Stream) {
		defer s.Close()
		var req ChunkRequest
		r := bufio.NewReader(s)
		if err := readCBORFrame(r, &req); err != nil {
			b.log.Error("read chunk request", "error", err)
			return
		}
		resp := onChunk(s.Conn().RemotePeer(), req)
		if err := writeCBORFrame(s, resp); err != nil {
			b.log.Error("write chunk response", "error", err)
		}
	})
}

// pingLoop actively pings every currently connected peer once per
// pingInterval, logging failures at debug level. The ping protocol handler
// itself answers inbound pings regardless of this loop; this side is what
// gives the connection a liveness signal matching the original's interval.
func (b *behaviour) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range b.host.Network().Peers() {
				pingCtx, cancel := context.WithTimeout(ctx, pingInterval)
				res := <-b.ping.Ping(pingCtx, p)
				cancel()
				if res.Error != nil {
					b.log.Debug("ping failed", "peer", p, "error", res.Error)
				}
			}
		}
	}
}

func (b *behaviour) close() error {
	b.holepunch.Close()
	b.identify.Close()
	return b.host.Close()
}

// sendFileRequest opens a fresh stream to target, writes req, and waits up
// to RequestTimeout for a FileResponse.
func (b *behaviour) sendFileRequest(ctx context.Context, target peer.ID, req FileRequest) (FileResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	s, err := b.host.NewStream(ctx, target, FileProtocolID)
	if err != nil {
		return FileResponse{}, err
	}
	defer s.Close()

	if err := writeCBORFrame(s, req); err != nil {
		return FileResponse{}, err
	}

	var resp FileResponse
	if dl, ok := ctx.Deadline(); ok {
		s.SetReadDeadline(dl)
	}
	if err := readCBORFrame(bufio.NewReader(s), &resp); err != nil {
		return FileResponse{}, err
	}
	return resp, nil
}

// sendChunk opens a fresh stream to target, writes req, and waits up to
// ChunkAckTimeout for a ChunkResponse.
func (b *behaviour) sendChunk(ctx context.Context, target peer.ID, req ChunkRequest) (ChunkResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ChunkAckTimeout)
	defer cancel()

	s, err := b.host.NewStream(ctx, target, DataProtocolID)
	if err != nil {
		return ChunkResponse{}, err
	}
	defer s.Close()

	if err := writeCBORFrame(s, req); err != nil {
		return ChunkResponse{}, err
	}

	var resp ChunkResponse
	if dl, ok := ctx.Deadline(); ok {
		s.SetReadDeadline(dl)
	}
	if err := readCBORFrame(bufio.NewReader(s), &resp); err != nil {
		return ChunkResponse{}, err
	}
	return resp, nil
}
