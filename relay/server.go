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

// Package relay runs a standalone Circuit Relay v2 server: a libp2p host
// with no transfer protocols of its own, whose only job is helping two
// NATed UniDrop peers punch through to each other.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	rlsvc "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"

	"github.com/Marandi269/unidrop/core"
)

const identifyAgent = "/unidrop-relay/1.0.0"

// Config configures a relay Server.
type Config struct {
	Port               int
	ExternalAddr       string
	MaxCircuitBytes    int64
	MaxCircuitDuration time.Duration
	Log                *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Port:               4001,
		MaxCircuitBytes:    100 * 1024 * 1024,
		MaxCircuitDuration: 10 * time.Minute,
		Log:                slog.Default(),
	}
}

// Server is a relay-only libp2p host: identify, ping, and the Circuit Relay
// v2 server side, listening on TCP and QUIC on the same port.
type Server struct {
	cfg  Config
	log  *slog.Logger
	host host.Host
	rl   *rlsvc.Relay
	id   *identify.IDService
	ping *ping.PingService

	sub event.Subscription
}

func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Server{cfg: cfg, log: cfg.Log.With("component", "relay")}
}

func (s *Server) Start(ctx context.Context) error {
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(
			fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", s.cfg.Port),
			fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", s.cfg.Port),
		),
		libp2p.UserAgent(identifyAgent),
	)
	if err != nil {
		return core.WrapNetwork(err, "create relay host")
	}
	s.host = h

	resources := rlsvc.Resources{}
	resources.MaxCircuits = 128
	resources.BufferSize = 4096
	resources.Limit = &rlsvc.RelayLimit{
		Duration: s.cfg.MaxCircuitDuration,
		Data:     s.cfg.MaxCircuitBytes,
	}

	rl, err := rlsvc.New(h, rlsvc.WithResources(resources))
	if err != nil {
		h.Close()
		return core.WrapNetwork(err, "start relay service")
	}
	s.rl = rl

	idService, err := identify.NewIDService(h, identify.UserAgent(identifyAgent))
	if err != nil {
		rl.Close()
		h.Close()
		return core.WrapNetwork(err, "start identify service")
	}
	idService.Start()
	s.id = idService
	s.ping = ping.NewPingService(h)

	if s.cfg.ExternalAddr != "" {
		s.log.Info("external address configured", "addr", s.cfg.ExternalAddr)
	}

	s.log.Info("relay server listening",
		"peer_id", h.ID(),
		"port", s.cfg.Port,
		"max_circuit_bytes", s.cfg.MaxCircuitBytes,
		"max_circuit_duration", s.cfg.MaxCircuitDuration,
	)
	for _, addr := range h.Addrs() {
		s.log.Info("listen address", "addr", fmt.Sprintf("%s/p2p/%s", addr, h.ID()))
	}

	sub, err := h.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err == nil {
		s.sub = sub
		go s.logConnections(ctx)
	}
	return nil
}

func (s *Server) logConnections(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-s.sub.Out():
			if !ok {
				return
			}
			ev := e.(event.EvtPeerConnectednessChanged)
			s.log.Info("connection state changed", "peer", ev.Peer, "state", ev.Connectedness)
		}
	}
}

func (s *Server) Stop() error {
	if s.sub != nil {
		s.sub.Close()
	}
	if s.id != nil {
		s.id.Close()
	}
	if s.rl != nil {
		s.rl.Close()
	}
	if s.host != nil {
		return s.host.Close()
	}
	return nil
}

func (s *Server) PeerID() string {
	if s.host == nil {
		return ""
	}
	return s.host.ID().String()
}
