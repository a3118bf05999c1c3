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

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/Marandi269/unidrop/core"
)

// DefaultRelayServers are dialled at Start if a Config doesn't set
// RelayAddrs. The list is empty unless a caller fills it before Start
// (SPEC_FULL.md §4).
var DefaultRelayServers []string

// Config carries the p2p-specific settings layered on core.ProtocolConfig.
type Config struct {
	core.ProtocolConfig
	ListenAddrs []string
	RelayAddrs  []string
	Log         *slog.Logger
}

// Protocol is the core.Protocol implementation for the libp2p NAT-traversal
// transport.
type Protocol struct {
	cfg    Config
	log    *slog.Logger
	driver *Driver

	running bool
}

func New(cfg Config) (*Protocol, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Protocol{
		cfg:    cfg,
		log:    cfg.Log.With("component", "p2p"),
		driver: NewDriver(cfg.Log, cfg.DeviceName, cfg.SaveDir),
	}, nil
}

// DefaultListenAddrs returns TCP+QUIC multiaddrs on port. Factory (and
// unidropd's p2p registration) use it to derive ListenAddrs from a non-zero
// ProtocolConfig.Port, so the same --port flag that configures LocalSend's
// HTTPS port also reaches this protocol's transport. A Config with no
// ListenAddrs leaves the choice to libp2p's own defaults.
func DefaultListenAddrs(port int) []string {
	return []string{
		fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port),
		fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", port),
	}
}

// Factory adapts New to core.ProtocolFactory. cfg.Port, when non-zero,
// seeds ListenAddrs via DefaultListenAddrs; callers needing relay addresses
// (unreachable through the bare ProtocolConfig) should build a Config
// directly and call New instead of registering this Factory.
func Factory(cfg core.ProtocolConfig) (core.Protocol, error) {
	pcfg := Config{ProtocolConfig: cfg}
	if cfg.Port != 0 {
		pcfg.ListenAddrs = DefaultListenAddrs(cfg.Port)
	}
	return New(pcfg)
}

func (p *Protocol) Info() core.ProtocolInfo {
	return core.ProtocolInfo{
		ID:          core.ProtocolP2P,
		Name:        "P2P",
		Description: "libp2p NAT traversal via Circuit Relay v2 and DCUtR",
		Priority:    50,
	}
}

func (p *Protocol) Start(ctx context.Context) error {
	listenAddrs, err := parseMultiaddrs(p.cfg.ListenAddrs)
	if err != nil {
		return core.NewConfigError("parse listen addrs: %v", err)
	}
	relays := p.cfg.RelayAddrs
	if len(relays) == 0 {
		relays = DefaultRelayServers
	}
	relayAddrs, err := parseMultiaddrs(relays)
	if err != nil {
		return core.NewConfigError("parse relay addrs: %v", err)
	}
	if err := p.driver.Start(ctx, listenAddrs, relayAddrs); err != nil {
		return err
	}
	p.running = true
	return nil
}

func (p *Protocol) Stop(ctx context.Context) error {
	p.running = false
	return p.driver.Stop()
}

func (p *Protocol) IsRunning() bool { return p.running }

func (p *Protocol) Devices() []core.Device { return p.driver.Devices() }

func (p *Protocol) Device(id core.DeviceID) (core.Device, bool) {
	pid, err := peer.Decode(id.Local)
	if err != nil {
		return core.Device{}, false
	}
	return p.driver.Device(pid)
}

// Scan is a no-op: p2p discovery happens through explicit Dial or an
// out-of-band address exchange, not an active scan.
func (p *Protocol) Scan(ctx context.Context) error { return nil }

func (p *Protocol) Send(ctx context.Context, intent core.TransferIntent) (string, error) {
	return p.driver.Send(ctx, intent)
}

func (p *Protocol) SendQUIC(ctx context.Context, intent core.TransferIntent) (string, error) {
	return "", core.NewProtocolNotSupportedError(string(core.ProtocolP2P), "quic")
}

// Accept/Reject are no-ops: the driver accepts every inbound FileRequest
// unconditionally, answering it right after publishing the TransferRequest
// event without waiting for a caller. See SPEC_FULL.md §6.1.
func (p *Protocol) Accept(ctx context.Context, requestID string) error { return nil }
func (p *Protocol) Reject(ctx context.Context, requestID string) error { return nil }

func (p *Protocol) Cancel(ctx context.Context, sessionID string) error {
	return nil
}

func (p *Protocol) Subscribe(ctx context.Context) (<-chan core.Event, error) {
	return p.driver.Subscribe(ctx), nil
}

// Dial connects to a peer at a known multiaddr and records it as a device,
// the p2p equivalent of LocalSend's passive discovery.
func (p *Protocol) Dial(ctx context.Context, addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return core.NewConfigError("parse multiaddr %q: %v", addr, err)
	}
	if err := p.driver.Dial(ctx, ma); err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return core.NewConfigError("parse multiaddr %q: %v", addr, err)
	}
	p.driver.RememberDevice(core.Device{
		ID:          core.NewDeviceID(core.ProtocolP2P, info.ID.String()),
		Name:        info.ID.String(),
		Fingerprint: info.ID.String(),
	})
	return nil
}

func parseMultiaddrs(addrs []string) ([]multiaddr.Multiaddr, error) {
	out := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			return nil, err
		}
		out = append(out, ma)
	}
	return out, nil
}
