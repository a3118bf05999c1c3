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
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/Marandi269/unidrop/core"
)

const (
	mdnsServiceType = "_localsend._tcp"
	mdnsDomain      = "local."
	mdnsIdleTimeout = 30 * time.Second
)

// mdnsDiscovery registers our own _localsend._tcp.local. service and
// browses for peers advertising the same service.
//
// grandcat/zeroconf's Browse stream reports entries it resolves; it does
// not surface an explicit "service removed" event the way the original
// implementation's mDNS library did (that implementation received such an
// event and dropped it on the floor rather than emitting DeviceLost — see
// SPEC_FULL.md §6.2). Since neither side gives us a removal signal here, we
// track last-seen time per entry and evict on an idle timer, same as
// multicastDiscovery.
type mdnsDiscovery struct {
	log     *slog.Logger
	info    DeviceInfo
	onEvent func(core.Event)

	server *zeroconf.Server

	mu       sync.Mutex
	lastSeen map[string]time.Time
	devices  map[string]core.Device
}

func newMDNSDiscovery(log *slog.Logger, info DeviceInfo, onEvent func(core.Event)) *mdnsDiscovery {
	return &mdnsDiscovery{
		log:      log.With("component", "mdns"),
		info:     info,
		onEvent:  onEvent,
		lastSeen: make(map[string]time.Time),
		devices:  make(map[string]core.Device),
	}
}

func (m *mdnsDiscovery) start(ctx context.Context) error {
	txt := []string{
		fmt.Sprintf("fingerprint=%s", m.info.Fingerprint),
		fmt.Sprintf("deviceType=%s", m.info.DeviceType),
		fmt.Sprintf("protocol=%s", m.info.Protocol),
	}
	server, err := zeroconf.Register(m.info.Alias, mdnsServiceType, mdnsDomain, m.info.Port, txt, nil)
	if err != nil {
		return core.WrapNetwork(err, "register mdns service")
	}
	m.server = server

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		server.Shutdown()
		return core.WrapNetwork(err, "create mdns resolver")
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go m.consume(entries)
	if err := resolver.Browse(ctx, mdnsServiceType, mdnsDomain, entries); err != nil {
		return core.WrapNetwork(err, "browse mdns")
	}

	go m.sweepLoop(ctx)
	return nil
}

func (m *mdnsDiscovery) stop() error {
	if m.server != nil {
		m.server.Shutdown()
	}
	return nil
}

func (m *mdnsDiscovery) consume(entries <-chan *zeroconf.ServiceEntry) {
	for entry := range entries {
		m.handleEntry(entry)
	}
}

func (m *mdnsDiscovery) handleEntry(entry *zeroconf.ServiceEntry) {
	fingerprint := lookupTXT(entry.Text, "fingerprint")
	if fingerprint == "" || fingerprint == m.info.Fingerprint {
		return
	}
	deviceType := lookupTXT(entry.Text, "deviceType")

	addr := ""
	if len(entry.AddrIPv4) > 0 {
		addr = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		addr = entry.AddrIPv6[0].String()
	}

	localID := deviceIDFromFingerprint(fingerprint)
	dev := core.Device{
		ID:          core.NewDeviceID(core.ProtocolLocalSend, localID),
		Name:        entry.Instance,
		DeviceType:  core.DeviceType(deviceType),
		Address:     addr,
		Port:        entry.Port,
		Fingerprint: fingerprint,
	}

	m.mu.Lock()
	_, known := m.devices[localID]
	m.devices[localID] = dev
	m.lastSeen[localID] = time.Now()
	m.mu.Unlock()

	if !known {
		m.onEvent(core.NewDeviceFoundEvent(core.ProtocolLocalSend, dev))
	}
}

func (m *mdnsDiscovery) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(mdnsIdleTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *mdnsDiscovery) sweep() {
	now := time.Now()
	var lost []core.Device

	m.mu.Lock()
	for id, seen := range m.lastSeen {
		if now.Sub(seen) > mdnsIdleTimeout {
			if dev, ok := m.devices[id]; ok {
				lost = append(lost, dev)
			}
			delete(m.lastSeen, id)
			delete(m.devices, id)
		}
	}
	m.mu.Unlock()

	for _, dev := range lost {
		m.onEvent(core.NewDeviceLostEvent(core.ProtocolLocalSend, dev))
	}
}

func (m *mdnsDiscovery) snapshot() []core.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out
}

func lookupTXT(txt []string, key string) string {
	prefix := key + "="
	for _, e := range txt {
		if strings.HasPrefix(e, prefix) {
			return strings.TrimPrefix(e, prefix)
		}
	}
	return ""
}
