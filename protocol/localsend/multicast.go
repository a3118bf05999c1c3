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
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Marandi269/unidrop/core"
)

const (
	multicastAddr = "224.0.0.167:53317"
	// deviceIdleTimeout is how long a device can go unobserved on the
	// multicast group before multicastDiscovery synthesizes a DeviceLost
	// for it. Multicast announcements carry no "goodbye" message, unlike
	// mDNS's ServiceRemoved, so this is the only eviction signal available
	// here (SPEC_FULL.md §6.2).
	deviceIdleTimeout = 15 * time.Second
	idleSweepInterval = 5 * time.Second
)

var announceDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

// multicastDiscovery owns the UDP multicast socket used for both announcing
// this device and observing others.
type multicastDiscovery struct {
	log     *slog.Logger
	info    DeviceInfo
	onEvent func(core.Event)

	mu      sync.Mutex
	lastSeen map[string]time.Time
	devices  map[string]core.Device

	conn *net.UDPConn
}

func newMulticastDiscovery(log *slog.Logger, info DeviceInfo, onEvent func(core.Event)) *multicastDiscovery {
	return &multicastDiscovery{
		log:      log.With("component", "multicast"),
		info:     info,
		onEvent:  onEvent,
		lastSeen: make(map[string]time.Time),
		devices:  make(map[string]core.Device),
	}
}

func (m *multicastDiscovery) start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return core.WrapNetwork(err, "resolve multicast address")
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return core.WrapNetwork(err, "join multicast group")
	}
	conn.SetReadBuffer(1 << 20)
	m.conn = conn

	go m.listen(ctx)
	go m.announceLoop(ctx)
	go m.sweepLoop(ctx)
	return nil
}

func (m *multicastDiscovery) stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

func (m *multicastDiscovery) announceLoop(ctx context.Context) {
	for _, d := range announceDelays {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
			m.announce()
		}
	}
}

func (m *multicastDiscovery) announce() {
	m.sendDTO(true, "write announcement")
}

// sendDTO marshals and writes a MulticastDto carrying this device's info to
// the multicast group, with Announcement/Announce set to isAnnouncement.
func (m *multicastDiscovery) sendDTO(isAnnouncement bool, writeErrMsg string) {
	dto := MulticastDto{
		Alias:        m.info.Alias,
		Version:      m.info.Version,
		DeviceModel:  m.info.DeviceModel,
		DeviceType:   m.info.DeviceType,
		Fingerprint:  m.info.Fingerprint,
		Port:         m.info.Port,
		Protocol:     "https",
		Download:     m.info.Download,
		Announcement: isAnnouncement,
		Announce:     isAnnouncement,
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		m.log.Error("marshal multicast dto", "error", err)
		return
	}

	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		m.log.Error("resolve multicast address", "error", err)
		return
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		m.log.Error("dial multicast group", "error", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		m.log.Error(writeErrMsg, "error", err)
	}
}

func (m *multicastDiscovery) listen(ctx context.Context) {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, src, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		m.handlePacket(buf[:n], src)
	}
}

func (m *multicastDiscovery) handlePacket(data []byte, src *net.UDPAddr) {
	var dto MulticastDto
	if err := json.Unmarshal(data, &dto); err != nil {
		return
	}
	if dto.Fingerprint == m.info.Fingerprint {
		return // our own announcement, looped back
	}
	isAnnouncement := dto.Announcement || dto.Announce

	localID := deviceIDFromFingerprint(dto.Fingerprint)
	dev := core.Device{
		ID:          core.NewDeviceID(core.ProtocolLocalSend, localID),
		Name:        dto.Alias,
		DeviceType:  core.DeviceType(dto.DeviceType),
		Address:     src.IP.String(),
		Port:        dto.Port,
		Fingerprint: dto.Fingerprint,
	}

	m.mu.Lock()
	_, known := m.devices[localID]
	m.devices[localID] = dev
	m.lastSeen[localID] = time.Now()
	m.mu.Unlock()

	if known {
		m.onEvent(core.NewDeviceUpdatedEvent(core.ProtocolLocalSend, dev))
	} else {
		m.onEvent(core.NewDeviceFoundEvent(core.ProtocolLocalSend, dev))
	}

	// An announcement asks recipients to reply so both ends converge on
	// knowing about each other without each having to send its own burst
	// (SPEC_FULL.md §4.6): reply once, with announce=false, so the reply
	// itself doesn't solicit a reply back.
	if isAnnouncement {
		m.reply()
	}
}

// reply sends a non-announcement MulticastDto to the multicast group,
// answering an inbound announcement in kind.
func (m *multicastDiscovery) reply() {
	dto := MulticastDto{
		Alias:        m.info.Alias,
		Version:      m.info.Version,
		DeviceModel:  m.info.DeviceModel,
		DeviceType:   m.info.DeviceType,
		Fingerprint:  m.info.Fingerprint,
		Port:         m.info.Port,
		Protocol:     "https",
		Download:     m.info.Download,
		Announcement: false,
		Announce:     false,
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		m.log.Error("marshal reply", "error", err)
		return
	}

	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		m.log.Error("resolve multicast address", "error", err)
		return
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		m.log.Error("dial multicast group", "error", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		m.log.Error("write reply", "error", err)
	}
}

func (m *multicastDiscovery) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(idleSweepInterval)
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

func (m *multicastDiscovery) sweep() {
	now := time.Now()
	var lost []core.Device

	m.mu.Lock()
	for id, seen := range m.lastSeen {
		if now.Sub(seen) > deviceIdleTimeout {
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

func (m *multicastDiscovery) snapshot() []core.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out
}

func deviceIDFromFingerprint(fp string) string {
	clean := make([]byte, 0, len(fp))
	for i := 0; i < len(fp) && len(clean) < 32; i++ {
		if fp[i] != ':' {
			clean = append(clean, fp[i])
		}
	}
	return string(clean)
}
