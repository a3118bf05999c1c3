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

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Marandi269/unidrop/core"
)

// fakeProtocol is a minimal core.Protocol used to exercise the engine
// without pulling in a real transport.
type fakeProtocol struct {
	id       core.ProtocolID
	priority int

	mu      sync.Mutex
	running bool
	devices []core.Device
	subs    []chan core.Event
}

func newFakeProtocol(id core.ProtocolID, priority int) *fakeProtocol {
	return &fakeProtocol{id: id, priority: priority}
}

func (f *fakeProtocol) Info() core.ProtocolInfo {
	return core.ProtocolInfo{ID: f.id, Name: string(f.id), Priority: f.priority}
}

func (f *fakeProtocol) Start(ctx context.Context) error {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}

func (f *fakeProtocol) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
	return nil
}

func (f *fakeProtocol) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeProtocol) Devices() []core.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Device(nil), f.devices...)
}

func (f *fakeProtocol) Device(id core.DeviceID) (core.Device, bool) {
	for _, d := range f.Devices() {
		if d.ID == id {
			return d, true
		}
	}
	return core.Device{}, false
}

func (f *fakeProtocol) Scan(ctx context.Context) error { return nil }

func (f *fakeProtocol) Send(ctx context.Context, intent core.TransferIntent) (string, error) {
	return "session-1", nil
}

func (f *fakeProtocol) SendQUIC(ctx context.Context, intent core.TransferIntent) (string, error) {
	return "", core.NewProtocolNotSupportedError(string(f.id), "quic")
}

func (f *fakeProtocol) Accept(ctx context.Context, requestID string) error { return nil }
func (f *fakeProtocol) Reject(ctx context.Context, requestID string) error { return nil }
func (f *fakeProtocol) Cancel(ctx context.Context, sessionID string) error { return nil }

func (f *fakeProtocol) Subscribe(ctx context.Context) (<-chan core.Event, error) {
	ch := make(chan core.Event, 8)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeProtocol) emit(ev core.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- ev
	}
}

func TestEngine_StartAggregatesDevices(t *testing.T) {
	proto := newFakeProtocol(core.ProtocolLocalSend, 10)
	proto.devices = []core.Device{{ID: core.NewDeviceID(core.ProtocolLocalSend, "abc"), Name: "phone"}}

	e := New(DefaultConfig())
	e.RegisterFactory(core.ProtocolLocalSend, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		return proto, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx))
	defer e.Stop(context.Background())

	devices := e.Devices()
	require.Len(t, devices, 1)
	require.Equal(t, "phone", devices[0].Name)
}

func TestEngine_SubscribeFansOutToMultipleSubscribers(t *testing.T) {
	proto := newFakeProtocol(core.ProtocolLocalSend, 10)

	e := New(DefaultConfig())
	e.RegisterFactory(core.ProtocolLocalSend, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		return proto, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(context.Background())

	sub1 := e.Subscribe(ctx)
	sub2 := e.Subscribe(ctx)

	dev := core.Device{ID: core.NewDeviceID(core.ProtocolLocalSend, "xyz"), Name: "laptop"}
	proto.emit(core.NewDeviceFoundEvent(core.ProtocolLocalSend, dev))

	timeout := time.After(time.Second)
	for _, ch := range []<-chan core.Event{sub1, sub2} {
		select {
		case ev := <-ch:
			require.Equal(t, core.EventDeviceFound, ev.Kind)
			require.Equal(t, "laptop", ev.Device.Name)
		case <-timeout:
			t.Fatal("timed out waiting for fanned-out event")
		}
	}
}

func TestEngine_SendRoutesByDeviceProtocol(t *testing.T) {
	proto := newFakeProtocol(core.ProtocolP2P, 5)

	e := New(DefaultConfig())
	e.RegisterFactory(core.ProtocolP2P, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		return proto, nil
	})

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(ctx)

	sessionID, err := e.Send(ctx, core.TransferIntent{
		Target: core.NewDeviceID(core.ProtocolP2P, "peer-1"),
	})
	require.NoError(t, err)
	require.Equal(t, "session-1", sessionID)
}

func TestEngine_SendUnknownProtocolFails(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.Send(context.Background(), core.TransferIntent{
		Target: core.NewDeviceID(core.ProtocolID("bluetooth"), "x"),
	})
	require.Error(t, err)
	require.Equal(t, core.CategoryProtocolNotFound, core.GetCategory(err))
}

func TestProtocolRegistry_BuildCachesInstance(t *testing.T) {
	r := NewProtocolRegistry()
	calls := 0
	r.Register(core.ProtocolLocalSend, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		calls++
		return newFakeProtocol(core.ProtocolLocalSend, 1), nil
	})

	p1, err := r.Build(core.ProtocolLocalSend, core.ProtocolConfig{})
	require.NoError(t, err)
	p2, err := r.Build(core.ProtocolLocalSend, core.ProtocolConfig{})
	require.NoError(t, err)

	require.Same(t, p1, p2)
	require.Equal(t, 1, calls)
}

func TestProtocolRegistry_InstancesSortedByPriority(t *testing.T) {
	r := NewProtocolRegistry()
	r.Register(core.ProtocolP2P, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		return newFakeProtocol(core.ProtocolP2P, 1), nil
	})
	r.Register(core.ProtocolLocalSend, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		return newFakeProtocol(core.ProtocolLocalSend, 10), nil
	})
	_, err := r.Build(core.ProtocolP2P, core.ProtocolConfig{})
	require.NoError(t, err)
	_, err = r.Build(core.ProtocolLocalSend, core.ProtocolConfig{})
	require.NoError(t, err)

	instances := r.Instances()
	require.Len(t, instances, 2)
	require.Equal(t, core.ProtocolLocalSend, instances[0].Info().ID)
	require.Equal(t, core.ProtocolP2P, instances[1].Info().ID)
}
