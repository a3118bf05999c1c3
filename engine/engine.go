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
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Marandi269/unidrop/core"
)

// Engine owns every registered protocol's lifecycle, aggregates their
// devices, and fans their events out to any number of subscribers.
//
// Event fan-out: the original implementation this engine is modelled on
// re-subscribed to each protocol independently on every Engine.Subscribe
// call, which meant a second subscriber silently stole events from the
// first (each protocol.Subscribe() returned a fresh single-shot channel
// rather than feeding a shared broadcast). Engine subscribes to each
// protocol exactly once, in Start, and republishes onto a dynamic set of
// subscriber channels so any number of callers can observe the same event
// stream.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	registry *ProtocolRegistry
	router   *TransferRouter

	mu   sync.Mutex
	subs map[int]chan core.Event
	next int

	pendingMu sync.Mutex
	pending   map[string]core.TransferRequest // requestID -> request

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	registry := NewProtocolRegistry()
	return &Engine{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "engine"),
		registry: registry,
		router:   NewTransferRouter(registry),
		subs:     make(map[int]chan core.Event),
		pending:  make(map[string]core.TransferRequest),
	}
}

// RegisterFactory adds a protocol factory without building it. Start will
// build every registered factory.
func (e *Engine) RegisterFactory(id core.ProtocolID, factory core.ProtocolFactory) {
	e.registry.Register(id, factory)
}

// Start builds every registered protocol factory, starts each instance, and
// begins forwarding its events to subscribers. If any protocol fails to
// build or start, Start stops the ones already started and returns the
// error.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	started := make([]core.Protocol, 0, len(e.registry.RegisteredIDs()))
	for _, id := range e.registry.RegisteredIDs() {
		p, err := e.registry.Build(id, e.cfg.ProtocolConfig)
		if err != nil {
			e.stopAll(ctx, started)
			cancel()
			return err
		}
		if err := p.Start(runCtx); err != nil {
			e.stopAll(ctx, started)
			cancel()
			return err
		}
		started = append(started, p)

		events, err := p.Subscribe(runCtx)
		if err != nil {
			e.stopAll(ctx, started)
			cancel()
			return err
		}
		e.wg.Add(1)
		go e.forward(runCtx, p.Info().ID, events)
	}
	return nil
}

func (e *Engine) forward(ctx context.Context, id core.ProtocolID, events <-chan core.Event) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == core.EventTransferRequest && ev.Request != nil {
				e.pendingMu.Lock()
				e.pending[ev.Request.ID] = *ev.Request
				e.pendingMu.Unlock()
			}
			e.broadcast(ev)
		}
	}
}

func (e *Engine) broadcast(ev core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.log.Warn("dropping event for slow subscriber", "kind", ev.Kind, "protocol", ev.Protocol)
		}
	}
}

// Subscribe registers a new subscriber and returns a channel carrying every
// event broadcast from here on. The channel is closed when ctx is done.
func (e *Engine) Subscribe(ctx context.Context) <-chan core.Event {
	ch := make(chan core.Event, 64)

	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = ch
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.subs, id)
		close(ch)
		e.mu.Unlock()
	}()

	return ch
}

func (e *Engine) stopAll(ctx context.Context, protocols []core.Protocol) {
	for _, p := range protocols {
		if err := p.Stop(ctx); err != nil {
			e.log.Error("error stopping protocol", "protocol", p.Info().ID, "error", err)
		}
	}
}

// Stop stops every built protocol and waits for event forwarders to exit.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	e.stopAll(ctx, e.registry.Instances())
	e.wg.Wait()
	return nil
}

// Devices aggregates Devices() across every built protocol.
func (e *Engine) Devices() []core.Device {
	var out []core.Device
	for _, p := range e.registry.Instances() {
		out = append(out, p.Devices()...)
	}
	return out
}

// Device looks up a single device by its qualified ID.
func (e *Engine) Device(id core.DeviceID) (core.Device, bool) {
	p, err := e.router.Resolve(id)
	if err != nil {
		return core.Device{}, false
	}
	return p.Device(id)
}

// Scan triggers an active scan on every built protocol that supports one.
func (e *Engine) Scan(ctx context.Context) error {
	for _, p := range e.registry.Instances() {
		if err := p.Scan(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Send routes intent to the protocol named by intent.Target and returns the
// resulting session ID.
func (e *Engine) Send(ctx context.Context, intent core.TransferIntent) (string, error) {
	p, err := e.router.Resolve(intent.Target)
	if err != nil {
		return "", err
	}
	return p.Send(ctx, intent)
}

// SendQUIC routes intent to the protocol named by intent.Target's
// accelerated QUIC path. Protocols without one return a
// CategoryProtocolNotSupported *core.Error.
func (e *Engine) SendQUIC(ctx context.Context, intent core.TransferIntent) (string, error) {
	p, err := e.router.Resolve(intent.Target)
	if err != nil {
		return "", err
	}
	return p.SendQUIC(ctx, intent)
}

// Accept clears requestID from the engine's own pending-request table and
// forwards acceptance to the owning protocol. See SPEC_FULL.md §6.1: this
// does not gate protocol-level acceptance, which is automatic; it only
// lets a caller stop tracking (and optionally still instruct the protocol,
// for protocols that do honour it) a pending request.
func (e *Engine) Accept(ctx context.Context, requestID string) error {
	req, ok := e.takePending(requestID)
	if !ok {
		return core.NewInvalidSessionError("no pending request %s", requestID)
	}
	p, err := e.router.Resolve(req.From)
	if err != nil {
		return err
	}
	return p.Accept(ctx, requestID)
}

func (e *Engine) Reject(ctx context.Context, requestID string) error {
	req, ok := e.takePending(requestID)
	if !ok {
		return core.NewInvalidSessionError("no pending request %s", requestID)
	}
	p, err := e.router.Resolve(req.From)
	if err != nil {
		return err
	}
	return p.Reject(ctx, requestID)
}

func (e *Engine) takePending(requestID string) (core.TransferRequest, bool) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	req, ok := e.pending[requestID]
	if ok {
		delete(e.pending, requestID)
	}
	return req, ok
}

// Cancel stops an in-flight session on id's owning protocol.
func (e *Engine) Cancel(ctx context.Context, id core.DeviceID, sessionID string) error {
	p, err := e.router.Resolve(id)
	if err != nil {
		return err
	}
	return p.Cancel(ctx, sessionID)
}

// Protocols lists descriptive metadata for every built protocol.
func (e *Engine) Protocols() []core.ProtocolInfo {
	instances := e.registry.Instances()
	out := make([]core.ProtocolInfo, len(instances))
	for i, p := range instances {
		out[i] = p.Info()
	}
	return out
}

// newTransferID is a small helper kept here so callers assembling a
// TransferRequest outside of a protocol package (tests, in particular) get
// the same ID shape the protocols use.
func newTransferID() string {
	return uuid.NewString()
}
