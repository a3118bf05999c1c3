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

package core

import "context"

// ProtocolConfig carries the settings every protocol implementation needs
// regardless of transport: the identity to advertise, where inbound files
// land, which port to bind (0 = protocol picks its own default), whether
// transport encryption is required, and an optional PIN gating inbound
// transfers. Settings with no cross-protocol meaning (relay lists, listen
// multiaddrs) still live in the concrete protocol's own config type and are
// threaded through a dedicated factory closure instead of this struct.
type ProtocolConfig struct {
	DeviceName string
	DeviceType DeviceType
	SaveDir    string
	Port       int
	Encryption bool
	PIN        string
}

// ProtocolInfo is static, descriptive metadata about a registered protocol,
// returned by Protocol.Info and used by the registry to order `protocols`
// output and by the router to decide dispatch.
type ProtocolInfo struct {
	ID          ProtocolID
	Name        string
	Description string
	// Priority orders protocols within registry listings; higher sorts
	// first. LocalSend (LAN-first) outranks p2p (needs a relay) by default.
	Priority int
}

// Protocol is the contract every transport implementation satisfies. The
// Engine holds a Protocol per registered ProtocolID and drives its
// lifecycle; it never reaches into protocol internals.
type Protocol interface {
	Info() ProtocolInfo

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool

	Devices() []Device
	Device(id DeviceID) (Device, bool)
	Scan(ctx context.Context) error

	Send(ctx context.Context, intent TransferIntent) (string, error)

	// SendQUIC is an optional accelerated path. Protocols that do not
	// support it return a *Error with CategoryProtocolNotSupported.
	SendQUIC(ctx context.Context, intent TransferIntent) (string, error)

	Accept(ctx context.Context, requestID string) error
	Reject(ctx context.Context, requestID string) error
	Cancel(ctx context.Context, sessionID string) error

	// Subscribe returns a channel of Events for this protocol alone. Each
	// call registers an independent subscriber; closing ctx (or calling
	// Stop) closes the channel. Implementations must fan out to every
	// live subscriber, not just the most recent one.
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// ProtocolFactory builds a Protocol instance from a ProtocolConfig. Concrete
// protocol packages register a ProtocolFactory under their ProtocolID with
// the engine's registry; the registry itself never imports a protocol
// package, which keeps the dependency direction one-way.
type ProtocolFactory func(cfg ProtocolConfig) (Protocol, error)
