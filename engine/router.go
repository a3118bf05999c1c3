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

import "github.com/Marandi269/unidrop/core"

// TransferRouter dispatches by a DeviceID's Protocol component. It holds no
// state of its own: every call resolves straight through to the registry,
// so a router can be constructed freely and shared across goroutines.
type TransferRouter struct {
	registry *ProtocolRegistry
}

func NewTransferRouter(registry *ProtocolRegistry) *TransferRouter {
	return &TransferRouter{registry: registry}
}

// Resolve returns the built Protocol instance responsible for id.Protocol.
func (r *TransferRouter) Resolve(id core.DeviceID) (core.Protocol, error) {
	p, ok := r.registry.Get(id.Protocol)
	if !ok {
		return nil, core.NewProtocolNotFoundError(string(id.Protocol))
	}
	return p, nil
}

// AvailableProtocols lists every built protocol ID, most preferred first.
func (r *TransferRouter) AvailableProtocols() []core.ProtocolID {
	instances := r.registry.Instances()
	ids := make([]core.ProtocolID, len(instances))
	for i, p := range instances {
		ids[i] = p.Info().ID
	}
	return ids
}

// SelectProtocol picks the single protocol to use for a device that might
// be reachable by more than one. Today every Device carries exactly one
// ProtocolID in its DeviceID, so this is just Resolve; it is kept as its
// own method as the documented hook for future multi-homed devices.
func (r *TransferRouter) SelectProtocol(id core.DeviceID) (core.Protocol, error) {
	return r.Resolve(id)
}
