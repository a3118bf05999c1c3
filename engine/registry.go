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
	"sort"
	"sync"

	"github.com/Marandi269/unidrop/core"
)

// ProtocolRegistry holds the known protocol factories and, once built, the
// live Protocol instances they produced. A single mutex guards both maps;
// registrations and builds are rare relative to reads, so a plain Mutex
// (rather than RWMutex) keeps the single-writer model simple and matches
// the low-contention access pattern here.
type ProtocolRegistry struct {
	mu        sync.Mutex
	factories map[core.ProtocolID]core.ProtocolFactory
	instances map[core.ProtocolID]core.Protocol
}

func NewProtocolRegistry() *ProtocolRegistry {
	return &ProtocolRegistry{
		factories: make(map[core.ProtocolID]core.ProtocolFactory),
		instances: make(map[core.ProtocolID]core.Protocol),
	}
}

// Register records a factory for id, overwriting any prior registration.
func (r *ProtocolRegistry) Register(id core.ProtocolID, factory core.ProtocolFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// Build constructs (or returns the cached) Protocol instance for id using
// cfg. Subsequent calls for the same id return the same instance.
func (r *ProtocolRegistry) Build(id core.ProtocolID, cfg core.ProtocolConfig) (core.Protocol, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[id]; ok {
		return p, nil
	}
	factory, ok := r.factories[id]
	if !ok {
		return nil, core.NewProtocolNotFoundError(string(id))
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	r.instances[id] = p
	return p, nil
}

// Get returns the already-built instance for id, if any.
func (r *ProtocolRegistry) Get(id core.ProtocolID) (core.Protocol, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.instances[id]
	return p, ok
}

// Instances returns every built Protocol, ordered by descending
// ProtocolInfo.Priority then ascending ProtocolID for stability.
func (r *ProtocolRegistry) Instances() []core.Protocol {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.Protocol, 0, len(r.instances))
	for _, p := range r.instances {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		ii, jj := out[i].Info(), out[j].Info()
		if ii.Priority != jj.Priority {
			return ii.Priority > jj.Priority
		}
		return ii.ID < jj.ID
	})
	return out
}

// RegisteredIDs returns every ProtocolID that has a factory, regardless of
// whether it has been built yet.
func (r *ProtocolRegistry) RegisteredIDs() []core.ProtocolID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.ProtocolID, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
