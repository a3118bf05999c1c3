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

// Builder provides the fluent construction style carried over from the
// original implementation's EngineBuilder: with_protocol/device_name/
// save_dir chained onto a fresh Engine before Build.
type Builder struct {
	cfg      Config
	factories map[core.ProtocolID]core.ProtocolFactory
}

func NewBuilder() *Builder {
	return &Builder{
		cfg:       DefaultConfig(),
		factories: make(map[core.ProtocolID]core.ProtocolFactory),
	}
}

func (b *Builder) DeviceName(name string) *Builder {
	b.cfg.DeviceName = name
	return b
}

func (b *Builder) DeviceType(t core.DeviceType) *Builder {
	b.cfg.DeviceType = t
	return b
}

func (b *Builder) SaveDir(dir string) *Builder {
	b.cfg.SaveDir = dir
	return b
}

func (b *Builder) WithProtocol(id core.ProtocolID, factory core.ProtocolFactory) *Builder {
	b.factories[id] = factory
	return b
}

func (b *Builder) Build() *Engine {
	e := New(b.cfg)
	for id, factory := range b.factories {
		e.RegisterFactory(id, factory)
	}
	return e
}
