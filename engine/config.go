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

// Package engine ties protocol implementations together behind a single
// surface: a registry of available protocols, a router that dispatches by
// device, and the Engine itself, which owns their lifecycle and fans their
// events out to subscribers.
package engine

import (
	"log/slog"

	"github.com/Marandi269/unidrop/core"
)

// Config configures an Engine. It embeds core.ProtocolConfig so device
// identity and the save directory are set once and shared by every
// registered protocol.
type Config struct {
	core.ProtocolConfig
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		ProtocolConfig: core.ProtocolConfig{
			DeviceName: "UniDrop",
			DeviceType: core.DeviceTypeDesktop,
			SaveDir:    ".",
			Encryption: true,
		},
		Logger: slog.Default(),
	}
}
