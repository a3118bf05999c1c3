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

// Package logging builds the single slog.Logger each UniDrop binary
// constructs at startup and hands to the engine (or the relay server).
package logging

import (
	"log/slog"
	"os"
)

// New returns a text-handler slog.Logger at LevelInfo, or LevelDebug when
// verbose is set. Every UniDrop binary calls this once in main and passes
// the result to the engine or relay config. Protocols built through a
// core.ProtocolFactory receive no logger and fall back to slog.Default().
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
