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

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Marandi269/unidrop/core"
	"github.com/Marandi269/unidrop/engine"
)

var sendTo string

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "target device, matched by name substring or fingerprint prefix")
	sendCmd.MarkFlagRequired("to")
}

var sendCmd = &cobra.Command{
	Use:   "send <files...>",
	Short: "Send one or more files to a discovered device",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), discoveryWindow+30*time.Second)
		defer cancel()
		return withEngine(ctx, func(ctx context.Context, e *engine.Engine) error {
			e.Scan(ctx)
			<-time.After(discoveryWindow)

			target, err := resolveTarget(e.Devices(), sendTo)
			if err != nil {
				return err
			}

			intent := core.TransferIntent{Target: target.ID}
			for _, path := range args {
				intent.Files = append(intent.Files, core.FileInfo{Name: baseName(path), Path: path})
			}

			sessionID, err := e.Send(ctx, intent)
			if err != nil {
				return err
			}
			fmt.Printf("sent to %s, session %s\n", target.Name, sessionID)
			return nil
		})
	},
}

// resolveTarget implements the `--to` matching policy documented in
// SPEC_FULL.md §6.4: an exact fingerprint-prefix match wins outright if it
// is unambiguous; otherwise fall back to a case-insensitive name substring
// match, and report an error rather than silently guessing if more than
// one device matches either way.
func resolveTarget(devices []core.Device, query string) (core.Device, error) {
	var byFingerprint []core.Device
	for _, d := range devices {
		if d.Fingerprint != "" && strings.HasPrefix(strings.ToUpper(d.Fingerprint), strings.ToUpper(query)) {
			byFingerprint = append(byFingerprint, d)
		}
	}
	if len(byFingerprint) == 1 {
		return byFingerprint[0], nil
	}
	if len(byFingerprint) > 1 {
		return core.Device{}, ambiguousErr(query, byFingerprint)
	}

	var byName []core.Device
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(query)) {
			byName = append(byName, d)
		}
	}
	switch len(byName) {
	case 0:
		return core.Device{}, core.NewDeviceNotFoundError(query)
	case 1:
		return byName[0], nil
	default:
		return core.Device{}, ambiguousErr(query, byName)
	}
}

func ambiguousErr(query string, candidates []core.Device) error {
	names := make([]string, len(candidates))
	for i, d := range candidates {
		names[i] = fmt.Sprintf("%s (%s)", d.Name, d.ID)
	}
	return core.NewInvalidSessionError("ambiguous target %q matches: %s", query, strings.Join(names, ", "))
}

func baseName(path string) string {
	idx := strings.LastIndexAny(path, `/\`)
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}
