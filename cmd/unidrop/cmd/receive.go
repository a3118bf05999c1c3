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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Marandi269/unidrop/core"
	"github.com/Marandi269/unidrop/engine"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Run in the foreground, accepting inbound transfers until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return withEngine(ctx, func(ctx context.Context, e *engine.Engine) error {
			events := e.Subscribe(ctx)
			fmt.Printf("listening as %q in %q, press Ctrl+C to stop\n", deviceName, saveDir)
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					logEvent(ev)
				}
			}
		})
	},
}

func logEvent(ev core.Event) {
	switch ev.Kind {
	case core.EventDeviceFound:
		fmt.Printf("[found]    %s via %s\n", ev.Device.Name, ev.Protocol)
	case core.EventDeviceLost:
		fmt.Printf("[lost]     %s via %s\n", ev.Device.Name, ev.Protocol)
	case core.EventTransferRequest:
		fmt.Printf("[transfer] %d file(s) from %s\n", len(ev.Request.Files), ev.Request.FromName)
	case core.EventTransferProgress:
		fmt.Printf("[progress] session=%s state=%s %d/%d bytes\n",
			ev.Progress.SessionID, ev.Progress.State, ev.Progress.BytesSent, ev.Progress.BytesTotal)
	case core.EventError:
		fmt.Printf("[error]    %v\n", ev.Err)
	}
}
