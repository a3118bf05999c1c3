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
	"time"

	"github.com/spf13/cobra"

	"github.com/Marandi269/unidrop/engine"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices discovered so far",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), discoveryWindow+2*time.Second)
		defer cancel()
		return withEngine(ctx, func(ctx context.Context, e *engine.Engine) error {
			e.Scan(ctx)
			<-time.After(discoveryWindow)

			devices := e.Devices()
			if len(devices) == 0 {
				fmt.Println("no devices found")
				return nil
			}
			for _, d := range devices {
				fmt.Printf("%-20s %-10s %s\n", d.Name, d.ID.Protocol, d.ID)
			}
			return nil
		})
	},
}
