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

// Package cmd implements the `unidrop` CLI: devices, send, protocols, and
// receive, built on cobra.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Marandi269/unidrop/core"
	"github.com/Marandi269/unidrop/engine"
	"github.com/Marandi269/unidrop/internal/logging"
	"github.com/Marandi269/unidrop/protocol/localsend"
	"github.com/Marandi269/unidrop/protocol/p2p"
)

var (
	verbose    bool
	deviceName string
	saveDir    string
	pin        string
	port       int
	encryption bool

	log *slog.Logger
)

// RootCmd is the `unidrop` entry point, exported so cmd/unidrop/main.go can
// call Execute.
var RootCmd = &cobra.Command{
	Use:   "unidrop",
	Short: "Send and receive files over LAN and NAT-traversed P2P links",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(verbose)
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().StringVar(&deviceName, "name", defaultDeviceName(), "device name to advertise")
	RootCmd.PersistentFlags().StringVar(&saveDir, "save-dir", ".", "directory to save received files in")
	RootCmd.PersistentFlags().StringVar(&pin, "pin", "", "require this PIN for inbound LocalSend transfers")
	RootCmd.PersistentFlags().IntVar(&port, "port", 0, "LocalSend HTTPS port, also seeds the p2p listen port (0 = protocol default)")
	RootCmd.PersistentFlags().BoolVar(&encryption, "encryption", true, "require encrypted transport where the protocol supports toggling it")

	RootCmd.AddCommand(devicesCmd)
	RootCmd.AddCommand(sendCmd)
	RootCmd.AddCommand(protocolsCmd)
	RootCmd.AddCommand(receiveCmd)
}

func defaultDeviceName() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "UniDrop"
}

// newEngine builds and registers every protocol factory this CLI knows how
// to drive. Unlike the CLI this design is modelled on, which registered
// only its LAN protocol, both LocalSend and p2p are wired in here so
// `protocols`/`send --to` work across both transports.
func newEngine() *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.DeviceName = deviceName
	cfg.SaveDir = saveDir
	cfg.Port = port
	cfg.PIN = pin
	cfg.Encryption = encryption
	cfg.Logger = log

	e := engine.New(cfg)
	e.RegisterFactory(core.ProtocolLocalSend, localsend.Factory)
	e.RegisterFactory(core.ProtocolP2P, p2p.Factory)
	return e
}

// discoveryWindow is how long `devices`/`send` wait for discovery events
// before acting on whatever has been observed so far.
const discoveryWindow = 3 * time.Second

func withEngine(ctx context.Context, fn func(ctx context.Context, e *engine.Engine) error) error {
	e := newEngine()
	if err := e.Start(ctx); err != nil {
		return err
	}
	defer e.Stop(context.Background())
	return fn(ctx, e)
}
