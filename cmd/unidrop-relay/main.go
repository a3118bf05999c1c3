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

// Command unidrop-relay runs a standalone Circuit Relay v2 server for p2p
// NAT traversal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marandi269/unidrop/internal/logging"
	"github.com/Marandi269/unidrop/relay"
)

func main() {
	port := flag.Int("port", 4001, "listen port (TCP and QUIC)")
	externalAddr := flag.String("external-addr", "", "external multiaddr to log at startup (not added to the host's advertised addresses)")
	maxCircuitMB := flag.Int64("max-circuit-mb", 100, "maximum bytes relayed per circuit, in MB")
	maxCircuitDurationSec := flag.Int64("max-circuit-duration", 600, "maximum circuit duration, in seconds")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	log := logging.New(*verbose)

	cfg := relay.DefaultConfig()
	cfg.Port = *port
	cfg.ExternalAddr = *externalAddr
	cfg.MaxCircuitBytes = *maxCircuitMB * 1024 * 1024
	cfg.MaxCircuitDuration = time.Duration(*maxCircuitDurationSec) * time.Second
	cfg.Log = log

	server := relay.New(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		log.Error("failed to start relay server", "error", err)
		os.Exit(1)
	}
	defer server.Stop()

	<-ctx.Done()
	log.Info("shutting down relay server")
}
