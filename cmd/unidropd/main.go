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

// Command unidropd runs the engine unattended: every registered protocol
// started, auto-accepting inbound transfers, until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Marandi269/unidrop/core"
	"github.com/Marandi269/unidrop/engine"
	"github.com/Marandi269/unidrop/internal/logging"
	"github.com/Marandi269/unidrop/protocol/localsend"
	"github.com/Marandi269/unidrop/protocol/p2p"
)

// registerP2P wires the p2p factory with settings core.ProtocolConfig alone
// can't carry (relay addresses): ProtocolConfig.Port still seeds the
// listen addrs the same way p2p.Factory would.
func registerP2P(e *engine.Engine, relayAddrs []string) {
	e.RegisterFactory(core.ProtocolP2P, func(cfg core.ProtocolConfig) (core.Protocol, error) {
		pcfg := p2p.Config{ProtocolConfig: cfg, RelayAddrs: relayAddrs}
		if cfg.Port != 0 {
			pcfg.ListenAddrs = p2p.DefaultListenAddrs(cfg.Port)
		}
		return p2p.New(pcfg)
	})
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	fileCfg, err := loadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(*verbose || fileCfg.Verbose)

	cfg := engine.DefaultConfig()
	cfg.Logger = log
	if fileCfg.DeviceName != "" {
		cfg.DeviceName = fileCfg.DeviceName
	}
	if fileCfg.SaveDir != "" {
		cfg.SaveDir = fileCfg.SaveDir
	}
	if fileCfg.Port != 0 {
		cfg.Port = fileCfg.Port
	}
	if fileCfg.PIN != "" {
		cfg.PIN = fileCfg.PIN
	}

	e := engine.New(cfg)
	e.RegisterFactory(core.ProtocolLocalSend, localsend.Factory)
	registerP2P(e, fileCfg.RelayAddrs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := e.Start(ctx); err != nil {
		log.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	defer e.Stop(context.Background())

	log.Info("unidropd started", "device_name", cfg.DeviceName, "save_dir", cfg.SaveDir)

	events := e.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Debug("event", "kind", ev.Kind, "protocol", ev.Protocol)
		}
	}
}
