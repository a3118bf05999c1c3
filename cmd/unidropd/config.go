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

package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML file unidropd reads at startup
// (SPEC_FULL.md §2). The only command-line flag that overlaps a file key is
// --verbose, and either one set to true enables debug logging.
type fileConfig struct {
	DeviceName string   `yaml:"device_name"`
	SaveDir    string   `yaml:"save_dir"`
	Port       int      `yaml:"port"`
	PIN        string   `yaml:"pin"`
	Verbose    bool     `yaml:"verbose"`
	RelayAddrs []string `yaml:"relay_addrs"`
}

func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}
