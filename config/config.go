// Copyright 2024 The Castor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves cluster topology and runtime flags the way
// spec.md §6/§9 describes: environment variables first (WORKER_ID,
// WORKER_COUNT, WORKER_<i>, COORDINATOR, ZETASQL, REWRITE), falling
// back to an optional castor.yaml topology file for local multi-node
// development. Env vars always win when both are set.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// Topology is the optional castor.yaml shape: worker addresses and the
// catalog bootstrap DDL for a local cluster.
type Topology struct {
	Workers   []string `yaml:"workers"`
	Bootstrap []string `yaml:"bootstrap"`
}

// LoadTopology reads and parses a castor.yaml file. A missing file is not
// an error — callers fall back to env-only configuration.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &t, nil
}

// Config is the resolved runtime configuration for one process, worker
// or coordinator, per spec.md §6's cluster-membership env vars.
type Config struct {
	// WorkerID is this process's 0-based index into Workers (spec.md
	// §6 WORKER_ID), meaningless for a coordinator process.
	WorkerID int
	// WorkerCount is the fixed cluster size (spec.md §6 WORKER_COUNT)
	// rendezvous topics wait for before starting (distributed.Router's
	// clusterSize parameter).
	WorkerCount int
	// Workers is each worker's dial address, WORKER_0..WORKER_<n-1>,
	// env vars winning over a castor.yaml Topology.Workers entry at the
	// same index.
	Workers []string
	// Coordinator is the coordinator's address (spec.md §6
	// COORDINATOR): the coordinator binary listens on it and `castorctl
	// up` starts the coordinator on it. The worker binary does not read it.
	Coordinator string
	// ZetaSQL is parsed from ZETASQL (spec.md §6) as a boolean. No code
	// reads it: every binary installs the built-in analyzer.Analyze.
	ZetaSQL bool
	// Rewrite is parsed from REWRITE (spec.md §6) as a boolean. Nothing at
	// runtime reads it, and castorctl does not report it.
	Rewrite bool
}

// Load resolves a Config from the environment, falling back to
// topology (which may be nil) for worker addresses not set via
// WORKER_<i>.
func Load(topology *Topology) (Config, error) {
	var c Config
	var err error

	if v, ok := os.LookupEnv("WORKER_ID"); ok {
		if c.WorkerID, err = cast.ToIntE(v); err != nil {
			return Config{}, fmt.Errorf("config: WORKER_ID: %w", err)
		}
	}
	if v, ok := os.LookupEnv("WORKER_COUNT"); ok {
		if c.WorkerCount, err = cast.ToIntE(v); err != nil {
			return Config{}, fmt.Errorf("config: WORKER_COUNT: %w", err)
		}
	} else if topology != nil {
		c.WorkerCount = len(topology.Workers)
	}

	c.Workers = make([]string, c.WorkerCount)
	for i := range c.Workers {
		if v, ok := os.LookupEnv(fmt.Sprintf("WORKER_%d", i)); ok {
			c.Workers[i] = v
		} else if topology != nil && i < len(topology.Workers) {
			c.Workers[i] = topology.Workers[i]
		}
	}

	c.Coordinator = os.Getenv("COORDINATOR")

	if v, ok := os.LookupEnv("ZETASQL"); ok {
		if c.ZetaSQL, err = cast.ToBoolE(v); err != nil {
			return Config{}, fmt.Errorf("config: ZETASQL: %w", err)
		}
	}
	if v, ok := os.LookupEnv("REWRITE"); ok {
		if c.Rewrite, err = cast.ToBoolE(v); err != nil {
			return Config{}, fmt.Errorf("config: REWRITE: %w", err)
		}
	}
	return c, nil
}
