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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"WORKER_ID", "WORKER_COUNT", "WORKER_0", "WORKER_1", "COORDINATOR", "ZETASQL", "REWRITE"} {
		if v, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { os.Setenv(name, v) })
		}
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_ID", "1")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("WORKER_0", "10.0.0.1:9000")
	t.Setenv("WORKER_1", "10.0.0.2:9000")
	t.Setenv("COORDINATOR", "10.0.0.9:9000")
	t.Setenv("ZETASQL", "true")
	t.Setenv("REWRITE", "1")

	c, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.WorkerID)
	require.Equal(t, 2, c.WorkerCount)
	require.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, c.Workers)
	require.Equal(t, "10.0.0.9:9000", c.Coordinator)
	require.True(t, c.ZetaSQL)
	require.True(t, c.Rewrite)
}

func TestLoadFallsBackToTopology(t *testing.T) {
	clearEnv(t)
	topo := &Topology{Workers: []string{"a:1", "b:1"}}

	c, err := Load(topo)
	require.NoError(t, err)
	require.Equal(t, 2, c.WorkerCount)
	require.Equal(t, []string{"a:1", "b:1"}, c.Workers)
}

func TestEnvWorkerAddressWinsOverTopology(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("WORKER_0", "override:1")
	topo := &Topology{Workers: []string{"a:1", "b:1"}}

	c, err := Load(topo)
	require.NoError(t, err)
	require.Equal(t, []string{"override:1", "b:1"}, c.Workers)
}

func TestLoadTopologyMissingFileIsNotError(t *testing.T) {
	topo, err := LoadTopology(filepath.Join(t.TempDir(), "castor.yaml"))
	require.NoError(t, err)
	require.Nil(t, topo)
}

func TestLoadTopologyParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "castor.yaml")
	content := "workers:\n  - \"a:1\"\n  - \"b:1\"\nbootstrap:\n  - \"create table t (a int64)\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	topo, err := LoadTopology(path)
	require.NoError(t, err)
	require.NotNil(t, topo)
	require.Equal(t, []string{"a:1", "b:1"}, topo.Workers)
	require.Equal(t, []string{"create table t (a int64)"}, topo.Bootstrap)
}

func TestLoadRejectsInvalidBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZETASQL", "not-a-bool")
	_, err := Load(nil)
	require.Error(t, err)
}
