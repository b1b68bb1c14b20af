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

package catalog

import "sync"

// Registry is the coordinator's in-memory view of table metadata across
// one or more catalogs: enough for the planner to resolve a table by
// name without the coordinator holding any page storage of its own (that
// belongs to the workers — SPEC_FULL.md §9).
type Registry struct {
	mu     sync.RWMutex
	tables map[CatalogID]map[string]Table
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[CatalogID]map[string]Table)}
}

// Register installs or replaces table's entry under its own CatalogID.
func (r *Registry) Register(table Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.tables[table.CatalogID]
	if !ok {
		byName = make(map[string]Table)
		r.tables[table.CatalogID] = byName
	}
	byName[table.Name] = table
}

func (r *Registry) TableByName(catalogID CatalogID, name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byName, ok := r.tables[catalogID]
	if !ok {
		return Table{}, false
	}
	t, ok := byName[name]
	return t, ok
}
