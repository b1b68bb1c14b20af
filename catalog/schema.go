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

// Package catalog implements the metadata store: schemas, the bootstrap
// system tables, and the catalog the planner consults when resolving
// tables, columns, and indexes (spec.md §6, §9).
package catalog

import "github.com/castorsql/castor/kernel"

type (
	CatalogID = int64
	TableID   = int64
	IndexID   = int64
	ColumnID  = int64
)

// Column describes one column of a table.
type Column struct {
	ID       ColumnID
	Name     string
	Type     kernel.Kind
	Nullable bool
}

// Schema is an ordered list of columns.
type Schema []Column

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

func (s Schema) ColumnIndex(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Table is the catalog's view of one table: its schema, its secondary
// indexes, and the table id used to address its heap on a worker.
type Table struct {
	ID        TableID
	CatalogID CatalogID
	Name      string
	Schema    Schema
	Indexes   []IndexDef
}

// IndexDef names the columns (in order) of one secondary index.
type IndexDef struct {
	ID      IndexID
	Name    string
	TableID TableID
	Columns []ColumnID
}

// FirstUserTableID: table ids 0-99 are reserved for the bootstrap catalog
// (spec.md §6).
const FirstUserTableID TableID = 100
