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

package storage

import (
	"sync"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/index"
)

// Store is one worker's whole local state: every table's Heap, every
// index's Art, and a per-transaction set of temp tables (materialized by
// CreateTempTable for shared-subplan reuse, spec.md §4.7 S3), grounded on
// storage/storage.rs's Storage struct. Table ids 0-99 are reserved for
// the bootstrap catalog (spec.md §6); neither Store nor the catalog
// package enforces that reservation, which catalog.FirstUserTableID records.
type Store struct {
	mu         sync.RWMutex
	tables     map[catalog.TableID]*Heap
	indexes    map[catalog.IndexID]*index.Index
	tempTables map[tempKey]*Heap
}

type tempKey struct {
	txn  int64
	name string
}

func NewStore() *Store {
	return &Store{
		tables:     make(map[catalog.TableID]*Heap),
		indexes:    make(map[catalog.IndexID]*index.Index),
		tempTables: make(map[tempKey]*Heap),
	}
}

// CreateTable registers a new heap for table, replacing any existing one
// (spec.md §6's create_table procedure).
func (s *Store) CreateTable(table catalog.Table) *Heap {
	h := NewHeap(table)
	s.mu.Lock()
	s.tables[table.ID] = h
	s.mu.Unlock()
	return h
}

// Table returns the heap backing table id, or false if no such table has
// been created.
func (s *Store) Table(id catalog.TableID) (*Heap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.tables[id]
	return h, ok
}

// DropTable removes a table's heap entirely (spec.md §6's drop_table).
func (s *Store) DropTable(id catalog.TableID) {
	s.mu.Lock()
	delete(s.tables, id)
	s.mu.Unlock()
}

// CreateIndex registers ix under id (spec.md §6's create_index).
func (s *Store) CreateIndex(id catalog.IndexID, ix *index.Index) {
	s.mu.Lock()
	s.indexes[id] = ix
	s.mu.Unlock()
}

// Index returns the index registered under id, or false if none exists.
func (s *Store) Index(id catalog.IndexID) (*index.Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[id]
	return ix, ok
}

// DropIndex removes an index (spec.md §6's drop_index).
func (s *Store) DropIndex(id catalog.IndexID) {
	s.mu.Lock()
	delete(s.indexes, id)
	s.mu.Unlock()
}

// CreateTempTable materializes a named, transaction-scoped heap (spec.md
// §4.7's `with` handling: a CTE referenced twice must share one scan).
func (s *Store) CreateTempTable(txn int64, name string, h *Heap) {
	s.mu.Lock()
	s.tempTables[tempKey{txn, name}] = h
	s.mu.Unlock()
}

// TempTable looks up a temp table created earlier in the same
// transaction.
func (s *Store) TempTable(txn int64, name string) (*Heap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.tempTables[tempKey{txn, name}]
	return h, ok
}

// DropTempTables discards every temp table created by txn. Temp tables
// stay in the Store until this is called; nothing in this module calls it
// when a statement or transaction completes.
func (s *Store) DropTempTables(txn int64) {
	s.mu.Lock()
	for k := range s.tempTables {
		if k.txn == txn {
			delete(s.tempTables, k)
		}
	}
	s.mu.Unlock()
}
