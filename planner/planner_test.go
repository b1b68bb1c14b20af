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

package planner

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/storage"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, store *storage.Store) catalog.Table {
	t.Helper()
	schema := catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}
	table := catalog.Table{ID: 1, Name: "t", Schema: schema}
	h := store.CreateTable(table)
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "a", Array: kernel.NewInt64ArrayFromValues([]int64{1, 2, 3})}})
	h.Insert(batch, 1)
	return table
}

func TestPlannerPlanReturnsPhysicalOperator(t *testing.T) {
	store := storage.NewStore()
	table := newTestTable(t, store)

	calls := 0
	analyze := func(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error) {
		calls++
		return plan.Get{Table: table}, nil
	}
	p := New(analyze, store)

	op, err := p.Plan("select a from t", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	require.NotNil(t, op)
	require.Equal(t, 1, calls)
}

func TestPlannerCachesByFingerprint(t *testing.T) {
	store := storage.NewStore()
	table := newTestTable(t, store)

	calls := 0
	analyze := func(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error) {
		calls++
		return plan.Get{Table: table}, nil
	}
	p := New(analyze, store)

	_, err := p.Plan("select a from t", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	_, err = p.Plan("select a from t", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	p.Invalidate()
	_, err = p.Plan("select a from t", nil, catalog.RootCatalogID)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestPlannerErrorsWithoutAnalyze(t *testing.T) {
	store := storage.NewStore()
	p := New(nil, store)
	_, err := p.Plan("select 1", nil, catalog.RootCatalogID)
	require.Error(t, err)
}
