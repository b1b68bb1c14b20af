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

package distributed

import (
	"testing"
	"time"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/castorsql/castor/storage"
	"github.com/stretchr/testify/require"
)

func newTableWithRows(t *testing.T, rows []int64) (*storage.Store, catalog.Table, plan.Column) {
	t.Helper()
	col := plan.NewColumn("a")
	schema := catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}
	table := catalog.Table{ID: 1, Name: "t", Schema: schema}
	store := storage.NewStore()
	h := store.CreateTable(table)
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "a", Array: kernel.NewInt64ArrayFromValues(rows)}})
	h.Insert(batch, 1)
	return store, table, col
}

func drain(t *testing.T, ch <-chan Page, timeout time.Duration) []Page {
	t.Helper()
	var pages []Page
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return pages
			}
			pages = append(pages, p)
		case <-time.After(timeout):
			t.Fatal("timed out waiting for page")
		}
	}
}

func TestRegisterBroadcastSingleListenerStartsImmediately(t *testing.T) {
	store, table, col := newTableWithRows(t, []int64{1, 2, 3})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	sess := session.New(5, nil, nil)

	r := NewRouter()
	key := Key{Expr: 1, Txn: 5, Stage: 0}
	ch := r.RegisterBroadcast(key, 1, scan, store, sess)

	pages := drain(t, ch, time.Second)
	require.Len(t, pages, 1)
	require.Empty(t, pages[0].Err)
	require.Equal(t, 3, pages[0].Batch.Len())
}

func TestRegisterBroadcastWaitsForClusterSize(t *testing.T) {
	store, table, col := newTableWithRows(t, []int64{1, 2})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	sess := session.New(5, nil, nil)

	r := NewRouter()
	key := Key{Expr: 2, Txn: 5, Stage: 0}
	first := r.RegisterBroadcast(key, 2, scan, store, sess)

	select {
	case <-first:
		t.Fatal("broadcast started before the cluster size was reached")
	case <-time.After(50 * time.Millisecond):
	}

	second := r.RegisterBroadcast(key, 2, scan, store, sess)

	for _, ch := range []<-chan Page{first, second} {
		pages := drain(t, ch, time.Second)
		require.Len(t, pages, 1)
		require.Equal(t, 2, pages[0].Batch.Len())
	}
}

func TestRegisterBroadcastPropagatesError(t *testing.T) {
	store, table, col := newTableWithRows(t, []int64{1})
	store.DropTable(table.ID)
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	sess := session.New(5, nil, nil)

	r := NewRouter()
	key := Key{Expr: 3, Txn: 5, Stage: 0}
	ch := r.RegisterBroadcast(key, 1, scan, store, sess)

	pages := drain(t, ch, time.Second)
	require.Len(t, pages, 1)
	require.NotEmpty(t, pages[0].Err)
}

func TestRegisterExchangePartitionsByBucket(t *testing.T) {
	store, table, col := newTableWithRows(t, []int64{1, 2, 3, 4})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	sess := session.New(5, nil, nil)

	r := NewRouter()
	key := Key{Expr: 4, Txn: 5, Stage: 0}
	chA := r.RegisterExchange(key, 2, 0, "a", scan, store, sess)
	chB := r.RegisterExchange(key, 2, 1, "a", scan, store, sess)

	pagesA := drain(t, chA, time.Second)
	pagesB := drain(t, chB, time.Second)
	require.Len(t, pagesA, 1)
	require.Len(t, pagesB, 1)
	require.Equal(t, 4, pagesA[0].Batch.Len()+pagesB[0].Batch.Len())
}

func TestFingerprintIsStableForEqualPlans(t *testing.T) {
	_, table, col := newTableWithRows(t, []int64{1})
	a := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	b := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}

	ha, err := Fingerprint(a)
	require.NoError(t, err)
	hb, err := Fingerprint(b)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}
