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

package coordinate

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/distributed"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/rpc"
	"github.com/castorsql/castor/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// startWorker boots a WorkerServer in-process over a bufconn listener,
// seeded with one table holding rows, and returns a dialed client.
func startWorker(t *testing.T, id int32, rows []int64) *rpc.WorkerClient {
	t.Helper()
	schema := catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}
	table := catalog.Table{ID: 1, Name: "t", Schema: schema}
	store := storage.NewStore()
	h := store.CreateTable(table)
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "a", Array: kernel.NewInt64ArrayFromValues(rows)}})
	h.Insert(batch, 1)

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&rpc.WorkerServiceDesc, rpc.NewWorkerServer(id, store))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := rpc.DialWorker(context.Background(), "bufconn",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func scanPlan() (plan.Get, plan.Column, catalog.Table) {
	col := plan.NewColumn("a")
	table := catalog.Table{ID: 1, Name: "t", Schema: catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}}
	get := plan.Get{Table: table, Columns: []plan.Column{col}}
	return get, col, table
}

func collect(t *testing.T, ch <-chan distributed.Page) []distributed.Page {
	t.Helper()
	var pages []distributed.Page
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return pages
			}
			pages = append(pages, p)
		case <-timeout:
			t.Fatal("timed out waiting for dispatch result")
		}
	}
}

func TestDispatchNoEnforcerRunsOnFirstWorker(t *testing.T) {
	w := startWorker(t, 0, []int64{1, 2, 3})
	d := NewDispatcher([]*rpc.WorkerClient{w})

	get, col, _ := scanPlan()
	scan := optimizer.SeqScan{Table: get, Columns: []plan.Column{col}}

	ch, err := d.Dispatch(scan, 9)
	require.NoError(t, err)
	pages := collect(t, ch)
	require.Len(t, pages, 1)
	require.Empty(t, pages[0].Err)
	require.Equal(t, 3, pages[0].Batch.Len())
}

func TestDispatchGatherMergesAllWorkers(t *testing.T) {
	w1 := startWorker(t, 0, []int64{1, 2})
	w2 := startWorker(t, 1, []int64{3, 4, 5})
	d := NewDispatcher([]*rpc.WorkerClient{w1, w2})

	get, col, _ := scanPlan()
	scan := optimizer.SeqScan{Table: get, Columns: []plan.Column{col}}
	gather := optimizer.Gather{Input: scan}

	ch, err := d.Dispatch(gather, 9)
	require.NoError(t, err)
	pages := collect(t, ch)

	total := 0
	for _, p := range pages {
		require.Empty(t, p.Err)
		total += p.Batch.Len()
	}
	require.Equal(t, 5, total)
}

func TestDispatchNoWorkersErrors(t *testing.T) {
	d := NewDispatcher(nil)
	_, err := d.Dispatch(optimizer.SeqScan{}, 1)
	require.Error(t, err)
}
