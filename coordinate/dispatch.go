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

// Package coordinate fans a physical plan out across the worker pool
// (spec.md §4.9): it is the coordinator-side counterpart to the rendezvous
// Router each worker runs, turning the Broadcast/Exchange/Gather enforcer
// nodes the optimizer inserted into actual RPCs against every worker.
package coordinate

import (
	"context"
	"fmt"
	"sync"

	"github.com/castorsql/castor/distributed"
	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/rpc"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/src-d/go-errors.v1"
)

var ErrNoWorkers = errors.NewKind("coordinate: no workers configured")

// Dispatcher builds the rpc.CoordinatorServer's Dispatch function over a
// fixed worker pool. It handles exactly one enforcer at the plan's root
// (Gather, Broadcast, Exchange, or none), matching the common shape the
// optimizer produces for a single-statement plan: further enforcers
// nested deeper in the tree are left to the worker's own exec.Compile,
// which fails with ErrNotCompilable if it encounters one, rather than
// pretending to support arbitrarily deep multi-hop redistribution.
type Dispatcher struct {
	Workers []*rpc.WorkerClient
}

func NewDispatcher(workers []*rpc.WorkerClient) *Dispatcher {
	return &Dispatcher{Workers: workers}
}

// Dispatch satisfies rpc.CoordinatorServer.Dispatch's signature.
func (d *Dispatcher) Dispatch(op plan.Operator, txn int64) (<-chan distributed.Page, error) {
	if len(d.Workers) == 0 {
		return nil, ErrNoWorkers.New()
	}
	ctx := context.Background()
	const stage = int32(0)

	switch o := op.(type) {
	case optimizer.Gather:
		return d.gather(ctx, o.Input, txn, stage)
	case optimizer.Broadcast:
		return d.broadcast(ctx, o.Input, txn, stage)
	case optimizer.Exchange:
		return d.exchange(ctx, o.Input, o.HashColumn, txn, stage)
	default:
		return d.Workers[0].Output(ctx, op, txn, stage)
	}
}

// gather runs op on every worker (each against its own shard of storage)
// via Output and merges their streams into one, the Go-side model of
// "Gather collects Input onto a single worker" where that single worker
// is the coordinator itself.
func (d *Dispatcher) gather(ctx context.Context, op plan.Operator, txn int64, stage int32) (<-chan distributed.Page, error) {
	chans := make([]<-chan distributed.Page, len(d.Workers))
	for i, w := range d.Workers {
		ch, err := w.Output(ctx, op, txn, stage)
		if err != nil {
			return nil, pkgerrors.Wrap(err, fmt.Sprintf("coordinate: gather from worker %d", i))
		}
		chans[i] = ch
	}
	return merge(chans), nil
}

// broadcast registers op as a rendezvous broadcast on every worker — all
// of them must call in so the cluster-size-gated run actually starts —
// and returns one representative worker's stream, since every listener
// receives an identical replica of the result; the rest are drained in
// the background so the worker-side fan-out never blocks on an unread
// channel.
func (d *Dispatcher) broadcast(ctx context.Context, op plan.Operator, txn int64, stage int32) (<-chan distributed.Page, error) {
	listeners := int32(len(d.Workers))
	chans := make([]<-chan distributed.Page, len(d.Workers))
	for i, w := range d.Workers {
		ch, err := w.Broadcast(ctx, op, txn, stage, listeners)
		if err != nil {
			return nil, pkgerrors.Wrap(err, fmt.Sprintf("coordinate: broadcast to worker %d", i))
		}
		chans[i] = ch
	}
	for _, ch := range chans[1:] {
		drain(ch)
	}
	return chans[0], nil
}

// exchange registers op as a rendezvous exchange on every worker, one
// hash bucket per worker, and merges the partitions back into one stream.
func (d *Dispatcher) exchange(ctx context.Context, op plan.Operator, hashColumn string, txn int64, stage int32) (<-chan distributed.Page, error) {
	listeners := int32(len(d.Workers))
	chans := make([]<-chan distributed.Page, len(d.Workers))
	for i, w := range d.Workers {
		ch, err := w.Exchange(ctx, op, txn, stage, listeners, hashColumn, int32(i))
		if err != nil {
			return nil, pkgerrors.Wrap(err, fmt.Sprintf("coordinate: exchange to worker %d", i))
		}
		chans[i] = ch
	}
	return merge(chans), nil
}

func drain(ch <-chan distributed.Page) {
	go func() {
		for range ch {
		}
	}()
}

// merge fans multiple page streams into one, closing the output once
// every input has closed.
func merge(chans []<-chan distributed.Page) <-chan distributed.Page {
	out := make(chan distributed.Page)
	var wg sync.WaitGroup
	wg.Add(len(chans))
	for _, ch := range chans {
		go func(ch <-chan distributed.Page) {
			defer wg.Done()
			for p := range ch {
				out <- p
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
