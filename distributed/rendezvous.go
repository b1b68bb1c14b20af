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

// Package distributed implements the rendezvous protocol a worker uses to
// fan a compiled stage out to the rest of the cluster (spec.md §4.9). The
// coordinator splits a physical plan into stages at Broadcast/Exchange
// boundaries and asks every worker to run the same stage under the same
// (expr, txn, stage) key; the Router here is what lets the first arrivals
// wait for the rest of the cluster before the stage actually starts.
package distributed

import (
	"sort"
	"sync"

	"github.com/castorsql/castor/exec"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/castorsql/castor/storage"
	"github.com/mitchellh/hashstructure"
)

// Key identifies one rendezvous: a stage of a plan, under a transaction.
// Expr fingerprints the physical plan tree so that every worker asked to
// run the same stage of the same query lands on the same map entry.
type Key struct {
	Expr  uint64
	Txn   int64
	Stage int32
}

// Fingerprint hashes a physical plan into the Expr component of a Key, the
// Go equivalent of comparing the coordinator's serialized expr bytes for
// equality (worker/worker.rs keys its maps on the deserialized Expr
// itself, which is comparable; Go operator trees hold non-comparable
// fields such as slices, so they are hashed instead).
func Fingerprint(op plan.Operator) (uint64, error) {
	return hashstructure.Hash(op, nil)
}

// Page is one unit of a stage's output stream: either a batch of rows or
// an error, never both (spec.md §7). A receiver that sees Err non-empty
// must treat the stage as failed and stop reading.
type Page struct {
	Batch *kernel.RecordBatch
	Err   string
}

type broadcastEntry struct {
	listeners []chan Page
}

type exchangeListener struct {
	bucket int32
	ch     chan Page
}

type exchangeEntry struct {
	hashColumn string
	listeners  []exchangeListener
}

// Router holds one worker's in-flight rendezvous topics. A single Router
// is shared by every RPC handler on a worker (spec.md §6).
type Router struct {
	mu        sync.Mutex
	broadcast map[Key]*broadcastEntry
	exchange  map[Key]*exchangeEntry
}

func NewRouter() *Router {
	return &Router{
		broadcast: make(map[Key]*broadcastEntry),
		exchange:  make(map[Key]*exchangeEntry),
	}
}

// PendingListeners counts listeners still waiting on a topic whose
// cluster size has not yet been reached — the backpressure signal
// cmd/worker's metrics gauge surfaces, since a topic stuck here means
// some peer worker has not called Broadcast/Exchange yet.
func (r *Router) PendingListeners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.broadcast {
		n += len(e.listeners)
	}
	for _, e := range r.exchange {
		n += len(e.listeners)
	}
	return n
}

// RegisterBroadcast adds a listener for key's broadcast topic and returns
// the channel it will receive pages on. clusterSize is how many workers
// (including this one) are expected to register before the stage starts —
// threaded through from each request rather than fixed on the Router,
// mirroring the original reading WORKER_COUNT fresh on every call. Once
// clusterSize listeners have registered, the stage rooted at op is
// compiled and run once, with every batch it produces sent to every
// listener (spec.md §4.9). The channel is closed after the final page.
func (r *Router) RegisterBroadcast(key Key, clusterSize int, op plan.Operator, store *storage.Store, sess *session.Session) <-chan Page {
	ch := make(chan Page, 1)

	r.mu.Lock()
	entry, ok := r.broadcast[key]
	if !ok {
		entry = &broadcastEntry{}
		r.broadcast[key] = entry
	}
	entry.listeners = append(entry.listeners, ch)
	ready := len(entry.listeners) == clusterSize
	var listeners []chan Page
	if ready {
		delete(r.broadcast, key)
		listeners = entry.listeners
	}
	r.mu.Unlock()

	if ready {
		go runBroadcast(op, store, sess, listeners)
	}
	return ch
}

// RegisterExchange adds a listener for key's exchange topic, tagged with
// the hash bucket it owns. Once clusterSize listeners have registered, the
// stage rooted at op is compiled and run once, with each output batch
// partitioned by hashing hashColumn and each partition sent only to the
// listener that owns its bucket (spec.md §4.9).
func (r *Router) RegisterExchange(key Key, clusterSize int, bucket int32, hashColumn string, op plan.Operator, store *storage.Store, sess *session.Session) <-chan Page {
	ch := make(chan Page, 1)

	r.mu.Lock()
	entry, ok := r.exchange[key]
	if !ok {
		entry = &exchangeEntry{hashColumn: hashColumn}
		r.exchange[key] = entry
	}
	entry.listeners = append(entry.listeners, exchangeListener{bucket: bucket, ch: ch})
	ready := len(entry.listeners) == clusterSize
	var listeners []exchangeListener
	var column string
	if ready {
		delete(r.exchange, key)
		listeners = entry.listeners
		column = entry.hashColumn
	}
	r.mu.Unlock()

	if ready {
		sort.Slice(listeners, func(i, j int) bool { return listeners[i].bucket < listeners[j].bucket })
		go runExchange(op, store, sess, column, listeners)
	}
	return ch
}

func runBroadcast(op plan.Operator, store *storage.Store, sess *session.Session, listeners []chan Page) {
	defer closeAll(listeners)
	q, err := exec.Compile(op, store)
	if err != nil {
		sendAll(listeners, Page{Err: err.Error()})
		return
	}
	for {
		batch, err := q.Next(sess)
		if err != nil {
			sendAll(listeners, Page{Err: err.Error()})
			return
		}
		if batch == nil {
			return
		}
		sendAll(listeners, Page{Batch: batch})
	}
}

func sendAll(listeners []chan Page, p Page) {
	for _, ch := range listeners {
		ch <- p
	}
}

func closeAll(listeners []chan Page) {
	for _, ch := range listeners {
		close(ch)
	}
}

func runExchange(op plan.Operator, store *storage.Store, sess *session.Session, hashColumn string, listeners []exchangeListener) {
	chans := make([]chan Page, len(listeners))
	for i, l := range listeners {
		chans[i] = l.ch
	}
	defer closeAll(chans)

	q, err := exec.Compile(op, store)
	if err != nil {
		sendAll(chans, Page{Err: err.Error()})
		return
	}
	for {
		batch, err := q.Next(sess)
		if err != nil {
			sendAll(chans, Page{Err: err.Error()})
			return
		}
		if batch == nil {
			return
		}
		parts, err := partition(batch, hashColumn, len(listeners))
		if err != nil {
			sendAll(chans, Page{Err: err.Error()})
			return
		}
		for i, ch := range chans {
			ch <- Page{Batch: parts[i]}
		}
	}
}

// partition splits batch into workers RecordBatches by hashing hashColumn,
// one output per worker in bucket order (spec.md §4.9). A single worker
// needs no hashing at all.
func partition(batch *kernel.RecordBatch, hashColumn string, workers int) ([]*kernel.RecordBatch, error) {
	if workers == 1 {
		return []*kernel.RecordBatch{batch}, nil
	}
	hashes, err := batch.HashColumns([]string{hashColumn})
	if err != nil {
		return nil, err
	}
	masks := make([]*kernel.BoolArray, workers)
	for i := range masks {
		masks[i] = kernel.NewBoolArrayCap(batch.Len())
	}
	for i := 0; i < hashes.Len(); i++ {
		bucket := int(hashes.Get(i) % uint64(workers))
		for w := 0; w < workers; w++ {
			masks[w].Push(w == bucket, true)
		}
	}
	out := make([]*kernel.RecordBatch, workers)
	for w, mask := range masks {
		out[w] = batch.Compress(mask)
	}
	return out, nil
}
