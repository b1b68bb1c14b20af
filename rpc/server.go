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

package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/distributed"
	"github.com/castorsql/castor/exec"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/castorsql/castor/storage"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	uuid "github.com/satori/go.uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// WorkerServer implements the worker side of the RPC surface (spec.md
// §6): `output`, `broadcast`, `exchange`, `approx_cardinality`,
// `column_statistics`, `trace`, `check`. It owns this worker's storage
// and rendezvous router; handlers below adapt gRPC's wire shapes to the
// distributed/exec/storage packages that do the actual work.
type WorkerServer struct {
	ID      int32
	Store   *storage.Store
	Router  *distributed.Router
	Metrics *WorkerMetrics

	mu     sync.Mutex
	traces map[int64][]StageTiming
}

func NewWorkerServer(id int32, store *storage.Store) *WorkerServer {
	return &WorkerServer{ID: id, Store: store, Router: distributed.NewRouter(), traces: make(map[int64][]StageTiming)}
}

// EnableMetrics registers this worker's health/capacity gauges against
// reg. Optional: a WorkerServer with no metrics enabled behaves
// identically, just without /metrics output (see trackStage's nil check).
func (w *WorkerServer) EnableMetrics(reg prometheus.Registerer) {
	w.Metrics = NewWorkerMetrics(reg, w.ID, w.Router.PendingListeners)
}

// trackStage increments the active-stage gauge for the duration of one
// Output/Broadcast/Exchange call, a no-op if Metrics is nil (tests don't
// need a registry).
func (w *WorkerServer) trackStage() func() {
	if w.Metrics == nil {
		return func() {}
	}
	w.Metrics.ActiveStages.Inc()
	return w.Metrics.ActiveStages.Dec
}

func (w *WorkerServer) recordStage(txn int64, stage int32, start time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.traces[txn] = append(w.traces[txn], StageTiming{Stage: stage, WorkerID: w.ID, Micros: time.Since(start).Microseconds()})
}

// startStageSpan opens an opentracing span tagging this stage's
// correlation triple, the cross-process counterpart to the in-memory
// StageTiming records trace(txn) returns: a tracing backend's view of
// the same stage a client sees timed in trace()'s response.
func (w *WorkerServer) startStageSpan(name string, txn int64, stage int32) opentracing.Span {
	span := opentracing.GlobalTracer().StartSpan(name)
	span.SetTag("txn", txn)
	span.SetTag("stage", stage)
	span.SetTag("worker", w.ID)
	return span
}

func (w *WorkerServer) Check(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	return in, nil
}

// ApproxCardinality returns a table's cheap row-count estimate (spec.md
// §6), the same number `Heap.ApproxCardinality` gives the optimizer
// locally, exposed for a coordinator that has not paged a table's heap in
// yet.
func (w *WorkerServer) ApproxCardinality(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.DoubleValue, error) {
	h, ok := w.Store.Table(in.Value)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no such table %d", in.Value)
	}
	return wrapperspb.Double(float64(h.ApproxCardinality())), nil
}

// ColumnStatistics returns one column's merge-safe sketch pair, or an
// empty payload if the column has never been observed (spec.md §6: "optional
// bytes").
func (w *WorkerServer) ColumnStatistics(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	req, err := decodeColumnStatisticsRequest(in.Value)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	h, ok := w.Store.Table(req.TableID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no such table %d", req.TableID)
	}
	cs, ok := h.Stats().Columns[req.ColumnName]
	if !ok {
		return &wrapperspb.BytesValue{}, nil
	}
	out, err := encodeColumnStatisticsResponse(cs.Snapshot())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return &wrapperspb.BytesValue{Value: out}, nil
}

// Trace returns the per-stage timing records this worker accumulated for
// txn (spec.md §6).
func (w *WorkerServer) Trace(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.BytesValue, error) {
	w.mu.Lock()
	stages := append([]StageTiming{}, w.traces[in.Value]...)
	w.mu.Unlock()
	out, err := encodeTraceResponse(stages)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return &wrapperspb.BytesValue{Value: out}, nil
}

// Output runs expr locally under txn and streams its output to exactly
// one listener: the caller. No rendezvous is needed since there is only
// ever one recipient (spec.md §4.9's "if only one listener is expected,
// the operator is started immediately"), so this bypasses the Router
// entirely rather than registering a one-listener topic with itself.
func (w *WorkerServer) Output(req *wrapperspb.BytesValue, stream grpc.ServerStream) error {
	op, dto, err := decodeStageRequest(req.Value)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	defer w.trackStage()()
	span := w.startStageSpan("output", dto.Txn, dto.Stage)
	defer span.Finish()
	start := time.Now()
	defer w.recordStage(dto.Txn, dto.Stage, start)

	q, err := exec.Compile(op, w.Store)
	if err != nil {
		return sendPage(stream, distributed.Page{Err: err.Error()})
	}
	sess := session.New(dto.Txn, nil, nil)
	for {
		batch, err := q.Next(sess)
		if err != nil {
			return sendPage(stream, distributed.Page{Err: err.Error()})
		}
		if batch == nil {
			return nil
		}
		if err := sendPage(stream, distributed.Page{Batch: batch}); err != nil {
			return err
		}
	}
}

// Broadcast registers the caller as a broadcast listener for (expr, txn,
// stage) and streams back whatever the rendezvoused run produces (spec.md
// §4.9).
func (w *WorkerServer) Broadcast(req *wrapperspb.BytesValue, stream grpc.ServerStream) error {
	op, dto, err := decodeStageRequest(req.Value)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	fp, err := distributed.Fingerprint(op)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	defer w.trackStage()()
	span := w.startStageSpan("broadcast", dto.Txn, dto.Stage)
	defer span.Finish()
	start := time.Now()
	defer w.recordStage(dto.Txn, dto.Stage, start)

	key := distributed.Key{Expr: fp, Txn: dto.Txn, Stage: dto.Stage}
	sess := session.New(dto.Txn, nil, nil)
	ch := w.Router.RegisterBroadcast(key, int(dto.Listeners), op, w.Store, sess)
	return streamPages(stream, ch)
}

// Exchange registers the caller as an exchange listener tagged with its
// hash bucket and streams back its partition of the rendezvoused run
// (spec.md §4.9).
func (w *WorkerServer) Exchange(req *wrapperspb.BytesValue, stream grpc.ServerStream) error {
	op, dto, err := decodeStageRequest(req.Value)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	fp, err := distributed.Fingerprint(op)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	defer w.trackStage()()
	span := w.startStageSpan("exchange", dto.Txn, dto.Stage)
	defer span.Finish()
	start := time.Now()
	defer w.recordStage(dto.Txn, dto.Stage, start)

	key := distributed.Key{Expr: fp, Txn: dto.Txn, Stage: dto.Stage}
	sess := session.New(dto.Txn, nil, nil)
	ch := w.Router.RegisterExchange(key, int(dto.Listeners), dto.HashBucket, dto.HashColumn, op, w.Store, sess)
	return streamPages(stream, ch)
}

func sendPage(stream grpc.ServerStream, p distributed.Page) error {
	b, err := encodePage(p)
	if err != nil {
		return err
	}
	return stream.SendMsg(&wrapperspb.BytesValue{Value: b})
}

func streamPages(stream grpc.ServerStream, ch <-chan distributed.Page) error {
	for p := range ch {
		if err := sendPage(stream, p); err != nil {
			return err
		}
	}
	return nil
}

// Planner turns parsed SQL into a physical plan ready for exec.Compile or
// dispatch across the cluster. The rpc package depends only on this
// interface rather than the analyzer/optimizer packages directly, the
// same seam the coordinator binary (cmd/coordinator) fills in with its
// real parse-then-optimize pipeline.
type Planner interface {
	Plan(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID) (plan.Operator, error)
}

// CoordinatorServer implements the coordinator side of the RPC surface:
// `submit` and `check` (spec.md §6). Submit assigns a fresh, monotonic
// transaction id unless the caller is resubmitting one (idempotent
// resubmission per spec.md §7), then hands the compiled plan to Dispatch.
type CoordinatorServer struct {
	Planner  Planner
	Dispatch func(op plan.Operator, txn int64) (<-chan distributed.Page, error)

	mu      sync.Mutex
	nextTxn int64
}

func NewCoordinatorServer(planner Planner, dispatch func(op plan.Operator, txn int64) (<-chan distributed.Page, error)) *CoordinatorServer {
	return &CoordinatorServer{Planner: planner, Dispatch: dispatch}
}

func (c *CoordinatorServer) Check(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	return in, nil
}

func (c *CoordinatorServer) allocateTxn() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTxn++
	return c.nextTxn
}

// Submit parses and plans sql, assigns (or reuses) a transaction id, and
// streams back the pages the dispatched plan produces (spec.md §6). A
// fresh uuid token is minted for each call; it is not logged, returned to
// the client or passed to Dispatch, and `trace(txn)` keys off txn alone.
func (c *CoordinatorServer) Submit(req *wrapperspb.BytesValue, stream grpc.ServerStream) error {
	sql, variables, catalogID, txn, err := decodeSubmitRequest(req.Value)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	token, err := uuid.NewV4()
	if err != nil {
		return status.Errorf(codes.Internal, "%v", err)
	}
	_ = token // minted per call and not used further; trace() keys off txn alone

	op, err := c.Planner.Plan(sql, variables, catalogID)
	if err != nil {
		return sendPage(stream, distributed.Page{Err: err.Error()})
	}
	if txn == nil {
		t := c.allocateTxn()
		txn = &t
	}
	ch, err := c.Dispatch(op, *txn)
	if err != nil {
		return sendPage(stream, distributed.Page{Err: err.Error()})
	}
	return streamPages(stream, ch)
}
