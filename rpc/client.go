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

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/distributed"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// WorkerClient is a thin wrapper around a dialed *grpc.ClientConn to one
// worker, mirroring the original's RpcRemoteExecution/WorkerClient split
// between "which node" and "what call" — every coordinator-to-worker call
// in this package goes through one of these rather than the raw conn.
type WorkerClient struct {
	conn *grpc.ClientConn
}

// DialWorker opens a connection to a worker listening at addr. Callers own
// the returned client's Close.
func DialWorker(ctx context.Context, addr string, opts ...grpc.DialOption) (*WorkerClient, error) {
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	return &WorkerClient{conn: conn}, nil
}

func (c *WorkerClient) Close() error { return c.conn.Close() }

func (c *WorkerClient) Check(ctx context.Context) error {
	out := new(emptypb.Empty)
	return c.conn.Invoke(ctx, "/castor.Worker/Check", new(emptypb.Empty), out)
}

func (c *WorkerClient) ApproxCardinality(ctx context.Context, tableID catalog.TableID) (float64, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.conn.Invoke(ctx, "/castor.Worker/ApproxCardinality", wrapperspb.Int64(int64(tableID)), out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// ColumnStatistics fetches a column's sketch pair, or nil if the worker has
// never observed that column.
func (c *WorkerClient) ColumnStatistics(ctx context.Context, tableID catalog.TableID, column string) (*stats.ColumnStatsSnapshot, error) {
	reqBytes, err := encodeColumnStatisticsRequest(tableID, column)
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, "/castor.Worker/ColumnStatistics", &wrapperspb.BytesValue{Value: reqBytes}, out); err != nil {
		return nil, err
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	snap, err := decodeColumnStatisticsResponse(out.Value)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *WorkerClient) Trace(ctx context.Context, txn int64) ([]StageTiming, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, "/castor.Worker/Trace", wrapperspb.Int64(txn), out); err != nil {
		return nil, err
	}
	return decodeTraceResponse(out.Value)
}

type pageClientStream struct {
	grpc.ClientStream
}

func (s *pageClientStream) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func openStage(ctx context.Context, conn *grpc.ClientConn, method string, reqBytes []byte) (*pageClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: method, ServerStreams: true}
	cs, err := conn.NewStream(ctx, desc, "/castor.Worker/"+method)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&wrapperspb.BytesValue{Value: reqBytes}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &pageClientStream{cs}, nil
}

// pagesOf drains a page-shaped stream into a channel, the client-side mirror
// of server.go's streamPages, closing ch once the stream ends (io.EOF) or
// fails.
func pagesOf(stream *pageClientStream) <-chan distributed.Page {
	out := make(chan distributed.Page)
	go func() {
		defer close(out)
		for {
			m, err := stream.Recv()
			if err != nil {
				return
			}
			p, err := decodePage(m.Value)
			if err != nil {
				out <- distributed.Page{Err: err.Error()}
				return
			}
			out <- p
		}
	}()
	return out
}

// Output asks the worker to run op under txn/stage and stream its single
// recipient's output back.
func (c *WorkerClient) Output(ctx context.Context, op plan.Operator, txn int64, stage int32) (<-chan distributed.Page, error) {
	reqBytes, err := encodeStageRequest(op, txn, stage, 1, "", 0)
	if err != nil {
		return nil, err
	}
	stream, err := openStage(ctx, c.conn, "Output", reqBytes)
	if err != nil {
		return nil, err
	}
	return pagesOf(stream), nil
}

// Broadcast registers this call as one of listeners broadcast recipients
// for (op, txn, stage).
func (c *WorkerClient) Broadcast(ctx context.Context, op plan.Operator, txn int64, stage, listeners int32) (<-chan distributed.Page, error) {
	reqBytes, err := encodeStageRequest(op, txn, stage, listeners, "", 0)
	if err != nil {
		return nil, err
	}
	stream, err := openStage(ctx, c.conn, "Broadcast", reqBytes)
	if err != nil {
		return nil, err
	}
	return pagesOf(stream), nil
}

// Exchange registers this call as the listener for hashBucket among
// listeners exchange recipients for (op, txn, stage), partitioned by
// hashColumn.
func (c *WorkerClient) Exchange(ctx context.Context, op plan.Operator, txn int64, stage, listeners int32, hashColumn string, hashBucket int32) (<-chan distributed.Page, error) {
	reqBytes, err := encodeStageRequest(op, txn, stage, listeners, hashColumn, hashBucket)
	if err != nil {
		return nil, err
	}
	stream, err := openStage(ctx, c.conn, "Exchange", reqBytes)
	if err != nil {
		return nil, err
	}
	return pagesOf(stream), nil
}

// CoordinatorClient wraps a dialed connection to the coordinator, used by
// castorctl and any other submitter of SQL text.
type CoordinatorClient struct {
	conn *grpc.ClientConn
}

func DialCoordinator(ctx context.Context, addr string, opts ...grpc.DialOption) (*CoordinatorClient, error) {
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	return &CoordinatorClient{conn: conn}, nil
}

func (c *CoordinatorClient) Close() error { return c.conn.Close() }

func (c *CoordinatorClient) Check(ctx context.Context) error {
	return c.conn.Invoke(ctx, "/castor.Coordinator/Check", new(emptypb.Empty), new(emptypb.Empty))
}

// Submit runs sql against catalogID, optionally resubmitting an existing
// txn, and streams back the pages the coordinator dispatches.
func (c *CoordinatorClient) Submit(ctx context.Context, sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID, txn *int64) (<-chan distributed.Page, error) {
	reqBytes, err := encodeSubmitRequest(sql, variables, catalogID, txn)
	if err != nil {
		return nil, err
	}
	desc := &grpc.StreamDesc{StreamName: "Submit", ServerStreams: true}
	cs, err := c.conn.NewStream(ctx, desc, "/castor.Coordinator/Submit")
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&wrapperspb.BytesValue{Value: reqBytes}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return pagesOf(&pageClientStream{cs}), nil
}
