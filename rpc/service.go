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

// Hand-registered grpc.ServiceDesc values for the worker and coordinator
// services (spec.md §6). There is no .proto file behind these — the
// message types are google.golang.org/protobuf well-known types
// (Empty/Int64Value/DoubleValue/BytesValue), so there is nothing for
// protoc to generate; WorkerServiceDesc/CoordinatorServiceDesc are the
// hand-written equivalent of what protoc-gen-go-grpc would otherwise emit.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func workerCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*WorkerServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/castor.Worker/Check"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*WorkerServer).Check(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func workerApproxCardinalityHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*WorkerServer).ApproxCardinality(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/castor.Worker/ApproxCardinality"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*WorkerServer).ApproxCardinality(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func workerColumnStatisticsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*WorkerServer).ColumnStatistics(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/castor.Worker/ColumnStatistics"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*WorkerServer).ColumnStatistics(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func workerTraceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*WorkerServer).Trace(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/castor.Worker/Trace"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*WorkerServer).Trace(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

type workerStageStream struct {
	grpc.ServerStream
}

func (s *workerStageStream) Send(m *wrapperspb.BytesValue) error { return s.ServerStream.SendMsg(m) }

func workerOutputHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*WorkerServer).Output(req, &workerStageStream{stream})
}

func workerBroadcastHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*WorkerServer).Broadcast(req, &workerStageStream{stream})
}

func workerExchangeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*WorkerServer).Exchange(req, &workerStageStream{stream})
}

// WorkerServiceDesc is registered on a worker's *grpc.Server with
// s.RegisterService(&rpc.WorkerServiceDesc, workerServer).
var WorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: "castor.Worker",
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: workerCheckHandler},
		{MethodName: "ApproxCardinality", Handler: workerApproxCardinalityHandler},
		{MethodName: "ColumnStatistics", Handler: workerColumnStatisticsHandler},
		{MethodName: "Trace", Handler: workerTraceHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Output", Handler: workerOutputHandler, ServerStreams: true},
		{StreamName: "Broadcast", Handler: workerBroadcastHandler, ServerStreams: true},
		{StreamName: "Exchange", Handler: workerExchangeHandler, ServerStreams: true},
	},
}

func coordinatorCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*CoordinatorServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/castor.Coordinator/Check"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*CoordinatorServer).Check(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func coordinatorSubmitHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*CoordinatorServer).Submit(req, &workerStageStream{stream})
}

// CoordinatorServiceDesc is registered on a coordinator's *grpc.Server
// with s.RegisterService(&rpc.CoordinatorServiceDesc, coordinatorServer).
var CoordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: "castor.Coordinator",
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: coordinatorCheckHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Submit", Handler: coordinatorSubmitHandler, ServerStreams: true},
	},
}
