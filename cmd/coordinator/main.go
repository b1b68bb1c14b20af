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

// Command coordinator accepts statements over gRPC, plans them, and fans
// the physical plan out across the worker pool (spec.md §0/§6).
package main

import (
	"context"
	"net"
	"time"

	"github.com/castorsql/castor/analyzer"
	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/config"
	"github.com/castorsql/castor/coordinate"
	"github.com/castorsql/castor/planner"
	"github.com/castorsql/castor/rpc"
	"github.com/castorsql/castor/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	log := logrus.WithField("component", "coordinator")

	topology, err := config.LoadTopology("castor.yaml")
	if err != nil {
		log.WithError(err).Fatal("loading castor.yaml")
	}
	cfg, err := config.Load(topology)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	registry := catalog.NewRegistry()
	store := storage.NewStore()
	for _, table := range catalog.BootstrapSchemas() {
		registry.Register(table)
		store.CreateTable(table)
	}

	workers := dialWorkers(log, cfg.Workers)
	for _, w := range workers {
		defer w.Close()
	}

	p := planner.New(analyzer.Analyze(registry), store)
	dispatcher := coordinate.NewDispatcher(workers)
	server := rpc.NewCoordinatorServer(p, dispatcher.Dispatch)

	addr := cfg.Coordinator
	if addr == "" {
		addr = ":0"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("listening")
	}

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&rpc.CoordinatorServiceDesc, server)

	log.WithField("addr", lis.Addr()).WithField("workers", len(workers)).Info("coordinator listening")
	if err := grpcServer.Serve(lis); err != nil {
		log.WithError(err).Fatal("serving")
	}
}

// dialWorkers connects to every configured worker address, skipping any
// left blank (not every WORKER_<i> slot need be filled in a partial local
// cluster). A worker that does not answer within the dial timeout is
// logged and skipped rather than blocking startup of the whole cluster.
func dialWorkers(log *logrus.Entry, addrs []string) []*rpc.WorkerClient {
	var workers []*rpc.WorkerClient
	for i, addr := range addrs {
		if addr == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		w, err := rpc.DialWorker(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
		cancel()
		if err != nil {
			log.WithError(err).WithField("worker", i).Warn("dialing worker")
			continue
		}
		workers = append(workers, w)
	}
	return workers
}
