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

package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
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

// runUp boots one coordinator and config.Config.WorkerCount workers as
// goroutines of this single process (SPEC_FULL.md §0's "local
// single-process clusters"), each still talking over real gRPC/TCP so
// the wiring exercised here is identical to running cmd/coordinator and
// cmd/worker as separate processes.
func runUp(args []string) {
	log := logrus.WithField("component", "castorctl")

	topology, err := config.LoadTopology("castor.yaml")
	if err != nil {
		log.WithError(err).Fatal("loading castor.yaml")
	}
	cfg, err := config.Load(topology)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 1
	}

	workerAddrs := make([]string, cfg.WorkerCount)
	for i := range workerAddrs {
		addr := ""
		if i < len(cfg.Workers) {
			addr = cfg.Workers[i]
		}
		workerAddrs[i] = startWorker(log, int32(i), addr)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	workers := make([]*rpc.WorkerClient, len(workerAddrs))
	for i, addr := range workerAddrs {
		w, err := rpc.DialWorker(dialCtx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.WithError(err).WithField("worker", i).Fatal("dialing worker")
		}
		workers[i] = w
	}

	startCoordinator(log, cfg.Coordinator, workers)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func startWorker(log *logrus.Entry, id int32, addr string) string {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	store := storage.NewStore()
	for _, table := range catalog.BootstrapSchemas() {
		store.CreateTable(table)
	}
	server := rpc.NewWorkerServer(id, store)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).WithField("worker", id).Fatal("listening")
	}
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&rpc.WorkerServiceDesc, server)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).WithField("worker", id).Warn("worker exited")
		}
	}()
	log.WithField("worker", id).WithField("addr", lis.Addr()).Info("worker up")
	return lis.Addr().String()
}

func startCoordinator(log *logrus.Entry, addr string, workers []*rpc.WorkerClient) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	registry := catalog.NewRegistry()
	store := storage.NewStore()
	for _, table := range catalog.BootstrapSchemas() {
		registry.Register(table)
		store.CreateTable(table)
	}

	p := planner.New(analyzer.Analyze(registry), store)
	dispatcher := coordinate.NewDispatcher(workers)
	server := rpc.NewCoordinatorServer(p, dispatcher.Dispatch)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("listening")
	}
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&rpc.CoordinatorServiceDesc, server)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Warn("coordinator exited")
		}
	}()
	log.WithField("addr", lis.Addr()).Info("coordinator up")
}
