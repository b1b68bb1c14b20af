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

// Command worker owns one shard of page storage, runs compiled operator
// trees, and answers rendezvous broadcast/exchange calls from its peers
// (spec.md §0/§6).
package main

import (
	"net"
	"net/http"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/config"
	"github.com/castorsql/castor/rpc"
	"github.com/castorsql/castor/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

func main() {
	log := logrus.WithField("component", "worker")

	topology, err := config.LoadTopology("castor.yaml")
	if err != nil {
		log.WithError(err).Fatal("loading castor.yaml")
	}
	cfg, err := config.Load(topology)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	log = log.WithField("worker_id", cfg.WorkerID)

	var addr string
	if cfg.WorkerID < len(cfg.Workers) {
		addr = cfg.Workers[cfg.WorkerID]
	}
	if addr == "" {
		addr = ":0"
	}

	store := storage.NewStore()
	for id, table := range catalog.BootstrapSchemas() {
		log.WithField("table", id).Debug("bootstrapping system table")
		store.CreateTable(table)
	}

	server := rpc.NewWorkerServer(int32(cfg.WorkerID), store)
	server.EnableMetrics(prometheus.DefaultRegisterer)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("listening")
	}

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&rpc.WorkerServiceDesc, server)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			log.WithError(err).Warn("metrics listener exited")
		}
	}()

	log.WithField("addr", lis.Addr()).Info("worker listening")
	if err := grpcServer.Serve(lis); err != nil {
		log.WithError(err).Fatal("serving")
	}
}
