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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics are the health/capacity gauges cmd/worker exposes over
// /metrics (SPEC_FULL.md §10): how many stages are currently running and
// how many rendezvous listeners are still waiting on their topic's
// cluster size, so an operator can see a stuck worker before its gRPC
// calls start timing out.
type WorkerMetrics struct {
	ActiveStages prometheus.Gauge
}

// NewWorkerMetrics registers a worker's gauges against reg, the same
// promauto.With(reg) pattern the retrieval pack's arcticdb table package
// uses for its own per-instance counters. pendingListeners is polled on
// each scrape to report distributed.Router.PendingListeners.
func NewWorkerMetrics(reg prometheus.Registerer, workerID int32, pendingListeners func() int) *WorkerMetrics {
	reg = prometheus.WrapRegistererWith(prometheus.Labels{"worker": strconv.Itoa(int(workerID))}, reg)
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "castor_worker_pending_listeners",
		Help: "Number of rendezvous listeners registered but still waiting for the rest of the cluster.",
	}, func() float64 { return float64(pendingListeners()) })
	return &WorkerMetrics{
		ActiveStages: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "castor_worker_active_stages",
			Help: "Number of output/broadcast/exchange stages currently running on this worker.",
		}),
	}
}
