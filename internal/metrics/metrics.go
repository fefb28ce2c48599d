// Copyright 2025 Tom Barlow
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

// Package metrics declares the Prometheus series LogService exposes on
// /metrics: actor dispatch latency, interpreter step counts, and
// the log writer's queue depth and batch throughput.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	writerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stagehand_logstore_writer_queue_depth",
			Help: "Number of log records enqueued but not yet committed by the writer goroutine.",
		},
	)

	batchesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_logstore_batches_written_total",
			Help: "Total number of write-batch transactions committed by the log writer.",
		},
	)

	actorDispatchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stagehand_actor_dispatch_seconds",
			Help:    "Time spent executing one actor action, labeled by actor and action name.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"actor", "action"},
	)

	interpreterSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_interpreter_steps_total",
			Help: "Total transitions executed by interpreters, labeled by node id and outcome.",
		},
		[]string{"node_id", "outcome"},
	)
)

// SetWriterQueueDepth reports the log writer's current pending-record count.
func SetWriterQueueDepth(n int) {
	writerQueueDepth.Set(float64(n))
}

// RecordBatchWritten increments the committed-batch counter.
func RecordBatchWritten() {
	batchesWritten.Inc()
}

// ObserveActorDispatch records the wall-clock duration of one actor.action
// invocation.
func ObserveActorDispatch(actor, action string, d time.Duration) {
	actorDispatchSeconds.WithLabelValues(actor, action).Observe(d.Seconds())
}

// RecordInterpreterStep increments the step counter for nodeID. outcome is
// one of "progressed", "terminated", "failed", "no_eligible_transition".
func RecordInterpreterStep(nodeID, outcome string) {
	interpreterSteps.WithLabelValues(nodeID, outcome).Inc()
}

// Handler exposes the process's default Prometheus registry via the
// standard promhttp.Handler().
func Handler() http.Handler {
	return promhttp.Handler()
}
