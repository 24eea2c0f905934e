// Copyright 2023 LiveKit, Inc.
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

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const (
	whepClientNamespace string = "whep_client"

	// every local candidate is counted once, when it is sent or discarded
	CandidateDeliveryBatch   = "batch"
	CandidateDeliverySingle  = "single"
	CandidateDeliveryDropped = "dropped"
)

var (
	initialized atomic.Bool

	signalRequests atomic.Uint64
	candidates     atomic.Uint64
	restarts       atomic.Uint64

	promSignalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: whepClientNamespace,
			Name:      "signal_requests",
			Help:      "WHEP HTTP requests by method and response status.",
		},
		[]string{"method", "status"},
	)
	promCandidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: whepClientNamespace,
			Name:      "candidates",
			Help:      "Local ICE candidates by delivery path.",
		},
		[]string{"delivery"},
	)
	promRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: whepClientNamespace,
			Name:      "restarts",
			Help:      "Scheduled session restarts.",
		},
	)
	promState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: whepClientNamespace,
			Name:      "state",
			Help:      "Current session state.",
		},
	)
)

type Stats struct {
	SignalRequests uint64
	Candidates     uint64
	Restarts       uint64
	PacketsIn      uint64
	BytesIn        uint64
}

// Init registers the collectors with the default registry. Recording works without it.
func Init() {
	if initialized.Swap(true) {
		return
	}

	prometheus.MustRegister(promSignalRequests)
	prometheus.MustRegister(promCandidates)
	prometheus.MustRegister(promRestarts)
	prometheus.MustRegister(promState)

	initPacketStats()
}

func RecordSignalRequest(method string, status string) {
	signalRequests.Inc()
	promSignalRequests.WithLabelValues(method, status).Inc()
}

func RecordCandidates(delivery string, count int) {
	if count <= 0 {
		return
	}
	candidates.Add(uint64(count))
	promCandidates.WithLabelValues(delivery).Add(float64(count))
}

func IncrementRestarts() {
	restarts.Inc()
	promRestarts.Inc()
}

func SetState(state int32) {
	promState.Set(float64(state))
}

func GetStats() Stats {
	return Stats{
		SignalRequests: signalRequests.Load(),
		Candidates:     candidates.Load(),
		Restarts:       restarts.Load(),
		PacketsIn:      packetsIn.Load(),
		BytesIn:        bytesIn.Load(),
	}
}
