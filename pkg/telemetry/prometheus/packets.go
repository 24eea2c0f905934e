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

var (
	packetsIn atomic.Uint64
	bytesIn   atomic.Uint64

	promPacketLabels = []string{"kind"}

	promPacketTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: whepClientNamespace,
		Name:      "rtp_packets",
		Help:      "Received RTP packets by track kind.",
	}, promPacketLabels)
	promPacketBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: whepClientNamespace,
		Name:      "rtp_bytes",
		Help:      "Received RTP bytes by track kind.",
	}, promPacketLabels)
)

func initPacketStats() {
	prometheus.MustRegister(promPacketTotal)
	prometheus.MustRegister(promPacketBytes)
}

func IncrementPackets(kind string, count uint64, bytes uint64) {
	packetsIn.Add(count)
	bytesIn.Add(bytes)
	promPacketTotal.WithLabelValues(kind).Add(float64(count))
	promPacketBytes.WithLabelValues(kind).Add(float64(bytes))
}
