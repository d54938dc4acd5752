// Copyright The elbdrain Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package deploy

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	providerCalls *prometheus.CounterVec
	polls         prometheus.Counter
	skipped       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elbdrain_provider_calls_total",
				Help: "Mutating provider calls issued, by operation.",
			},
			[]string{"operation"},
		),
		polls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "elbdrain_state_polls_total",
				Help: "Membership state polls issued while waiting for convergence.",
			},
		),
		skipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "elbdrain_skipped_load_balancers_total",
				Help: "Load balancers skipped because validation failed.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.providerCalls, m.polls, m.skipped)
	}
	return m
}
