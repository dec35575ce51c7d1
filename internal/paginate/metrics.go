// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package paginate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PagesFetched counts successfully fetched pages per source.
// Use RegisterMetrics to register this with a Prometheus registry.
var PagesFetched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "steamfront_pages_fetched_total",
		Help: "Total number of pages fetched by source",
	},
	[]string{"source"},
)

// RegisterMetrics registers paginate metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(PagesFetched)
}

// RecordPageFetched increments the page counter for source.
func RecordPageFetched(source string) {
	PagesFetched.WithLabelValues(source).Inc()
}
