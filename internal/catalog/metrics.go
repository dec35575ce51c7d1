// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DescriptionsCached counts descriptions added to resolver caches.
// Use RegisterMetrics to register this with a Prometheus registry.
var DescriptionsCached = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "steamfront_catalog_descriptions_cached_total",
		Help: "Total number of item descriptions cached by source",
	},
	[]string{"source"},
)

// RegisterMetrics registers catalog metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DescriptionsCached)
}

// RecordDescriptionCached increments the cache counter for source.
func RecordDescriptionCached(source string) {
	DescriptionsCached.WithLabelValues(source).Inc()
}
