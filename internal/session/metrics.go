// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for login and transfer metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// LoginAttempts counts login attempts by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "steamfront_login_attempts_total",
		Help: "Total number of login attempts by result",
	},
	[]string{"result"},
)

// LoginDuration observes how long logins take.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "steamfront_login_duration_seconds",
		Help:    "Login duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// DomainTransfers counts cross-domain cookie transfers by domain and result.
// Use RegisterMetrics to register this with a Prometheus registry.
var DomainTransfers = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "steamfront_domain_transfers_total",
		Help: "Total number of domain transfers by domain and result",
	},
	[]string{"domain", "result"},
)

// RegisterMetrics registers session metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(LoginDuration)
	reg.MustRegister(DomainTransfers)
}

// RecordLogin records the outcome and duration of a login.
func RecordLogin(result string, duration time.Duration) {
	LoginAttempts.WithLabelValues(result).Inc()
	LoginDuration.Observe(duration.Seconds())
}

// RecordTransfer records the outcome of one domain transfer.
func RecordTransfer(domain, result string) {
	DomainTransfers.WithLabelValues(domain, result).Inc()
}
