// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the custom Prometheus collectors of Creatorhub.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthEvents      *prometheus.CounterVec
	HashDuration    *prometheus.HistogramVec
	Uploads         *prometheus.CounterVec
}

// NewMetrics creates the custom collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creatorhub_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "creatorhub_http_request_duration_seconds",
				Help:    "HTTP request latency by route and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creatorhub_auth_events_total",
				Help: "Credential and session operations by event and outcome kind",
			},
			[]string{"event", "outcome"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "creatorhub_password_hash_duration_seconds",
				Help:    "Wall time of argon2id hash and verify operations",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creatorhub_picture_uploads_total",
				Help: "Profile picture uploads by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.AuthEvents, m.HashDuration, m.Uploads)
	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordAuthEvent counts an auth operation. outcome is "ok" or an error kind.
func (m *Metrics) RecordAuthEvent(event, outcome string) {
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// ObserveHash records the duration of a password hash operation.
func (m *Metrics) ObserveHash(op string, d time.Duration) {
	m.HashDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordUpload counts a picture upload attempt.
func (m *Metrics) RecordUpload(outcome string) {
	m.Uploads.WithLabelValues(outcome).Inc()
}
