// Package observability exports vendor request and job polling metrics to Prometheus.
package observability

import (
	"context"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"aigen/internal/apiclient"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
	polls           *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigen",
			Name:      "vendor_requests_total",
			Help:      "Vendor API requests by vendor, method, endpoint and status code (0 = no response).",
		}, []string{"vendor", "method", "endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aigen",
			Name:      "vendor_request_duration_seconds",
			Help:      "Vendor API request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"vendor", "endpoint"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aigen",
			Name:      "vendor_requests_in_flight",
			Help:      "Vendor API requests currently waiting for an answer.",
		}, []string{"vendor"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigen",
			Name:      "job_polls_total",
			Help:      "Job status polls by vendor and reported status.",
		}, []string{"vendor", "status"}),
	}

	reg.MustRegister(m.requests, m.requestDuration, m.inFlight, m.polls)
	return m
}

// Hooks returns apiclient hooks that feed the request collectors.
func (m *Metrics) Hooks() apiclient.Hooks {
	return apiclient.Hooks{
		OnRequestStart: func(_ context.Context, info apiclient.RequestInfo) {
			m.inFlight.WithLabelValues(info.Vendor).Inc()
		},
		OnRequestEnd: func(_ context.Context, info apiclient.ResponseInfo) {
			m.inFlight.WithLabelValues(info.Vendor).Dec()
			m.requests.WithLabelValues(info.Vendor, info.Method, endpointLabel(info.Endpoint), strconv.Itoa(info.StatusCode)).Inc()
			m.requestDuration.WithLabelValues(info.Vendor, endpointLabel(info.Endpoint)).Observe(info.Duration.Seconds())
		},
	}
}

// ObservePoll counts one job status poll.
func (m *Metrics) ObservePoll(vendor, status string) {
	m.polls.WithLabelValues(vendor, status).Inc()
}

// endpointLabel strips path parameters so job ids do not blow up label cardinality.
func endpointLabel(endpoint string) string {
	const jobGet = "/job/get/"
	if len(endpoint) > len(jobGet) && strings.HasPrefix(endpoint, jobGet) {
		return jobGet + ":id"
	}
	return endpoint
}
