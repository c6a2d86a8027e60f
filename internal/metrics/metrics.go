// Package metrics provides Prometheus metrics for notekeeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NoteOperations counts note service calls by operation and outcome.
	NoteOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notekeeper",
			Name:      "note_operations_total",
			Help:      "Total number of note operations",
		},
		[]string{"operation", "result"}, // result: "ok", "invalid", "not_found", "unauthorized", "error"
	)

	// DecryptFailures counts stored notes that could not be decrypted on read.
	DecryptFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notekeeper",
			Name:      "note_decrypt_failures_total",
			Help:      "Total number of notes whose content failed to decrypt",
		},
	)

	// LoginAttempts counts logins by outcome.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notekeeper",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts",
		},
		[]string{"result"}, // "ok", "bad_credentials", "blocked", "error"
	)

	// RPCRequestsTotal counts gRPC calls by method and status code.
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notekeeper",
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	// RPCDuration tracks gRPC handling time by method.
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notekeeper",
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// KeysGenerated counts encryption keys generated and persisted by this process.
	KeysGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notekeeper",
			Name:      "encryption_keys_generated_total",
			Help:      "Number of encryption keys generated on first start",
		},
	)
)
