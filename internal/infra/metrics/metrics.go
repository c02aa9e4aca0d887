// Package metrics provides Prometheus metrics for the training-run core:
// run lifecycle counters, polling activity, and provider API drift.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Run Lifecycle ──────────────────────────────────────────────────────────

// RunsCreated counts runs successfully registered with the provider.
var RunsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tinkerd",
	Name:      "runs_created_total",
	Help:      "Total training runs created.",
})

// RunTransitions counts state transitions by destination status.
var RunTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tinkerd",
	Name:      "run_transitions_total",
	Help:      "Total run status transitions.",
}, []string{"to"})

// RunsActive tracks runs currently in a non-terminal state.
var RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tinkerd",
	Name:      "runs_active",
	Help:      "Number of runs not yet in a terminal state.",
})

// ─── Polling ────────────────────────────────────────────────────────────────

// Polls counts successful status fetches across all polling loops.
var Polls = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tinkerd",
	Name:      "polls_total",
	Help:      "Total successful provider status polls.",
})

// PollErrors counts transient fetch failures (the loop keeps ticking).
var PollErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tinkerd",
	Name:      "poll_errors_total",
	Help:      "Total transient polling failures.",
})

// UnknownStatuses counts provider status strings missing from the
// normalization table — a signal of provider API drift.
var UnknownStatuses = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tinkerd",
	Name:      "unknown_provider_statuses_total",
	Help:      "Total provider statuses that fell back to pending.",
})

// ─── Persistence ────────────────────────────────────────────────────────────

// StoreWriteErrors counts best-effort persistence failures.
var StoreWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tinkerd",
	Name:      "store_write_errors_total",
	Help:      "Total failed run-store writes (in-memory state kept).",
})
