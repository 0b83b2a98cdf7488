// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the assessment
// service.
//
// # Description
//
// Metrics cover the conversational loop (turns, tokens, latency), session
// population, and evaluation outcomes. Exposed via the /metrics endpoint
// for Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "viva"

const sessionSubsystem = "session"

// SessionMetrics holds all Prometheus metrics for the assessment service.
//
// # Fields
//
//   - TurnsTotal: Counter of conversational turns by status.
//   - TokensTotal: Counter of completion tokens by direction.
//   - TurnDurationSeconds: Histogram of end-to-end turn latency.
//   - ActiveSessions: Gauge of live sessions in the registry.
//   - EvaluationsTotal: Counter of evaluations by category.
//   - AutoEndsTotal: Counter of circuit-breaker farewells.
type SessionMetrics struct {
	// TurnsTotal counts turns by status.
	// Labels: status (success, fallback, auto_end)
	TurnsTotal *prometheus.CounterVec

	// TokensTotal counts completion-service tokens by direction.
	// Labels: direction (input, output)
	TokensTotal *prometheus.CounterVec

	// TurnDurationSeconds measures end-to-end turn latency.
	TurnDurationSeconds prometheus.Histogram

	// ActiveSessions tracks the live session registry size.
	ActiveSessions prometheus.Gauge

	// EvaluationsTotal counts evaluations by category.
	// Labels: category (green, yellow, red)
	EvaluationsTotal *prometheus.CounterVec

	// AutoEndsTotal counts sessions closed by the time circuit breaker.
	AutoEndsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *SessionMetrics

var initOnce sync.Once

// InitMetrics initializes and registers the default metrics instance.
// Safe to call more than once; registration happens exactly once.
func InitMetrics() *SessionMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &SessionMetrics{
			TurnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: sessionSubsystem,
					Name:      "turns_total",
					Help:      "Total conversational turns by status",
				},
				[]string{"status"},
			),

			TokensTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: sessionSubsystem,
					Name:      "tokens_total",
					Help:      "Total completion tokens by direction",
				},
				[]string{"direction"},
			),

			TurnDurationSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: sessionSubsystem,
					Name:      "turn_duration_seconds",
					Help:      "End-to-end turn latency in seconds",
					Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
				},
			),

			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: sessionSubsystem,
					Name:      "active_sessions",
					Help:      "Number of live sessions in the registry",
				},
			),

			EvaluationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: sessionSubsystem,
					Name:      "evaluations_total",
					Help:      "Total evaluations by score category",
				},
				[]string{"category"},
			),

			AutoEndsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: sessionSubsystem,
					Name:      "auto_ends_total",
					Help:      "Sessions closed by the time circuit breaker",
				},
			),
		}
	})
	return DefaultMetrics
}

// =============================================================================
// Turn Status Labels
// =============================================================================

const (
	// TurnStatusSuccess marks a turn answered by the completion service.
	TurnStatusSuccess = "success"

	// TurnStatusFallback marks a turn answered with the local fallback
	// reply after a completion failure.
	TurnStatusFallback = "fallback"

	// TurnStatusAutoEnd marks a turn short-circuited by the farewell.
	TurnStatusAutoEnd = "auto_end"
)
