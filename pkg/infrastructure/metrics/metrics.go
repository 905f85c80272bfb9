// Package metrics exposes Prometheus counters for needs list activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: no list ids, actors or items.
var (
	// NeedsListCreatedTotal counts generated needs lists by phase.
	NeedsListCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "needslist_created_total",
		Help: "Total number of needs lists created, by phase.",
	}, []string{"phase"})

	// TransitionTotal counts successful workflow transitions.
	TransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "needslist_transition_total",
		Help: "Total number of needs list transitions, by operation and target status.",
	}, []string{"operation", "to"})

	// ScopeConflictTotal counts generation attempts that hit an active overlapping list.
	ScopeConflictTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "needslist_scope_conflict_total",
		Help: "Total number of scope conflicts detected, by outcome (blocked/superseded).",
	}, []string{"outcome"})

	// OperationDeniedTotal counts rejected operations by reason.
	OperationDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "needslist_operation_denied_total",
		Help: "Total number of denied operations, by operation and reason.",
	}, []string{"operation", "reason"})

	// LineOverrideTotal counts quantity overrides.
	LineOverrideTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "needslist_line_override_total",
		Help: "Total number of needs list line quantity overrides.",
	})
)

func RecordCreated(phase string) {
	NeedsListCreatedTotal.WithLabelValues(phase).Inc()
}

func RecordTransition(operation, to string) {
	TransitionTotal.WithLabelValues(operation, to).Inc()
}

func RecordScopeConflict(outcome string) {
	ScopeConflictTotal.WithLabelValues(outcome).Inc()
}

func RecordDenied(operation, reason string) {
	OperationDeniedTotal.WithLabelValues(operation, reason).Inc()
}

func RecordLineOverride() {
	LineOverrideTotal.Inc()
}

// WriteTextfile dumps every registered metric in the text exposition format,
// for collection by a node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
