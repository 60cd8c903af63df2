package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every opsdeck collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// Status is 1 for the current SystemStatus label and 0 for the others.
	Status = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsdeck_status",
			Help: "Current simulated system status (1 = active).",
		},
		[]string{"status"},
	)

	// CPU and Memory mirror the simulated vitals.
	CPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsdeck_vitals_cpu_percent",
			Help: "Simulated CPU load in percent.",
		},
	)
	Memory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsdeck_vitals_memory_percent",
			Help: "Simulated memory utilization in percent.",
		},
	)

	// DeploymentsTotal counts recorded deployments by outcome (success, rollback).
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_deployments_total",
			Help: "Simulated deployments recorded in the history ledger.",
		},
		[]string{"status"},
	)

	// ActionsTotal counts completed generic actions.
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_actions_total",
			Help: "Completed simulated generic actions.",
		},
		[]string{"task", "dry_run"},
	)

	// RejectedTotal counts triggers refused because an action was in flight.
	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_triggers_rejected_total",
			Help: "Triggers ignored because another action was in flight.",
		},
		[]string{"kind"},
	)

	// LogEntriesTotal counts emitted log lines by type.
	LogEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_log_entries_total",
			Help: "Log entries emitted by the simulation.",
		},
		[]string{"type"},
	)

	// StreamSubscribers is the number of connected websocket clients.
	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsdeck_stream_subscribers",
			Help: "Connected websocket stream subscribers.",
		},
	)

	// EventsDroppedTotal counts events dropped for slow subscribers.
	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opsdeck_events_dropped_total",
			Help: "State events dropped because a subscriber buffer was full.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Status,
		CPU,
		Memory,
		DeploymentsTotal,
		ActionsTotal,
		RejectedTotal,
		LogEntriesTotal,
		StreamSubscribers,
		EventsDroppedTotal,
	)
}

// SetStatus marks current as the only active status among all.
func SetStatus(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		Status.WithLabelValues(s).Set(v)
	}
}
