// Package metrics exposes Satori's in-process Prometheus counters and
// histograms. These are ambient telemetry only (SPEC_FULL.md §4.G+): no
// network scraping endpoint is started unless the caller mounts
// promhttp.Handler() itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolCalls counts every MCP tool invocation by tool name and outcome.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "satori",
		Name:      "tool_calls_total",
		Help:      "Total number of MCP tool invocations.",
	}, []string{"tool", "outcome"})

	// ToolDuration tracks tool handler latency in seconds.
	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "satori",
		Name:      "tool_call_duration_seconds",
		Help:      "MCP tool invocation latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	// IndexRuns counts index orchestrator runs by operation and terminal status.
	IndexRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "satori",
		Name:      "index_runs_total",
		Help:      "Total number of index lifecycle operations.",
	}, []string{"operation", "status"})

	// IndexedChunks tracks the number of chunks embedded per run.
	IndexedChunks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "satori",
		Name:      "indexed_chunks",
		Help:      "Number of chunks produced by a single index run.",
		Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 20000},
	}, []string{"codebase"})

	// SearchTotal counts search_codebase invocations.
	SearchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "satori",
		Name:      "search_total",
		Help:      "Total number of search_codebase invocations.",
	}, []string{"profile"})

	// SearchLatency tracks end-to-end search_codebase latency in seconds.
	SearchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "satori",
		Name:      "search_latency_seconds",
		Help:      "search_codebase pipeline latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"profile"})

	// SearchResultsReturned tracks result-set size returned by hybrid search.
	SearchResultsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "satori",
		Name:      "search_results_returned",
		Help:      "Number of hits returned by a search query.",
		Buckets:   []float64{0, 1, 5, 10, 20, 50},
	}, []string{"codebase"})

	// WatcherEvents counts filesystem watcher events by kind.
	WatcherEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "satori",
		Name:      "watcher_events_total",
		Help:      "Total number of debounced filesystem watcher batches processed.",
	}, []string{"codebase"})

	// CompletionProofs counts completion-marker proof outcomes.
	CompletionProofs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "satori",
		Name:      "completion_proofs_total",
		Help:      "Total number of completion-marker proof checks, by outcome.",
	}, []string{"outcome"})
)
