// Package metrics exposes the advisory Prometheus counters the four cores
// report. Profiling is advisory: nothing in this package affects
// correctness.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch (component C)
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_tasks_dispatched_total",
			Help: "Total number of CPU tasks dispatched",
		},
		[]string{"detached"},
	)

	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_tasks_finished_total",
			Help: "Total number of CPU tasks that finished execution",
		},
		[]string{},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_jobs_completed_total",
			Help: "Total number of CPU jobs that reached the completed state",
		},
		[]string{},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginecore_dispatch_workers_active",
			Help: "Number of dispatcher workers currently running a task",
		},
	)

	// Workflow graph (component D)
	GraphFinalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_workflow_finalizations_total",
			Help: "Total number of workflow graph finalization attempts",
		},
		[]string{"result"},
	)

	NodeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_workflow_node_executions_total",
			Help: "Total number of workflow node executions",
		},
		[]string{"node"},
	)

	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enginecore_workflow_execution_duration_seconds",
			Help:    "Wall-clock duration of a full workflow graph execution",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Resource provider (components F, G, H)
	ResourceEntriesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_resource_entries_scanned_total",
			Help: "Total number of resource entries registered by the scanner",
		},
		[]string{"kind"},
	)

	RequestsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_resource_requests_served_total",
			Help: "Total number of resource requests that reached a provided state",
		},
		[]string{"outcome"},
	)

	ContainersLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginecore_resource_containers_live",
			Help: "Number of resource containers currently referenced by at least one request",
		},
	)

	HotReloadEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginecore_resource_hot_reload_events_total",
			Help: "Total number of hot-reload events processed",
		},
		[]string{"kind"},
	)

	// Render backend (components I, J, K)
	FrameLifetimePages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginecore_render_frame_lifetime_pages",
			Help: "Number of pages currently owned by the frame-lifetime allocator",
		},
	)

	BuffersLive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enginecore_render_buffers_live",
			Help: "Number of live render buffers by family",
		},
		[]string{"family"},
	)

	ImagesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginecore_render_images_live",
			Help: "Number of live render images",
		},
	)

	PipelineLayoutCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginecore_render_pipeline_layout_cache_size",
			Help: "Number of distinct pipeline layouts currently cached",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler, for embedding into
// whatever server the `serve` command runs.
func Handler() http.Handler {
	return promhttp.Handler()
}
