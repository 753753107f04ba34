package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "flowdb"

var (
	FlowsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_saved_total",
			Help:      "Total number of flows converted and stored, labeled by flow status.",
		},
		[]string{"status"},
	)

	FlowsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_deleted_total",
			Help:      "Total number of flow documents deleted.",
		},
	)

	BlobsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blobs_written_total",
			Help:      "Total number of artifacts written to file storage, labeled by slot.",
		},
		[]string{"slot"},
	)

	BlobDeleteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_delete_failures_total",
			Help:      "Total number of artifact deletions that failed during flow deletion.",
		},
	)

	ConversionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_seconds",
			Help:      "Time spent converting a live flow into its document, artifacts included (seconds).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		FlowsSavedTotal,
		FlowsDeletedTotal,
		BlobsWrittenTotal,
		BlobDeleteFailuresTotal,
		ConversionSeconds,
	)
}
