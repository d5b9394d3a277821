package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// patternsStored tracks the pattern count per scope after each save.
	patternsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "patterns",
			Help:      "Number of stored patterns per scope",
		},
		[]string{"scope"},
	)

	// clustersStored tracks the cluster count per scope after each save.
	clustersStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "clusters",
			Help:      "Number of stored clusters per scope",
		},
		[]string{"scope"},
	)

	// writesTotal counts atomic write batches.
	// Labels: result (success, error)
	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Total number of atomic write batches",
		},
		[]string{"result"},
	)

	writeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "write_duration_seconds",
			Help:      "Duration of atomic write batches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// corruptFilesDetected counts files rejected as corrupt.
	// Labels: file (patterns, clusters, index, config, session)
	corruptFilesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "corrupt_files_detected_total",
			Help:      "Total number of store files rejected as corrupt",
		},
		[]string{"file"},
	)

	// sessionsEvicted counts session summaries removed by FIFO rotation.
	sessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "sessions_evicted_total",
			Help:      "Total number of session summaries removed by rotation",
		},
	)
)
