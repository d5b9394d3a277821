package inbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// bundlesTotal counts handled bundle files.
	// Labels: result (processed, failed)
	bundlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "inbox",
			Name:      "bundles_total",
			Help:      "Total number of inbox bundle files handled",
		},
		[]string{"result"},
	)

	// evolutionsTriggered counts evolution runs started by ingestion.
	evolutionsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "inbox",
			Name:      "evolutions_triggered_total",
			Help:      "Total number of evolution runs triggered by ingested bundles",
		},
	)
)
