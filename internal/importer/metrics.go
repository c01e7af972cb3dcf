package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_items_total",
		Help: "Products processed by imports, by outcome and action",
	}, []string{"outcome", "action"})

	itemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_item_duration_seconds",
		Help:    "Time spent pushing one product to the catalog",
		Buckets: prometheus.DefBuckets,
	})

	sessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_sessions_total",
		Help: "Import sessions by final state",
	}, []string{"status"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "import_sessions_active",
		Help: "Imports currently running in this process",
	})
)
