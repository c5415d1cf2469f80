package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters, exposed by the worker's /metrics endpoint.
var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatlytics_pages_fetched_total",
		Help: "Source API pages fetched, by resource.",
	}, []string{"resource"})

	RowsSpilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatlytics_rows_spilled_total",
		Help: "Raw records written to the extract spill.",
	})

	RowsAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatlytics_rows_aggregated_total",
		Help: "Spill records consumed by the transformer.",
	})

	RowsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatlytics_rows_upserted_total",
		Help: "Aggregate rows written to the analytics DB, by table.",
	}, []string{"table"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatlytics_etl_runs_total",
		Help: "Completed load activities, by status.",
	}, []string{"status"})
)
