// Package metrics exposes Prometheus counters for crawl and enrichment
// progress. The serve command mounts the standard /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UnitsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "crawl",
		Name:      "units_completed_total",
		Help:      "Work units (court, date) fully harvested and checkpointed.",
	}, []string{"court"})

	UnitsNoData = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "crawl",
		Name:      "units_no_data_total",
		Help:      "Work units that resolved with no published cause list.",
	}, []string{"court"})

	UnitsBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "crawl",
		Name:      "units_blocked_total",
		Help:      "Work units abandoned because the site firewall blocked us.",
	}, []string{"court"})

	SubunitsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "crawl",
		Name:      "subunits_fetched_total",
		Help:      "Bench cause list pages fetched successfully.",
	}, []string{"court"})

	SubunitsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "crawl",
		Name:      "subunits_failed_total",
		Help:      "Bench cause list fetches that exhausted their retries.",
	}, []string{"court"})

	CasesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "crawl",
		Name:      "cases_upserted_total",
		Help:      "Case rows written by unit commits.",
	}, []string{"court"})

	EnrichmentsOK = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "enrich",
		Name:      "ok_total",
		Help:      "Cases successfully enriched from the detail endpoint.",
	}, []string{"court"})

	EnrichmentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causelist",
		Subsystem: "enrich",
		Name:      "failed_total",
		Help:      "Cases marked failed after the detail endpoint had no data.",
	}, []string{"court"})
)
