package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiaudit_http_requests_total",
		Help: "Total number of HTTP calls that passed through the request logger.",
	},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apiaudit_http_request_duration_seconds",
		Help:    "Time from receiving a call to having its response fully buffered.",
		Buckets: prometheus.DefBuckets,
	})

	AuditEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiaudit_audit_entries_total",
		Help: "Total number of audit entries committed to the store.",
	},
		[]string{"action", "status"},
	)

	AuditStoreFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apiaudit_audit_store_failures_total",
		Help: "Total number of audit entries the store failed to commit.",
	})

	BodiesTruncatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiaudit_bodies_truncated_total",
		Help: "Total number of bodies that exceeded the capture ceiling.",
	},
		[]string{"direction"},
	)

	OutboxTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiaudit_outbox_tasks_total",
		Help: "Total number of outbox tasks handed to the producer, by result.",
	},
		[]string{"result"},
	)

	UserCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apiaudit_user_cache_items",
		Help: "Current number of users in the authentication cache.",
	})
)
