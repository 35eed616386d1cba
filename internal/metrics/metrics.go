package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_provider_requests_total",
			Help: "Total number of provider fetches",
		},
		[]string{"provider", "status"}, // success, error, timeout
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbwatch_provider_request_duration_seconds",
			Help:    "Duration of provider fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbwatch_provider_failovers_total",
			Help: "Total number of primary provider changes",
		},
	)

	ProviderQuotaRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbwatch_provider_quota_remaining",
			Help: "Remaining request quota reported by a provider",
		},
		[]string{"provider"},
	)

	// Merge and detection metrics
	EventsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_events_merged_total",
			Help: "Total number of merged events produced per sport",
		},
		[]string{"sport"},
	)

	OffersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_offers_skipped_total",
			Help: "Total number of offers ignored by the detector",
		},
		[]string{"reason"}, // missing, unsupported_format, invalid
	)

	OpportunitiesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_opportunities_detected_total",
			Help: "Total number of arbitrage opportunities detected",
		},
		[]string{"sport", "risk"},
	)

	BestProfit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbwatch_best_profit_percentage",
			Help: "Best profit percentage seen in the latest scan",
		},
		[]string{"sport"},
	)

	// Scan metrics
	Scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_scans_total",
			Help: "Total number of sport scans",
		},
		[]string{"status"}, // success, partial, empty
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arbwatch_scan_duration_seconds",
			Help:    "Duration of a sport scan",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Alert metrics
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_alerts_triggered_total",
			Help: "Total number of alerts triggered",
		},
		[]string{"severity"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"status", "type"}, // success/error, discord/smtp/log
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbwatch_alerts_suppressed_total",
			Help: "Total number of alerts suppressed due to cooldown",
		},
	)

	// Publisher metrics
	StreamPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_stream_publishes_total",
			Help: "Total number of opportunities published to the stream",
		},
		[]string{"status"},
	)

	// Account cache metrics
	AccountCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_account_cache_lookups_total",
			Help: "Account health cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbwatch_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Health metrics
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbwatch_health_checks_total",
			Help: "Total number of health checks",
		},
		[]string{"status"},
	)
)

// RecordProviderRequest records a single provider fetch
func RecordProviderRequest(provider string, duration time.Duration, status string) {
	ProviderRequests.WithLabelValues(provider, status).Inc()
	ProviderRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordScan records scan metrics
func RecordScan(duration time.Duration, status string) {
	Scans.WithLabelValues(status).Inc()
	ScanDuration.Observe(duration.Seconds())
}

// RecordAlert records alert metrics
func RecordAlert(severity, sendStatus, alertType string, suppressed bool) {
	if suppressed {
		AlertsSuppressed.Inc()
		return
	}

	AlertsTriggered.WithLabelValues(severity).Inc()
	AlertsSent.WithLabelValues(sendStatus, alertType).Inc()
}

// RecordPublish records a stream publish attempt
func RecordPublish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StreamPublishes.WithLabelValues(status).Inc()
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHealthCheck records health check metrics
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
