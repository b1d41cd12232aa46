package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// IngestedAlertsTotal counts well-formed push messages merged into the feed.
	IngestedAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "monitor",
		Name:      "ingested_alerts_total",
		Help:      "Total number of push messages successfully mapped into the alert feed.",
	})

	// IngestParseErrorsTotal counts malformed push messages dropped by the channel.
	IngestParseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "monitor",
		Name:      "ingest_parse_errors_total",
		Help:      "Total number of malformed push messages dropped without touching the feed.",
	})

	// ChannelReconnectsTotal counts reconnect attempts made by the supervisor.
	ChannelReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "monitor",
		Name:      "channel_reconnects_total",
		Help:      "Total number of streaming channel reconnect attempts.",
	})

	// SubmissionsTotal counts report submissions by terminal outcome.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "monitor",
		Name:      "submissions_total",
		Help:      "Total number of incident report submissions, labeled by terminal outcome.",
	}, []string{"outcome"})

	// UploadWarningsTotal counts evidence uploads that failed after the alert
	// was already created.
	UploadWarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "monitor",
		Name:      "upload_warnings_total",
		Help:      "Total number of non-fatal evidence upload failures.",
	})

	// AlertsCreatedTotal counts alerts persisted by the alert service.
	AlertsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "alertapi",
		Name:      "alerts_created_total",
		Help:      "Total number of alerts created through POST /alerts/.",
	})

	// BroadcastsTotal counts alert events pushed to websocket clients.
	BroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Subsystem: "alertapi",
		Name:      "broadcasts_total",
		Help:      "Total number of alert events broadcast over the websocket hub.",
	})
)

// Register registers all collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			IngestedAlertsTotal,
			IngestParseErrorsTotal,
			ChannelReconnectsTotal,
			SubmissionsTotal,
			UploadWarningsTotal,
			AlertsCreatedTotal,
			BroadcastsTotal,
		)
	})
}
