package sending

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recipientsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign_mailer",
			Name:      "recipients_processed_total",
			Help:      "Recipients processed by the dispatcher, by outcome.",
		},
		[]string{"outcome"}, // delivered, failed, skipped
	)

	dispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campaign_mailer",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of a full campaign dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	transportSendDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campaign_mailer",
			Name:      "transport_send_duration_seconds",
			Help:      "Duration of a single transport send.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	batchAbortsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campaign_mailer",
			Name:      "dispatch_aborts_total",
			Help:      "Dispatches aborted by a batch-fatal error.",
		},
	)
)
