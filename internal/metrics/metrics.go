package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_batches_started_total",
		Help: "Total number of batches started",
	})

	BatchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_batches_rejected_total",
		Help: "Total number of batches rejected because another batch was running",
	})

	BatchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_batches_finished_total",
		Help: "Total number of batches by terminal state",
	}, []string{"state"})

	EntriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_entries_processed_total",
		Help: "Total number of manifest entries by outcome",
	}, []string{"outcome"})

	LinesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_manifest_lines_skipped_total",
		Help: "Total number of malformed manifest lines",
	})

	CancelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_cancel_requests_total",
		Help: "Total number of cancel requests by result",
	}, []string{"result"})

	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_downloads_total",
		Help: "Total number of download attempts",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_downloads_failed_total",
		Help: "Total number of failed downloads",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hls_relay_download_duration_seconds",
		Help:    "Download duration in seconds",
		Buckets: prometheus.ExponentialBuckets(5, 2, 10),
	})

	DeliveredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_delivered_bytes_total",
		Help: "Total bytes of video delivered to the chat",
	})
)
