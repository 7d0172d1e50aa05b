package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	SchedulerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_scheduler_ticks_total",
			Help: "Total number of scheduler ticks executed",
		},
	)

	ChannelsEligibleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_channels_eligible_total",
			Help: "Total number of channel-eligible decisions across all ticks",
		},
	)

	PollJobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_poll_jobs_enqueued_total",
			Help: "Total number of poll jobs enqueued by the scheduler",
		},
	)

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tca_scheduler_tick_duration_seconds",
			Help:    "Time taken to evaluate one scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ingest metrics
	RawMessagesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_raw_messages_ingested_total",
			Help: "Total number of raw messages persisted",
		},
	)

	ItemsNormalizedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_items_normalized_total",
			Help: "Total number of items upserted during normalize",
		},
	)

	IngestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tca_ingest_errors_total",
			Help: "Total number of ingest-error rows recorded by stage",
		},
		[]string{"stage"},
	)

	IngestPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tca_ingest_poll_duration_seconds",
			Help:    "Time taken to process one poll job end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Dedupe metrics
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tca_dedupe_decisions_total",
			Help: "Total number of strategy decisions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	ClustersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_clusters_created_total",
			Help: "Total number of clusters created",
		},
	)

	ClustersMergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tca_clusters_merged_total",
			Help: "Total number of cluster merges performed",
		},
	)

	DedupeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tca_dedupe_duration_seconds",
			Help:    "Time taken to run the dedupe chain for one item",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Writer queue metrics
	WriterQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tca_writer_queue_depth",
			Help: "Current number of closures waiting in the writer queue",
		},
	)

	WriterClosureDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tca_writer_closure_duration_seconds",
			Help:    "Time taken to run one writer-queue closure, including commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ops job metrics
	PruneBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tca_prune_batches_total",
			Help: "Total number of retention-prune batches executed by entity",
		},
		[]string{"entity"},
	)

	PruneDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tca_prune_duration_seconds",
			Help:    "Time taken for one full retention-prune run",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tca_backups_total",
			Help: "Total number of nightly backup attempts by result",
		},
		[]string{"result"},
	)

	BackupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tca_backup_duration_seconds",
			Help:    "Time taken for one backup run, including integrity check",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tca_notifications_total",
			Help: "Total number of notifications created by severity",
		},
		[]string{"severity"},
	)

	// Periodic snapshot gauges, refreshed by Collector
	ChannelsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tca_channels_total",
			Help: "Current number of channels by enabled state",
		},
		[]string{"enabled"},
	)

	AccountsPausedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tca_accounts_paused_total",
			Help: "Current number of paused accounts",
		},
	)

	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tca_clusters_total",
			Help: "Current number of clusters",
		},
	)

	ItemsPendingTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tca_items_pending_total",
			Help: "Current number of items awaiting dedupe",
		},
	)

	NotificationsUnacknowledgedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tca_notifications_unacknowledged_total",
			Help: "Current number of unacknowledged notifications",
		},
	)
)

func init() {
	prometheus.MustRegister(SchedulerTicksTotal)
	prometheus.MustRegister(ChannelsEligibleTotal)
	prometheus.MustRegister(PollJobsEnqueuedTotal)
	prometheus.MustRegister(SchedulerTickDuration)

	prometheus.MustRegister(RawMessagesIngestedTotal)
	prometheus.MustRegister(ItemsNormalizedTotal)
	prometheus.MustRegister(IngestErrorsTotal)
	prometheus.MustRegister(IngestPollDuration)

	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(ClustersCreatedTotal)
	prometheus.MustRegister(ClustersMergedTotal)
	prometheus.MustRegister(DedupeDuration)

	prometheus.MustRegister(WriterQueueDepth)
	prometheus.MustRegister(WriterClosureDuration)

	prometheus.MustRegister(PruneBatchesTotal)
	prometheus.MustRegister(PruneDuration)
	prometheus.MustRegister(BackupsTotal)
	prometheus.MustRegister(BackupDuration)
	prometheus.MustRegister(NotificationsTotal)

	prometheus.MustRegister(ChannelsTotal)
	prometheus.MustRegister(AccountsPausedTotal)
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(ItemsPendingTotal)
	prometheus.MustRegister(NotificationsUnacknowledgedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
