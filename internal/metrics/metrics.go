package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wakala/mpesa-analytics/internal/transform"
)

// Collector exposes pipeline and transform metrics. It implements
// transform.Observer and the pipeline's row recorder.
type Collector struct {
	// Pipeline runs by status: success, failure, skipped, conflict
	Runs *prometheus.CounterVec

	RunDuration prometheus.Histogram

	Extracted prometheus.Counter

	// Rows inserted by table
	Loaded *prometheus.CounterVec

	// Rows removed by the cleaner, by reason
	Dropped *prometheus.CounterVec

	Alerts prometheus.Counter

	// Null counts per column from the latest validation
	ValidationNulls *prometheus.GaugeVec

	ScoresClamped prometheus.Counter
}

// New registers the collector's metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mpesa_pipeline_runs_total",
			Help: "Pipeline executions by final status",
		}, []string{"status"}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpesa_pipeline_run_duration_seconds",
			Help:    "Duration of a pipeline execution including retries",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}),

		Extracted: f.NewCounter(prometheus.CounterOpts{
			Name: "mpesa_rows_extracted_total",
			Help: "Raw rows read from the source",
		}),

		Loaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mpesa_rows_loaded_total",
			Help: "Rows inserted by table",
		}, []string{"table"}),

		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mpesa_rows_dropped_total",
			Help: "Rows removed during cleaning by reason",
		}, []string{"reason"}),

		Alerts: f.NewCounter(prometheus.CounterOpts{
			Name: "mpesa_fraud_alerts_total",
			Help: "Fraud alerts raised",
		}),

		ValidationNulls: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mpesa_validation_null_values",
			Help: "Missing values per column in the latest validated batch",
		}, []string{"column"}),

		ScoresClamped: f.NewCounter(prometheus.CounterOpts{
			Name: "mpesa_fraud_scores_clamped_total",
			Help: "Fraud risk scores clamped into 0..100",
		}),
	}
}

func (c *Collector) Validated(r transform.ValidationReport) {
	c.ValidationNulls.Reset()
	for col, n := range r.NullValues {
		c.ValidationNulls.WithLabelValues(col).Set(float64(n))
	}
}

func (c *Collector) Cleaned(s transform.CleanStats) {
	c.Dropped.WithLabelValues("duplicate_id").Add(float64(s.DuplicateIDs))
	c.Dropped.WithLabelValues("negative_amount").Add(float64(s.NegativeAmounts))
	c.Dropped.WithLabelValues("invalid_date").Add(float64(s.InvalidDates))
	c.ScoresClamped.Add(float64(s.ClampedScores))
}

func (c *Collector) Enriched(int) {}

func (c *Collector) RowsExtracted(n int) {
	c.Extracted.Add(float64(n))
}

func (c *Collector) RowsLoaded(table string, n int) {
	c.Loaded.WithLabelValues(table).Add(float64(n))
}

func (c *Collector) AlertsCreated(n int) {
	c.Alerts.Add(float64(n))
}

// RunFinished records one orchestrated execution. Rejected triggers carry no
// duration and are only counted.
func (c *Collector) RunFinished(status string, d time.Duration) {
	c.Runs.WithLabelValues(status).Inc()
	if d > 0 {
		c.RunDuration.Observe(d.Seconds())
	}
}
