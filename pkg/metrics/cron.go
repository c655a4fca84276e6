package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wardrobe"

// CronJobMetrics describes scheduled job runs. The zero value and a nil
// pointer record nothing.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	rows        *prometheus.CounterVec
	took        *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "cron", Name: name, Help: help}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts(opts("job_runs_total", "Cron job runs by outcome.")),
			[]string{"job", "result"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts(opts("rows_affected_total", "Rows deleted or updated by cron jobs.")),
			[]string{"job"}),
		took: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of a cron job run.",
			Buckets:   []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts("last_success_timestamp_seconds", "Unix time of the last successful run.")),
			[]string{"job"}),
	}
	reg.MustRegister(m.runs, m.rows, m.took, m.lastSuccess)
	return m
}

// Observe records one finished run of job.
func (m *CronJobMetrics) Observe(job string, took time.Duration, affected int64, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.took.WithLabelValues(job).Observe(took.Seconds())
	if affected > 0 {
		m.rows.WithLabelValues(job).Add(float64(affected))
	}
	if err != nil {
		m.runs.WithLabelValues(job, ResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, ResultSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// normalizeLabel lower-cases a label value; blank values become "unknown".
func normalizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
