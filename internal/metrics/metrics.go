// Package metrics exports audit run results in the Prometheus text format,
// for CI jobs that ship them through a node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lex-fmt/testaudit/internal/audit"
)

const namespace = "testaudit"

// Recorder holds the metrics of audit runs in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runs          prometheus.Counter
	testsScanned  prometheus.Counter
	testsFlagged  prometheus.Counter
	violations    *prometheus.CounterVec
	filesModified prometheus.Counter
	fileFailures  prometheus.Counter
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewRecorder creates a Recorder with every metric registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of audit runs.",
		}),
		testsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_scanned_total",
			Help:      "Test functions located.",
		}),
		testsFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_flagged_total",
			Help:      "Test functions with at least one violation.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Flagged test functions per violation category.",
		}, []string{"category"}),
		filesModified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_modified_total",
			Help:      "Files that received new markers.",
		}),
		fileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_failures_total",
			Help:      "Files abandoned because of read, edit or write errors.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the most recent run.",
		}),
	}
	r.registry.MustRegister(
		r.runs, r.testsScanned, r.testsFlagged, r.violations,
		r.filesModified, r.fileFailures, r.runDuration, r.lastRun,
	)
	for _, c := range audit.Categories {
		r.violations.WithLabelValues(string(c))
	}
	return r
}

// Observe adds one run's report.
func (r *Recorder) Observe(rep *audit.Report) {
	r.runs.Inc()
	r.testsScanned.Add(float64(rep.TotalTests))
	r.testsFlagged.Add(float64(rep.FlaggedTests))
	for _, c := range audit.Categories {
		r.violations.WithLabelValues(string(c)).Add(float64(rep.CategoryCounts[c]))
	}
	r.filesModified.Add(float64(len(rep.Modified)))
	r.fileFailures.Add(float64(len(rep.Failures)))
	r.runDuration.Set(rep.Duration.Seconds())
	r.lastRun.Set(float64(rep.StartedAt.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current values to path in the text exposition
// format, replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
