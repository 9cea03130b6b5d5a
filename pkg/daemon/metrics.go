package daemon

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	fluxmetrics "github.com/fluxcd/seedy/pkg/metrics"
)

var (
	messageOutcomes = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "seedy",
		Subsystem: "daemon",
		Name:      "messages_total",
		Help:      "Count of ECR event messages processed, by outcome.",
	}, []string{fluxmetrics.LabelOutcome})

	// SQS gives at most ten messages at a time.
	batchSize = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "seedy",
		Subsystem: "daemon",
		Name:      "batch_size_count",
		Help:      "Number of messages received per poll of the queue.",
		Buckets:   []float64{0, 1, 2, 3, 5, 10},
	}, []string{})

	// This is only the API call; the tasks are restarted by the
	// swarm afterwards.
	updateDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "seedy",
		Subsystem: "daemon",
		Name:      "update_duration_seconds",
		Help:      "Duration of service updates, in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{fluxmetrics.LabelSuccess})

	iterationErrors = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "seedy",
		Subsystem: "daemon",
		Name:      "iteration_errors_total",
		Help:      "Count of failures to poll the queue or list services.",
	}, []string{fluxmetrics.LabelStage})
)
