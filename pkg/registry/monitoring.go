package registry

// Monitoring middlewares for registry interfaces

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	fluxmetrics "github.com/fluxcd/seedy/pkg/metrics"
)

var (
	credentialsDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "seedy",
		Subsystem: "registry",
		Name:      "credentials_duration_seconds",
		Help:      "Duration of registry authorization token requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelRegion, fluxmetrics.LabelSuccess})
)

type instrumentedRegistry struct {
	next Registry
}

func NewInstrumentedRegistry(next Registry) Registry {
	return &instrumentedRegistry{
		next: next,
	}
}

func (m *instrumentedRegistry) Credentials(ctx context.Context, accountID, region string) (res Credentials, err error) {
	start := time.Now()
	res, err = m.next.Credentials(ctx, accountID, region)
	credentialsDuration.With(
		fluxmetrics.LabelRegion, region,
		fluxmetrics.LabelSuccess, strconv.FormatBool(err == nil),
	).Observe(time.Since(start).Seconds())
	return
}
