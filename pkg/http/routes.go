package http

const (
	Metrics = "Metrics"
	Healthz = "Healthz"
)
