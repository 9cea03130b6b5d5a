package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxcd/seedy/pkg/cluster"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
)

// How long a health check waits for the Docker engine to answer.
const pingTimeout = 5 * time.Second

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(Metrics).Methods("GET").Path("/metrics")
	r.NewRoute().Name(Healthz).Methods("GET", "HEAD").Path("/healthz")
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, MakeNotFound(r.URL.Path))
	})
	return r
}

// NewHandler attaches the handlers to the routes. The health check
// succeeds if the cluster can be reached.
func NewHandler(r *mux.Router, c cluster.Cluster, logger log.Logger) http.Handler {
	r.Get(Metrics).Handler(promhttp.Handler())
	r.Get(Healthz).HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), pingTimeout)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			level.Warn(logger).Log("healthz", "failed", "err", err)
			WriteError(w, req, http.StatusServiceUnavailable, ErrorUnhealthy)
			return
		}
		w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok\n")
	})
	return r
}

// WriteError responds with the help text of the error if there is
// any, so that someone poking at the endpoint with curl gets told
// what's wrong.
func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	switch err := err.(type) {
	case *fluxerr.Error:
		if err.Help != "" {
			fmt.Fprint(w, err.Help)
			return
		}
		fmt.Fprint(w, err.Error())
	default:
		fmt.Fprint(w, err.Error())
	}
}
