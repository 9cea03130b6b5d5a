package http

import (
	"errors"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
)

func MakeNotFound(path string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Help: `The endpoint requested is not served by seedy.

Only /metrics (Prometheus metrics) and /healthz (a health check) are
served. The path requested was:

    ` + path + `
`,
		Err: errors.New("endpoint not found"),
	}
}

var ErrorUnhealthy = &fluxerr.Error{
	Type: fluxerr.Transport,
	Help: `The Docker engine could not be reached

seedy updates services through the Docker engine of a Swarm manager
node. Check that DOCKER_HOST (or the default socket) points at a
manager, and that the engine is running.
`,
	Err: errors.New("Docker engine unreachable"),
}
