package swarm

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types"
	dockerregistry "github.com/docker/docker/api/types/registry"
	swarmtypes "github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/fluxcd/seedy/pkg/cluster"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/image"
	"github.com/fluxcd/seedy/pkg/registry"
)

// The message the swarm manager gives when the version presented
// with an update is not the current version of the service. Depending
// on the engine version, it does not always come with a conflict
// status.
const outOfSequence = "update out of sequence"

// Cluster is a handle to the Docker engine of a Swarm manager node.
type Cluster struct {
	client *client.Client
	logger log.Logger
}

var _ cluster.Cluster = &Cluster{}

// NewClient connects to the Docker engine as configured by the
// environment (DOCKER_HOST, DOCKER_CERT_PATH and so on), negotiating
// the API version.
func NewClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func NewCluster(c *client.Client, logger log.Logger) *Cluster {
	return &Cluster{
		client: c,
		logger: logger,
	}
}

// FromSwarm makes the snapshot of a service we work with.
func FromSwarm(s swarmtypes.Service) cluster.Service {
	var img string
	if cs := s.Spec.TaskTemplate.ContainerSpec; cs != nil {
		img = cs.Image
	}
	return cluster.Service{
		ID:      s.ID,
		Name:    s.Spec.Name,
		Version: s.Version.Index,
		Labels:  s.Spec.Labels,
		Image:   img,
		Spec:    s.Spec,
	}
}

// --- cluster.Cluster

func (c *Cluster) Ping(ctx context.Context) error {
	if _, err := c.client.Ping(ctx); err != nil {
		return fluxerr.Wrap(fluxerr.Transport, err, "pinging Docker engine at "+c.client.DaemonHost())
	}
	return nil
}

func (c *Cluster) ListServices(ctx context.Context) ([]cluster.Service, error) {
	services, err := c.client.ServiceList(ctx, types.ServiceListOptions{})
	if err != nil {
		return nil, classifyDockerError(err, "listing services")
	}
	result := make([]cluster.Service, 0, len(services))
	for _, s := range services {
		result = append(result, FromSwarm(s))
	}
	return result, nil
}

func (c *Cluster) UpdateService(ctx context.Context, id string, version uint64, spec swarmtypes.ServiceSpec, creds registry.Credentials) error {
	auth, err := encodeAuth(spec, creds)
	if err != nil {
		return err
	}
	// The image is already pinned to a digest, so there is nothing to
	// resolve; and resolving it would rewrite the placement platforms.
	resp, err := c.client.ServiceUpdate(ctx, id, swarmtypes.Version{Index: version}, spec, types.ServiceUpdateOptions{
		EncodedRegistryAuth: auth,
		QueryRegistry:       false,
	})
	if err != nil {
		return classifyDockerError(err, "updating service "+id)
	}
	for _, w := range resp.Warnings {
		level.Warn(c.logger).Log("service", id, "warning", w)
	}
	return nil
}

// encodeAuth gives the X-Registry-Auth value the engine passes on to
// the swarm nodes, so they can pull the new image.
func encodeAuth(spec swarmtypes.ServiceSpec, creds registry.Credentials) (string, error) {
	if creds.Username == "" && creds.Password == "" {
		return "", nil
	}
	server := creds.Registry
	if server == "" && spec.TaskTemplate.ContainerSpec != nil {
		server = image.Domain(spec.TaskTemplate.ContainerSpec.Image)
	}
	auth, err := dockerregistry.EncodeAuthConfig(dockerregistry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: server,
	})
	if err != nil {
		return "", fluxerr.Wrap(fluxerr.Credential, err, "encoding registry auth for "+server)
	}
	return auth, nil
}

func classifyDockerError(err error, msg string) error {
	switch {
	case errdefs.IsConflict(err) || strings.Contains(err.Error(), outOfSequence):
		return fluxerr.Wrap(fluxerr.Conflict, err, msg)
	case errdefs.IsForbidden(err) || errdefs.IsUnauthorized(err):
		return fluxerr.Wrap(fluxerr.Permission, err, msg)
	default:
		return fluxerr.Wrap(fluxerr.Transport, err, msg)
	}
}
