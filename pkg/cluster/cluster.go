package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/swarm"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/image"
	"github.com/fluxcd/seedy/pkg/registry"
)

// StackImageLabel is put on services by `docker stack deploy`, and
// records the image as written in the compose file, before Swarm
// resolved it to a digest.
const StackImageLabel = "com.docker.stack.image"

// The things we need from the running cluster.
type Cluster interface {
	// Get all of the services, as of now.
	ListServices(ctx context.Context) ([]Service, error)
	// Replace the spec of a service. The version must be the one the
	// service had when it was listed; if the service has changed
	// since, the update is refused with a conflict error.
	UpdateService(ctx context.Context, id string, version uint64, spec swarm.ServiceSpec, auth registry.Credentials) error
	Ping(ctx context.Context) error
}

// Service is a snapshot of a service running in the cluster.
type Service struct {
	ID   string
	Name string
	// The object version at the time of listing; this must be
	// presented again when updating the service.
	Version uint64
	Labels  map[string]string
	// The image declared in the container spec, possibly with the
	// digest Swarm resolved it to appended.
	Image string
	Spec  swarm.ServiceSpec
}

// CanonicalRef gives the (digest-less) image reference by which the
// service is matched with pushed images. A stack image label takes
// precedence, and is used verbatim; otherwise, it's the declared
// image without its digest. If there's neither, the service can't be
// matched, and the second return value is false.
func (s Service) CanonicalRef() (string, bool) {
	if ref, ok := s.Labels[StackImageLabel]; ok {
		return ref, true
	}
	if s.Image != "" {
		return image.StripDigest(s.Image), true
	}
	return "", false
}

// Filter decides, by its labels, whether a service is a candidate for
// automatic updates.
type Filter interface {
	Matches(labels map[string]string) bool
	String() string
}

// NoFilter lets every service through.
type NoFilter struct{}

func (NoFilter) Matches(map[string]string) bool { return true }
func (NoFilter) String() string                 { return "<none>" }

// KeyEquals lets through only services that have the label Key with
// exactly the value Value.
type KeyEquals struct {
	Key, Value string
}

func (f KeyEquals) Matches(labels map[string]string) bool {
	v, ok := labels[f.Key]
	return ok && v == f.Value
}

func (f KeyEquals) String() string {
	return f.Key + "=" + f.Value
}

// ParseFilter reads a label filter given as `key=value`. The value
// may itself contain '='. An empty string means no filter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return NoFilter{}, nil
	}
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return nil, &fluxerr.Error{
			Type: fluxerr.Configuration,
			Err:  fmt.Errorf("filter label %q expected to be on format key=value", s),
			Help: `The label filter must be given as key=value, for example

    --filter-label=com.example.autodeploy=true

Only services carrying exactly that label and value will be updated.
`,
		}
	}
	return KeyEquals{Key: parts[0], Value: parts[1]}, nil
}
