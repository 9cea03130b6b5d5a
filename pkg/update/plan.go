package update

import (
	"github.com/docker/docker/api/types/swarm"
	"github.com/mitchellh/copystructure"

	"github.com/fluxcd/seedy/pkg/cluster"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/event"
)

// Plan is a complete new spec for a service, to be submitted along
// with the version of the service it was calculated from.
type Plan struct {
	ServiceID   string
	ServiceName string
	Version     uint64
	// The image the service will run, pinned to a digest
	Image string
	Spec  swarm.ServiceSpec
}

// MakePlan calculates the spec that moves the service onto the pushed
// image. The new image is the pushed tag pinned to the pushed digest,
// whatever the service ran before. ForceUpdate is set to the service
// version, so that tasks are restarted even if Swarm thinks the spec
// is unchanged. Nothing else in the spec is touched, and the service
// given is not modified.
func MakePlan(s cluster.Service, ev event.PushEvent) (Plan, error) {
	if s.Spec.TaskTemplate.ContainerSpec == nil {
		return Plan{}, fluxerr.New(fluxerr.Validation, "service %s has no container spec, so its image cannot be updated", s.ID)
	}

	copied, err := copystructure.Copy(s.Spec)
	if err != nil {
		return Plan{}, fluxerr.Wrap(fluxerr.Validation, err, "copying spec of service "+s.ID)
	}
	spec := copied.(swarm.ServiceSpec)

	pinned := ev.PinnedRef()
	spec.TaskTemplate.ContainerSpec.Image = pinned
	spec.TaskTemplate.ForceUpdate = s.Version

	return Plan{
		ServiceID:   s.ID,
		ServiceName: s.Name,
		Version:     s.Version,
		Image:       pinned,
		Spec:        spec,
	}, nil
}
