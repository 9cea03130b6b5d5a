package mock

import (
	"context"
	"sync"

	"github.com/docker/docker/api/types/swarm"

	"github.com/fluxcd/seedy/pkg/cluster"
	"github.com/fluxcd/seedy/pkg/registry"
)

// Update records a call to UpdateService.
type Update struct {
	ServiceID string
	Version   uint64
	Spec      swarm.ServiceSpec
	Auth      registry.Credentials
}

// Mock is a cluster.Cluster that calls the funcs given, if any, and
// records the updates made.
type Mock struct {
	ListServicesFunc  func(ctx context.Context) ([]cluster.Service, error)
	UpdateServiceFunc func(ctx context.Context, id string, version uint64, spec swarm.ServiceSpec, auth registry.Credentials) error
	PingFunc          func(ctx context.Context) error

	mu        sync.Mutex
	listCalls int
	updates   []Update
}

var _ cluster.Cluster = &Mock{}

// WithServices is a Mock that always lists the services given, and
// accepts all updates.
func WithServices(services ...cluster.Service) *Mock {
	return &Mock{
		ListServicesFunc: func(context.Context) ([]cluster.Service, error) {
			return services, nil
		},
	}
}

func (m *Mock) ListServices(ctx context.Context) ([]cluster.Service, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.ListServicesFunc == nil {
		return nil, nil
	}
	return m.ListServicesFunc(ctx)
}

func (m *Mock) UpdateService(ctx context.Context, id string, version uint64, spec swarm.ServiceSpec, auth registry.Credentials) error {
	m.mu.Lock()
	m.updates = append(m.updates, Update{ServiceID: id, Version: version, Spec: spec, Auth: auth})
	m.mu.Unlock()
	if m.UpdateServiceFunc == nil {
		return nil
	}
	return m.UpdateServiceFunc(ctx, id, version, spec, auth)
}

func (m *Mock) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}

// ListCalls is how many times ListServices has been called.
func (m *Mock) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// Updates gives the calls made to UpdateService, successful or not.
func (m *Mock) Updates() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Update(nil), m.updates...)
}
