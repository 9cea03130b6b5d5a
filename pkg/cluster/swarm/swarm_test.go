package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	dockerregistry "github.com/docker/docker/api/types/registry"
	swarmtypes "github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/seedy/pkg/cluster"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/registry"
)

const zeImage = "123456789012.dkr.ecr.rp-north-1.amazonaws.com/bittrance/ze-image:latest"

type transportFunc func(*http.Request) (*http.Response, error)

func (f transportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestCluster(t *testing.T, fn transportFunc) *Cluster {
	c, err := client.NewClientWithOpts(client.WithHTTPClient(&http.Client{Transport: fn}))
	require.NoError(t, err)
	return NewCluster(c, log.NewLogfmtLogger(os.Stderr))
}

func jsonResponse(status int, body string) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func errorResponse(status int, message string) *http.Response {
	return jsonResponse(status, fmt.Sprintf(`{"message": %q}`, message))
}

func zeSwarmService() swarmtypes.Service {
	return swarmtypes.Service{
		ID:   "foo",
		Meta: swarmtypes.Meta{Version: swarmtypes.Version{Index: 7}},
		Spec: swarmtypes.ServiceSpec{
			Annotations: swarmtypes.Annotations{
				Name:   "ze_service",
				Labels: map[string]string{cluster.StackImageLabel: zeImage},
			},
			TaskTemplate: swarmtypes.TaskSpec{
				ContainerSpec: &swarmtypes.ContainerSpec{
					Image: zeImage + "@sha256:5678",
				},
			},
		},
	}
}

func TestFromSwarm(t *testing.T) {
	s := FromSwarm(zeSwarmService())
	assert.Equal(t, "foo", s.ID)
	assert.Equal(t, "ze_service", s.Name)
	assert.Equal(t, uint64(7), s.Version)
	assert.Equal(t, zeImage+"@sha256:5678", s.Image)
	ref, ok := s.CanonicalRef()
	assert.True(t, ok)
	assert.Equal(t, zeImage, ref)
}

func TestFromSwarmWithoutContainer(t *testing.T) {
	sw := zeSwarmService()
	sw.Spec.Labels = nil
	sw.Spec.TaskTemplate.ContainerSpec = nil
	s := FromSwarm(sw)
	assert.Equal(t, "", s.Image)
	_, ok := s.CanonicalRef()
	assert.False(t, ok)
}

func TestListServices(t *testing.T) {
	body, err := json.Marshal([]swarmtypes.Service{zeSwarmService()})
	require.NoError(t, err)

	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || !strings.HasSuffix(req.URL.Path, "/services") {
			return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
		}
		return jsonResponse(http.StatusOK, string(body)), nil
	})

	services, err := c.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "foo", services[0].ID)
	assert.Equal(t, uint64(7), services[0].Version)
}

func TestListServicesError(t *testing.T) {
	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		return errorResponse(http.StatusServiceUnavailable, "This node is not a swarm manager."), nil
	})
	_, err := c.ListServices(context.Background())
	assert.True(t, fluxerr.IsType(err, fluxerr.Transport), "got %v", err)
}

func TestUpdateService(t *testing.T) {
	var (
		gotVersion string
		gotAuth    string
		gotSpec    swarmtypes.ServiceSpec
	)
	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/services/foo/update") {
			return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
		}
		gotVersion = req.URL.Query().Get("version")
		gotAuth = req.Header.Get("X-Registry-Auth")
		if err := json.NewDecoder(req.Body).Decode(&gotSpec); err != nil {
			return nil, err
		}
		return jsonResponse(http.StatusOK, `{"Warnings": ["image could not be accessed on a registry"]}`), nil
	})

	spec := zeSwarmService().Spec
	spec.TaskTemplate.ContainerSpec.Image = zeImage + "@sha256:1234"
	spec.TaskTemplate.ForceUpdate = 7
	creds := registry.Credentials{
		Username: "AWS",
		Password: "secret",
		Registry: "123456789012.dkr.ecr.rp-north-1.amazonaws.com",
	}

	require.NoError(t, c.UpdateService(context.Background(), "foo", 7, spec, creds))

	assert.Equal(t, "7", gotVersion)
	assert.Equal(t, zeImage+"@sha256:1234", gotSpec.TaskTemplate.ContainerSpec.Image)
	assert.Equal(t, uint64(7), gotSpec.TaskTemplate.ForceUpdate)

	auth, err := dockerregistry.DecodeAuthConfig(gotAuth)
	require.NoError(t, err)
	assert.Equal(t, "AWS", auth.Username)
	assert.Equal(t, "secret", auth.Password)
	assert.Equal(t, "123456789012.dkr.ecr.rp-north-1.amazonaws.com", auth.ServerAddress)
}

func TestUpdateServiceAuthServerFromImage(t *testing.T) {
	var gotAuth string
	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("X-Registry-Auth")
		return jsonResponse(http.StatusOK, `{}`), nil
	})

	creds := registry.Credentials{Username: "AWS", Password: "secret"}
	require.NoError(t, c.UpdateService(context.Background(), "foo", 7, zeSwarmService().Spec, creds))

	auth, err := dockerregistry.DecodeAuthConfig(gotAuth)
	require.NoError(t, err)
	assert.Equal(t, "123456789012.dkr.ecr.rp-north-1.amazonaws.com", auth.ServerAddress)
}

func TestUpdateServiceNoCredentials(t *testing.T) {
	var gotAuth string
	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("X-Registry-Auth")
		return jsonResponse(http.StatusOK, `{}`), nil
	})
	require.NoError(t, c.UpdateService(context.Background(), "foo", 7, zeSwarmService().Spec, registry.NoCredentials()))
	assert.Equal(t, "", gotAuth)
}

func TestUpdateServiceErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		response *http.Response
		errType  fluxerr.Type
	}{
		{"conflict status", errorResponse(http.StatusConflict, "conflict"), fluxerr.Conflict},
		{"out of sequence", errorResponse(http.StatusInternalServerError, "rpc error: code = Unknown desc = update out of sequence"), fluxerr.Conflict},
		{"forbidden", errorResponse(http.StatusForbidden, "not allowed"), fluxerr.Permission},
		{"unauthorized", errorResponse(http.StatusUnauthorized, "who are you"), fluxerr.Permission},
		{"server error", errorResponse(http.StatusInternalServerError, "oops"), fluxerr.Transport},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
				return tc.response, nil
			})
			err := c.UpdateService(context.Background(), "foo", 7, zeSwarmService().Spec, registry.NoCredentials())
			assert.True(t, fluxerr.IsType(err, tc.errType), "got %v", err)
			assert.Equal(t, tc.errType != fluxerr.Permission, fluxerr.Retryable(err))
		})
	}
}

func TestUpdateServiceTransportError(t *testing.T) {
	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})
	err := c.UpdateService(context.Background(), "foo", 7, zeSwarmService().Spec, registry.NoCredentials())
	assert.True(t, fluxerr.IsType(err, fluxerr.Transport), "got %v", err)
	assert.True(t, fluxerr.Retryable(err))
}

func TestPing(t *testing.T) {
	c := newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/_ping") {
			return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
		}
		resp := jsonResponse(http.StatusOK, "OK")
		resp.Header.Set("API-Version", "1.45")
		return resp, nil
	})
	assert.NoError(t, c.Ping(context.Background()))

	c = newTestCluster(t, func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("no such file or directory")
	})
	assert.True(t, fluxerr.IsType(c.Ping(context.Background()), fluxerr.Transport))
}
