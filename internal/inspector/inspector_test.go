package inspector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssuji15/kennel/internal/catalog"
	"github.com/ssuji15/kennel/internal/util"
	"github.com/ssuji15/kennel/model"
)

type fakeRuntime struct {
	containers []model.ContainerInfo
	listErr    error
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]model.ContainerInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

func (f *fakeRuntime) CreateContainer(ctx context.Context, opts model.CreateOptions) (model.ContainerHandle, error) {
	return model.ContainerHandle{}, nil
}

func (f *fakeRuntime) KillContainer(ctx context.Context, id string) error {
	return nil
}

var testClock = func() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newInspector(rt *fakeRuntime) *Inspector {
	return New(rt, catalog.Builtin(), "http://gpu-box").WithClock(testClock)
}

func gpuDevContainer() model.ContainerInfo {
	return model.ContainerInfo{
		ID:     "aaaa000011112222",
		Image:  "eri_dev:latest",
		Labels: map[string]string{ImageTypeLabel: "gpu-dev"},
		Env: map[string]string{
			util.EnvUser:             "alice",
			util.EnvPassword:         "hunter2",
			"NVIDIA_VISIBLE_DEVICES": "0",
		},
		Ports:     map[int]int{8888: 8889},
		CreatedAt: testClock().Add(-26*time.Hour - 3*time.Minute - 4*time.Second),
	}
}

func TestListSessionsProjection(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{containers: []model.ContainerInfo{gpuDevContainer()}}

	sessions, err := newInspector(rt).ListSessions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	require.Equal(t, "aaaa000011112222", s.ID)
	require.Equal(t, "gpu-dev", s.ImageType)
	require.Equal(t, "alice", s.Username)
	require.Equal(t, []string{"0"}, s.Devices)
	require.Equal(t, 1, s.GPUCount())
	require.Equal(t, map[int]int{8888: 8889}, s.Ports)
	require.Equal(t, "http://gpu-box:8889", s.NotebookURL)
	require.Empty(t, s.StudioURL)
	require.Equal(t, "1 Days 02:03:04", s.Uptime)

	// only the digest is exposed, never the raw credential
	require.Equal(t, util.HashCredential("hunter2"), s.CredentialHash)
	require.NotContains(t, s.CredentialHash, "hunter2")
}

func TestListSessionsImageFallback(t *testing.T) {
	t.Parallel()

	// no label; type resolved by image reference
	rt := &fakeRuntime{containers: []model.ContainerInfo{{
		ID:    "bbbb",
		Image: "eri_prod:latest",
		Env:   map[string]string{util.EnvUser: "bob"},
	}}}

	sessions, err := newInspector(rt).ListSessions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "gpu-prod", sessions[0].ImageType)
}

func TestListSessionsUntracked(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{containers: []model.ContainerInfo{
		gpuDevContainer(),
		{
			ID:    "cccc",
			Image: "nginx:latest",
			Ports: map[int]int{80: 8080},
		},
	}}
	insp := newInspector(rt)

	filtered, err := insp.ListSessions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	all, err := insp.ListSessions(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var untracked *model.Session
	for i := range all {
		if all[i].ID == "cccc" {
			untracked = &all[i]
		}
	}
	require.NotNil(t, untracked)
	require.Empty(t, untracked.ImageType)
	require.Equal(t, map[int]int{80: 8080}, untracked.Ports)
}

func TestListSessionsStudioURL(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{containers: []model.ContainerInfo{{
		ID:     "dddd",
		Image:  "eri_dev_p_r:latest",
		Labels: map[string]string{ImageTypeLabel: "python-r"},
		Env: map[string]string{
			util.EnvUser:     "carol",
			util.EnvPassword: "pw",
		},
		Ports: map[int]int{8888: 8890, 8787: 8789},
	}}}

	sessions, err := newInspector(rt).ListSessions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "http://gpu-box:8890", sessions[0].NotebookURL)
	require.Equal(t, "http://gpu-box:8789", sessions[0].StudioURL)
}

func TestListSessionsOmitsUncataloguedPorts(t *testing.T) {
	t.Parallel()

	c := gpuDevContainer()
	c.Ports[9999] = 9999 // not defined by the catalog entry

	rt := &fakeRuntime{containers: []model.ContainerInfo{c}}

	sessions, err := newInspector(rt).ListSessions(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, map[int]int{8888: 8889}, sessions[0].Ports)
}

func TestListSessionsIdempotent(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{containers: []model.ContainerInfo{gpuDevContainer()}}
	insp := newInspector(rt)

	first, err := insp.ListSessions(context.Background(), false)
	require.NoError(t, err)
	second, err := insp.ListSessions(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestListSessionsRuntimeDown(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{listErr: errors.New("daemon down")}

	_, err := newInspector(rt).ListSessions(context.Background(), true)
	require.Error(t, err)
	require.Equal(t, model.KindUpstreamUnavailable, model.KindOf(err))
}

func TestFindSession(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{containers: []model.ContainerInfo{gpuDevContainer()}}
	insp := newInspector(rt)
	ctx := context.Background()

	s, err := insp.FindSession(ctx, "aaaa000011112222")
	require.NoError(t, err)
	require.NotNil(t, s)

	// docker-style prefix
	s, err = insp.FindSession(ctx, "aaaa000011")
	require.NoError(t, err)
	require.NotNil(t, s)

	// too-short prefix does not match
	s, err = insp.FindSession(ctx, "aaaa")
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = insp.FindSession(ctx, "ffff000011112222")
	require.NoError(t, err)
	require.Nil(t, s)
}
