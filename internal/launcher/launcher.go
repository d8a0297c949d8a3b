package launcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ssuji15/kennel/internal/allocator"
	"github.com/ssuji15/kennel/internal/catalog"
	"github.com/ssuji15/kennel/internal/identity"
	"github.com/ssuji15/kennel/internal/inspector"
	"github.com/ssuji15/kennel/internal/runtime"
	"github.com/ssuji15/kennel/internal/service/logger"
	"github.com/ssuji15/kennel/internal/util"
	"github.com/ssuji15/kennel/model"
)

const (
	nvidiaRuntime = "nvidia"

	// 8G shared memory for gpu launches. The docker default of 64M causes
	// bus errors under pytorch data loaders.
	gpuShmSizeBytes = 8 << 30
)

// Host paths mounted into every session.
var mountTable = []model.MountPoint{
	{Source: "/etc/group", Target: "/etc/group", ReadOnly: true},
	{Source: "/etc/passwd", Target: "/etc/passwd", ReadOnly: true},
	{Source: "/etc/skel", Target: "/etc/skel", ReadOnly: true},
	{Source: "/data", Target: "/data"},
}

// Service owns the launch and kill paths. The mutex serializes admission,
// device and port reservation, and the runtime create call: allocator state
// is re-derived from the runtime on every call, so without the lock two
// concurrent launches could reserve the same device or port between the check
// and the create.
type Service struct {
	rt    runtime.Runtime
	cat   *catalog.Catalog
	ids   identity.Resolver
	gpus  *allocator.DeviceAllocator
	ports *allocator.PortAllocator
	insp  *inspector.Inspector

	mu sync.Mutex
}

func NewService(rt runtime.Runtime, cat *catalog.Catalog, ids identity.Resolver, gpus *allocator.DeviceAllocator, ports *allocator.PortAllocator, insp *inspector.Inspector) *Service {
	return &Service{
		rt:    rt,
		cat:   cat,
		ids:   ids,
		gpus:  gpus,
		ports: ports,
		insp:  insp,
	}
}

// admission carries everything buildSpec needs from a passed admission
// check.
type admission struct {
	spec     model.ImageSpec
	class    catalog.Class
	account  identity.Account
	gpuCount int
}

// Launch admits, materializes, and creates one session. Admission and
// allocation failures come back as a rejected LaunchResult, never an error.
func (s *Service) Launch(ctx context.Context, req model.LaunchRequest) model.LaunchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.FromContext(ctx)

	adm, err := s.admit(ctx, req)
	if err != nil {
		log.Info().Err(err).Str("user", req.Username).Str("imageType", req.ImageType).Msg("launch rejected")
		return launchFailure(err)
	}

	opts, err := s.buildSpec(ctx, req, adm)
	if err != nil {
		log.Info().Err(err).Str("user", req.Username).Str("imageType", req.ImageType).Msg("launch allocation failed")
		return launchFailure(err)
	}

	handle, err := s.rt.CreateContainer(ctx, opts)
	if err != nil {
		err = &model.RuntimeError{Op: "create", Kind: model.KindRuntimeCreateFailed, Err: err}
		log.Error().Err(err).Str("user", req.Username).Str("imageType", req.ImageType).Msg("container create failed")
		return launchFailure(err)
	}

	log.Info().
		Str("container", handle.ID).
		Str("user", req.Username).
		Str("imageType", req.ImageType).
		Int("gpus", adm.gpuCount).
		Msg("container launched")

	result := model.LaunchResult{
		OK:      true,
		Message: "container launched successfully",
		Handle:  &handle,
	}

	// post-launch refresh; best effort, the container is already up
	if session, err := s.insp.FindSession(ctx, handle.ID); err == nil && session != nil {
		result.Session = session
	}
	return result
}

// admit runs the admission checks in order, short-circuiting on the first
// failure. Pure reads; no side effects.
func (s *Service) admit(ctx context.Context, req model.LaunchRequest) (admission, error) {
	spec, err := s.cat.Lookup(req.ImageType)
	if err != nil {
		return admission{}, err
	}
	class := s.cat.ClassOf(req.ImageType)

	if spec.Exclusive {
		sessions, err := s.insp.ListSessions(ctx, true)
		if err != nil {
			return admission{}, err
		}
		for _, live := range sessions {
			if live.ImageType == spec.Key {
				return admission{}, &model.AlreadyRunningError{Type: spec.Key}
			}
		}
	}

	gpuCount := req.GPUCount
	if gpuCount == 0 {
		gpuCount = spec.GPUs
	}
	if gpuCount > 0 {
		available, err := s.gpus.AvailableCount(ctx)
		if err != nil {
			return admission{}, &model.UpstreamError{Upstream: "runtime", Err: err}
		}
		if gpuCount > available {
			return admission{}, &model.InsufficientCapacityError{Requested: gpuCount, Available: available}
		}
	}

	account, err := s.ids.Lookup(req.Username)
	if err != nil {
		return admission{}, err
	}
	if !s.ids.HomeExists(account.Home) {
		return admission{}, &model.NoHomeDirectoryError{Username: req.Username}
	}

	if class.Notebook && req.Credential == "" {
		return admission{}, &model.MissingCredentialError{Type: spec.Key}
	}

	return admission{
		spec:     spec,
		class:    class,
		account:  account,
		gpuCount: gpuCount,
	}, nil
}

// buildSpec materializes the container options for an admitted request.
// The catalog entry was deep-copied at Lookup, so port resolution below never
// touches shared state.
func (s *Service) buildSpec(ctx context.Context, req model.LaunchRequest, adm admission) (model.CreateOptions, error) {
	env := map[string]string{
		util.EnvUser: req.Username,
		util.EnvHome: adm.account.Home,
	}
	if adm.class.Notebook {
		env[util.EnvPassword] = req.Credential
	}

	ports := make(map[int]int, len(adm.spec.Ports))
	taken := make(map[int]bool)
	for internal, policy := range adm.spec.Ports {
		switch policy.Mode {
		case model.PortFixed:
			ports[internal] = policy.Port
			taken[policy.Port] = true
		case model.PortAuto:
			host, err := s.ports.FindOpenPortExcluding(policy.RangeStart, policy.RangeEnd, taken)
			if err != nil {
				return model.CreateOptions{}, err
			}
			ports[internal] = host
			taken[host] = true
		}
	}

	opts := model.CreateOptions{
		Name:       fmt.Sprintf("%s-%s", adm.spec.Key, uuid.New().String()[:8]),
		Image:      adm.spec.Image,
		User:       adm.account.UID + ":" + adm.account.GID,
		EnvVars:    env,
		Labels:     map[string]string{inspector.ImageTypeLabel: adm.spec.Key},
		Ports:      ports,
		AutoRemove: adm.spec.AutoRemove,
	}

	opts.Mounts = append(opts.Mounts, model.MountPoint{Source: adm.account.Home, Target: adm.account.Home})
	opts.Mounts = append(opts.Mounts, mountTable...)

	if adm.gpuCount > 0 {
		devices, err := s.gpus.Reserve(ctx, adm.gpuCount)
		if err != nil {
			return model.CreateOptions{}, err
		}
		env[allocator.DeviceEnvVar] = util.JoinDevices(devices)
		opts.Runtime = nvidiaRuntime
		opts.ShmSizeBytes = gpuShmSizeBytes
	} else {
		// always present so downstream tooling can rely on it
		env[allocator.DeviceEnvVar] = "none"
	}

	return opts, nil
}

// Kill terminates one session. Sessions launched with a credential require
// the matching credential; the check compares digests in constant time. Kills
// do not take the launch lock, killing A never affects B's accounting.
func (s *Service) Kill(ctx context.Context, id string, credential string) model.KillResult {
	log := logger.FromContext(ctx)

	session, err := s.insp.FindSession(ctx, id)
	if err != nil {
		return killFailure(id, err)
	}

	if session != nil && session.CredentialHash != "" {
		if !util.VerifyCredential(credential, session.CredentialHash) {
			err := &model.CredentialMismatchError{ID: id}
			log.Info().Str("container", id).Msg("kill rejected: bad credential")
			return killFailure(id, err)
		}
	}

	if err := s.rt.KillContainer(ctx, id); err != nil {
		werr := &model.RuntimeError{Op: "kill", Kind: model.KindRuntimeKillFailed, Err: err}
		log.Error().Err(werr).Str("container", id).Msg("container kill failed")
		return killFailure(id, werr)
	}

	log.Info().Str("container", id).Msg("container killed")
	return model.KillResult{
		OK:      true,
		ID:      id,
		Message: "container killed successfully",
	}
}

// ListSessions is the read-only inspection path; it takes no lock.
func (s *Service) ListSessions(ctx context.Context, filterUntracked bool) ([]model.Session, error) {
	return s.insp.ListSessions(ctx, filterUntracked)
}

func launchFailure(err error) model.LaunchResult {
	return model.LaunchResult{
		Message: err.Error(),
		Kind:    model.KindOf(err),
	}
}

func killFailure(id string, err error) model.KillResult {
	return model.KillResult{
		ID:      id,
		Message: err.Error(),
		Kind:    model.KindOf(err),
	}
}
