package docker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"github.com/ssuji15/kennel/internal/service/logger"
	"github.com/ssuji15/kennel/internal/util"
	"github.com/ssuji15/kennel/model"
)

// DockerRuntime adapts the moby client to the runtime interface. Listing
// inspects every running container so the env and port bindings are available
// to the inspector in one pass.
type DockerRuntime struct {
	docker *client.Client
}

func NewDockerRuntime() (*DockerRuntime, error) {
	dc, err := NewDockerClient()
	if err != nil {
		return nil, fmt.Errorf("unable to initialise docker")
	}
	return &DockerRuntime{
		docker: dc,
	}, nil
}

func (d *DockerRuntime) ListContainers(ctx context.Context) ([]model.ContainerInfo, error) {
	listed, err := d.docker.ContainerList(ctx, client.ContainerListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	infos := make([]model.ContainerInfo, 0, len(listed.Items))
	for _, c := range listed.Items {
		inspected, err := d.docker.ContainerInspect(ctx, c.ID, client.ContainerInspectOptions{})
		if err != nil {
			// the container may have exited between list and inspect
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("container", c.ID).Msg("inspect failed, skipping")
			continue
		}
		infos = append(infos, toContainerInfo(inspected))
	}
	return infos, nil
}

func toContainerInfo(inspected client.ContainerInspectResult) model.ContainerInfo {
	c := inspected.Container

	info := model.ContainerInfo{
		ID:    c.ID,
		Name:  c.Name,
		Ports: map[int]int{},
	}

	if c.Config != nil {
		info.Image = c.Config.Image
		info.Labels = c.Config.Labels
		info.Env = util.ParseEnv(c.Config.Env)
	}

	if created, err := time.Parse(time.RFC3339Nano, c.Created); err == nil {
		info.CreatedAt = created
	}

	if c.HostConfig != nil {
		for port, bindings := range c.HostConfig.PortBindings {
			if len(bindings) == 0 {
				continue
			}
			host, err := strconv.Atoi(bindings[0].HostPort)
			if err != nil {
				continue
			}
			info.Ports[int(port.Num())] = host
		}
	}
	return info
}

func (d *DockerRuntime) CreateContainer(ctx context.Context, opts model.CreateOptions) (model.ContainerHandle, error) {
	env := make([]string, 0, len(opts.EnvVars))
	for k, v := range opts.EnvVars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	mounts := make([]mount.Mount, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	exposed := network.PortSet{}
	bindings := network.PortMap{}
	for internal, host := range opts.Ports {
		port, _ := network.PortFrom(uint16(internal), network.TCP)
		exposed[port] = struct{}{}
		bindings[port] = []network.PortBinding{
			{HostPort: strconv.Itoa(host)},
		}
	}

	hostCfg := &container.HostConfig{
		Runtime:      opts.Runtime,
		AutoRemove:   opts.AutoRemove,
		ShmSize:      opts.ShmSizeBytes,
		Mounts:       mounts,
		PortBindings: bindings,
	}
	cfg := &container.Config{
		Image:        opts.Image,
		User:         opts.User,
		Labels:       opts.Labels,
		Env:          env,
		ExposedPorts: exposed,
	}
	networkCfg := &network.NetworkingConfig{}

	created, err := d.docker.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           cfg,
		HostConfig:       hostCfg,
		NetworkingConfig: networkCfg,
		Name:             opts.Name,
	})
	if err != nil {
		return model.ContainerHandle{}, err
	}

	if _, err := d.docker.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		_, _ = d.docker.ContainerRemove(ctx, created.ID, client.ContainerRemoveOptions{Force: true})
		return model.ContainerHandle{}, err
	}

	inspected, err := d.docker.ContainerInspect(ctx, created.ID, client.ContainerInspectOptions{})
	if err != nil {
		return model.ContainerHandle{ID: created.ID, Name: opts.Name}, nil
	}
	return model.ContainerHandle{
		ID:     created.ID,
		Name:   inspected.Container.Name,
		Status: string(inspected.Container.State.Status),
	}, nil
}

func (d *DockerRuntime) KillContainer(ctx context.Context, id string) error {
	if _, err := d.docker.ContainerKill(ctx, id, client.ContainerKillOptions{}); err != nil {
		return err
	}
	return nil
}
