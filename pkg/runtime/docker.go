package runtime

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	log "github.com/sirupsen/logrus"
)

// DockerBackend controls containers through the Docker Engine API.
type DockerBackend struct {
	cli  *client.Client
	name string
}

// NewDockerBackend returns a backend connected to the docker daemon. An
// empty host uses the environment (DOCKER_HOST) and the default socket.
func NewDockerBackend(host string) (*DockerBackend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerBackend{cli: cli, name: "docker"}, nil
}

func (b *DockerBackend) Name() string {
	return b.name
}

// Lookup resolves a container name or ID via container inspect.
func (b *DockerBackend) Lookup(ctx context.Context, name string) (Service, *ContainerInfo, error) {
	inspect, err := b.cli.ContainerInspect(ctx, name)
	if errdefs.IsNotFound(err) {
		return nil, nil, ErrNotFound{Identifier: name}
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	info := &ContainerInfo{
		ID:  inspect.ID,
		Env: inspect.Config.Env,
	}
	for _, m := range inspect.Mounts {
		info.Mounts = append(info.Mounts, Mount{
			Destination: m.Destination,
			Source:      m.Source,
		})
	}
	svc := &apiService{
		cli:     b.cli,
		runtime: b.name,
		id:      inspect.ID,
		name:    name,
	}
	return svc, info, nil
}

// apiService drives one container over the Engine API. The podman backend
// reuses it unchanged against podman's compatibility endpoint.
type apiService struct {
	cli     *client.Client
	runtime string
	id      string
	name    string
}

func (s *apiService) Name() string {
	return fmt.Sprintf("%s container %s", s.runtime, s.name)
}

func (s *apiService) IsRunning(ctx context.Context) (bool, error) {
	inspect, err := s.cli.ContainerInspect(ctx, s.id)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", s.Name(), err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}

func (s *apiService) Stop(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seconds := int(timeout.Seconds())
	log.WithField("container", s.name).Debug("stopping container")
	if err := s.cli.ContainerStop(ctx, s.id, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("failed to stop %s: %w", s.Name(), err)
	}
	return nil
}

func (s *apiService) Start(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.WithField("container", s.name).Debug("starting container")
	if err := s.cli.ContainerStart(ctx, s.id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start %s: %w", s.Name(), err)
	}
	return nil
}

func (s *apiService) Exec(ctx context.Context, cmd []string) (int, string, error) {
	exec, err := s.cli.ContainerExecCreate(ctx, s.id, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, "", fmt.Errorf("failed to create exec in %s: %w", s.Name(), err)
	}

	attach, err := s.cli.ContainerExecAttach(ctx, exec.ID, types.ExecStartCheck{})
	if err != nil {
		return -1, "", fmt.Errorf("failed to start exec in %s: %w", s.Name(), err)
	}
	defer attach.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, attach.Reader); err != nil {
		return -1, buf.String(), fmt.Errorf("failed to read exec output from %s: %w", s.Name(), err)
	}

	inspect, err := s.cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return -1, buf.String(), fmt.Errorf("failed to inspect exec in %s: %w", s.Name(), err)
	}
	return inspect.ExitCode, buf.String(), nil
}
