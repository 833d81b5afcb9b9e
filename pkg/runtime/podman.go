package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/client"
)

// PodmanBackend controls containers through podman's Docker-compatible API
// service. It shares the Engine API wire protocol with the docker backend;
// only socket discovery and the reported runtime name differ.
type PodmanBackend struct {
	DockerBackend
}

// NewPodmanBackend returns a backend connected to the podman API service.
// An empty host tries CONTAINER_HOST, the rootless user socket, and the
// system socket, in that order.
func NewPodmanBackend(host string) (*PodmanBackend, error) {
	if host == "" {
		host = podmanHost()
	}
	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create podman client: %w", err)
	}
	return &PodmanBackend{DockerBackend{cli: cli, name: "podman"}}, nil
}

func podmanHost() string {
	if host := os.Getenv("CONTAINER_HOST"); host != "" {
		return host
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		sock := filepath.Join(dir, "podman", "podman.sock")
		if _, err := os.Stat(sock); err == nil {
			return "unix://" + sock
		}
	}
	return "unix:///run/podman/podman.sock"
}
