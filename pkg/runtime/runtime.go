package runtime

import (
	"context"
	"fmt"
	"time"
)

// Service controls the lifecycle of the container that owns a registry
// storage root. Two backends (docker and podman) satisfy it
// interchangeably; the caller selects one at startup and the rest of the
// pipeline is indifferent to which is wired in.
type Service interface {
	// Name returns a human-readable identifier for logs and reports.
	Name() string

	// IsRunning reports whether the container is currently running.
	IsRunning(ctx context.Context) (bool, error)

	// Stop stops the container, waiting up to timeout for it to exit.
	Stop(ctx context.Context, timeout time.Duration) error

	// Start starts the container.
	Start(ctx context.Context, timeout time.Duration) error

	// Exec runs a command inside the container and returns its exit code
	// and combined output.
	Exec(ctx context.Context, cmd []string) (int, string, error)
}

// Backend looks up containers on a specific container runtime.
type Backend interface {
	// Name identifies the runtime ("docker" or "podman").
	Name() string

	// Lookup resolves a container name or ID to a Service handle plus the
	// inspect data the Locator needs.
	Lookup(ctx context.Context, name string) (Service, *ContainerInfo, error)
}

// ContainerInfo is the subset of container inspect data used to locate the
// registry storage root on the host.
type ContainerInfo struct {
	ID     string
	Env    []string
	Mounts []Mount
}

// Mount maps a path inside the container to its source on the host.
type Mount struct {
	Destination string
	Source      string
}

// ErrNotFound is returned when an identifier resolves to neither a
// directory nor a known container.
type ErrNotFound struct {
	Identifier string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no such container or directory: %s", e.Identifier)
}
