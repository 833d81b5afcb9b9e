package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	// defaultRegistryDir is where registry:2 keeps its filesystem backend
	// unless REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY overrides it.
	defaultRegistryDir = "/var/lib/registry"

	registryEnvVar = "REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY"

	// storageSuffix is the fixed path from the registry root directory to
	// the v2 storage root holding repositories/ and blobs/.
	storageSuffix = "docker/registry/v2"
)

// Locator resolves an identifier (container name/ID or directory path) to
// the storage root it denotes and, when a container is involved, a Service
// handle for lifecycle coordination. Directory identifiers resolve to
// detached mode: a nil Service.
type Locator struct {
	backend Backend
}

// NewLocator returns a Locator using the given backend for container
// identifiers. A nil backend restricts the Locator to directory paths.
func NewLocator(backend Backend) *Locator {
	return &Locator{backend: backend}
}

// Locate resolves identifier to (storageRoot, service). Existing
// directories win over container names; a directory that holds neither a
// repositories subtree nor a docker/registry/v2 subtree is treated as an
// empty store rooted at the directory itself.
func (l *Locator) Locate(ctx context.Context, identifier string) (string, Service, error) {
	if info, err := os.Stat(identifier); err == nil && info.IsDir() {
		root := directoryRoot(identifier)
		log.WithFields(log.Fields{"identifier": identifier, "root": root}).
			Debug("resolved identifier to detached storage root")
		return root, nil, nil
	}

	if l.backend == nil {
		return "", nil, ErrNotFound{Identifier: identifier}
	}

	svc, info, err := l.backend.Lookup(ctx, identifier)
	if err != nil {
		return "", nil, err
	}

	registryDir := envValue(info.Env, registryEnvVar, defaultRegistryDir)
	hostDir, err := hostPath(info.Mounts, registryDir)
	if err != nil {
		return "", nil, fmt.Errorf("container %s: %w", identifier, err)
	}
	root := filepath.Join(hostDir, storageSuffix)
	log.WithFields(log.Fields{"identifier": identifier, "root": root}).
		Debug("resolved container to storage root")
	return root, svc, nil
}

func directoryRoot(dir string) string {
	if _, err := os.Stat(filepath.Join(dir, "repositories")); err == nil {
		return dir
	}
	nested := filepath.Join(dir, storageSuffix)
	if _, err := os.Stat(nested); err == nil {
		return nested
	}
	return dir
}

func envValue(env []string, key, fallback string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return fallback
}

// hostPath maps a path inside the container to its host-side source using
// the container's mounts. The registry directory must be backed by a bind
// mount or volume for the reconciler to reach it from outside.
func hostPath(mounts []Mount, containerPath string) (string, error) {
	for _, m := range mounts {
		if m.Destination == containerPath {
			return m.Source, nil
		}
		if strings.HasPrefix(containerPath, m.Destination+string(os.PathSeparator)) {
			return filepath.Join(m.Source, containerPath[len(m.Destination):]), nil
		}
	}
	return "", fmt.Errorf("registry directory %s is not backed by a mount reachable from the host", containerPath)
}
