package config

import (
	"os"
	"path/filepath"
)

// Config carries the environment-derived settings the tool needs. It is
// built once in the CLI and passed into constructors; no package reads the
// environment on its own.
type Config struct {
	// RegistryDir is the registry's root directory when operating on the
	// local filesystem (inside the registry container or on a detached
	// volume). Populated from REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY,
	// defaulting to the registry:2 location.
	RegistryDir string
}

func NewConfig() *Config {
	return &Config{
		RegistryDir: getRegistryDir(),
	}
}

func getRegistryDir() string {
	if dir := os.Getenv("REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY"); dir != "" {
		return dir
	}
	return "/var/lib/registry"
}

// StorageRoot returns the v2 storage root under the registry directory,
// the tree holding repositories/ and blobs/.
func (c *Config) StorageRoot() string {
	return filepath.Join(c.RegistryDir, "docker", "registry", "v2")
}

// InContainer reports whether the process runs inside a podman or docker
// container.
func InContainer() bool {
	if os.Getenv("container") == "podman" {
		return true
	}
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
