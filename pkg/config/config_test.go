package config

import (
	"path/filepath"
	"testing"
)

func TestStorageRoot(t *testing.T) {
	t.Run("default registry directory", func(t *testing.T) {
		t.Setenv("REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY", "")
		cfg := NewConfig()
		if cfg.RegistryDir != "/var/lib/registry" {
			t.Errorf("Expected default registry dir, got %s", cfg.RegistryDir)
		}
		want := filepath.Join("/var/lib/registry", "docker", "registry", "v2")
		if got := cfg.StorageRoot(); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY", "/data")
		cfg := NewConfig()
		want := filepath.Join("/data", "docker", "registry", "v2")
		if got := cfg.StorageRoot(); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	})
}
