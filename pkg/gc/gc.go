// Package gc invokes the registry's own garbage collector, which computes
// global blob reachability and prunes unreferenced blobs and revision
// records. The collector is opaque to this tool: only its exit status and
// output are consumed, never its internals.
package gc

import (
	"context"
	"fmt"
)

const (
	// DefaultBinary is where the registry:2 image installs the registry
	// binary that carries the garbage-collect subcommand.
	DefaultBinary = "/bin/registry"

	// DefaultConfig is the registry configuration inside a registry:2
	// container.
	DefaultConfig = "/etc/docker/registry/config.yml"
)

// Collector runs one garbage-collection pass over a storage root.
type Collector interface {
	// Collect runs the collector, in verify-only mode when dryRun is set.
	// A non-zero collector exit status is an error.
	Collect(ctx context.Context, dryRun bool) error
}

// command builds the garbage-collect argument vector shared by all
// collector implementations.
func command(binary, config string, dryRun bool) []string {
	cmd := []string{binary, "garbage-collect", "--delete-untagged"}
	if dryRun {
		cmd = append(cmd, "--dry-run")
	}
	return append(cmd, config)
}

// exitError wraps a collector exit status.
func exitError(cmd []string, code int) error {
	return fmt.Errorf("garbage collector %v exited with status %d", cmd, code)
}
