package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cleanregistry/pkg/config"
	"cleanregistry/pkg/gc"
	"cleanregistry/pkg/reconciler"
	"cleanregistry/pkg/runtime"
	"cleanregistry/pkg/storage"
)

const version = "1.0.0"

var (
	dryRun   bool
	remove   bool
	logLevel string
	podman   bool
)

var rootCmd = &cobra.Command{
	Use:   "cleanregistry [flags] [CONTAINER|DIRECTORY] [REPOSITORY[:TAG]...]",
	Short: "Remove tags and repositories from a Docker registry and reclaim the space",
	Long: `cleanregistry removes unwanted tag references and repositories from the
filesystem storage backend of a Docker registry, then runs the registry's
own garbage collector to purge blobs nothing references anymore.

The first argument names the registry container (stopped before mutation
and restarted after) or a storage directory to operate on directly. With
no arguments the tool expects to run inside the registry container itself.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would be removed without removing anything")
	rootCmd.Flags().BoolVarP(&remove, "remove", "x", false, "remove the given repositories and tags")
	rootCmd.Flags().StringVarP(&logLevel, "log", "l", "info", "log level (debug|info|warning|error)")
	rootCmd.Flags().BoolVar(&podman, "podman", false, "control the registry container through podman instead of docker")
}

func run(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	cfg := config.NewConfig()

	identifier := ""
	rawTargets := args
	if len(args) > 0 {
		identifier = args[0]
		rawTargets = args[1:]
	} else if !config.InContainer() {
		return fmt.Errorf("no container or directory given and not running inside a registry container")
	}

	targets, err := reconciler.ParseTargets(rawTargets)
	if err != nil {
		return err
	}
	if len(targets) > 0 && !remove {
		return fmt.Errorf("repositories/tags given without --remove")
	}

	root, svc, err := locate(cmd.Context(), cfg, identifier)
	if err != nil {
		return err
	}

	store := storage.NewStore(root)
	rec := reconciler.New(store, svc, collector(svc))

	report, err := rec.Reconcile(cmd.Context(), reconciler.Options{
		Targets: targets,
		DryRun:  dryRun,
	})
	report.Write(os.Stdout)
	return err
}

// locate resolves the positional identifier to a storage root and, when it
// names a container, a service handle. An empty identifier means the tool
// runs inside the registry container and uses its local storage directly.
func locate(ctx context.Context, cfg *config.Config, identifier string) (string, runtime.Service, error) {
	if identifier == "" {
		return cfg.StorageRoot(), nil, nil
	}
	if info, err := os.Stat(identifier); err == nil && info.IsDir() {
		return runtime.NewLocator(nil).Locate(ctx, identifier)
	}

	var backend runtime.Backend
	var err error
	if podman {
		backend, err = runtime.NewPodmanBackend("")
	} else {
		backend, err = runtime.NewDockerBackend("")
	}
	if err != nil {
		return "", nil, err
	}
	return runtime.NewLocator(backend).Locate(ctx, identifier)
}

func collector(svc runtime.Service) gc.Collector {
	if svc != nil {
		return gc.NewExecCollector(svc)
	}
	if _, err := os.Stat(gc.DefaultBinary); err == nil {
		return gc.NewLocalCollector()
	}
	log.Warn("registry binary not found; unreferenced blobs will not be swept")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the reconciler error taxonomy to distinct process exit
// codes: 1 bad input or missing target, 2 I/O or service-control failure,
// 3 collector failure (storage already consistent, just not swept).
func exitCode(err error) int {
	switch reconciler.CategoryOf(err) {
	case reconciler.TargetNotFound:
		return 1
	case reconciler.IOFailure, reconciler.ServiceControlFailure:
		return 2
	case reconciler.GarbageCollectionFailure:
		return 3
	}
	return 1
}
