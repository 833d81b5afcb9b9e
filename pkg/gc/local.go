package gc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// LocalCollector execs the registry binary as a local subprocess. This is
// the path used when the tool itself runs inside the registry container or
// operates on a detached storage directory with the binary installed.
type LocalCollector struct {
	Binary string
	Config string
}

// NewLocalCollector returns a collector using the registry:2 default
// binary and configuration paths.
func NewLocalCollector() *LocalCollector {
	return &LocalCollector{Binary: DefaultBinary, Config: DefaultConfig}
}

func (c *LocalCollector) Collect(ctx context.Context, dryRun bool) error {
	argv := command(c.Binary, c.Config, dryRun)
	log.Infof("running %v", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to pipe collector output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}

	// Relay collector output line by line so long sweeps stay observable.
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Info(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitError(argv, exitErr.ExitCode())
		}
		return fmt.Errorf("garbage collector failed: %w", err)
	}
	return nil
}
