package gc

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Execer runs a command inside the service that owns the storage root.
// runtime.Service satisfies it.
type Execer interface {
	Exec(ctx context.Context, cmd []string) (int, string, error)
}

// ExecCollector runs the garbage collector inside the registry container
// through the service's exec primitive.
type ExecCollector struct {
	execer Execer
	binary string
	config string
}

// NewExecCollector returns a collector that execs the registry binary
// inside the given service, using registry:2 default paths.
func NewExecCollector(execer Execer) *ExecCollector {
	return &ExecCollector{execer: execer, binary: DefaultBinary, config: DefaultConfig}
}

func (c *ExecCollector) Collect(ctx context.Context, dryRun bool) error {
	argv := command(c.binary, c.config, dryRun)
	log.Infof("running %v in service", argv)

	code, output, err := c.execer.Exec(ctx, argv)
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line != "" {
			log.Info(line)
		}
	}
	if err != nil {
		return fmt.Errorf("garbage collector exec failed: %w", err)
	}
	if code != 0 {
		return exitError(argv, code)
	}
	return nil
}
