package reconciler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"cleanregistry/pkg/runtime"
)

// coordinator quiesces the service that owns the storage root around the
// whole mutation phase. Suspension is coarse-grained: one stop before any
// mutation, one start after everything, so no server process ever observes
// a half-mutated tree and restart cost is paid once.
type coordinator struct {
	svc     runtime.Service
	timeout time.Duration

	wasRunning bool
	suspended  bool
	resumed    bool
}

func newCoordinator(svc runtime.Service, timeout time.Duration) *coordinator {
	return &coordinator{svc: svc, timeout: timeout}
}

// suspend stops the service and verifies it is no longer running. In
// detached mode (nil service) it is a no-op. Any failure here aborts the
// run before mutation: never mutate with the service possibly serving.
func (c *coordinator) suspend(ctx context.Context) error {
	if c.svc == nil {
		c.suspended = true
		return nil
	}

	running, err := c.svc.IsRunning(ctx)
	if err != nil {
		return newError(ServiceControlFailure, err)
	}
	c.wasRunning = running

	if running {
		log.WithField("service", c.svc.Name()).Info("stopping service before mutation")
		if err := c.svc.Stop(ctx, c.timeout); err != nil {
			return newError(ServiceControlFailure, err)
		}
	}

	running, err = c.svc.IsRunning(ctx)
	if err != nil {
		return newError(ServiceControlFailure, err)
	}
	if running {
		return newError(ServiceControlFailure,
			fmt.Errorf("%s still running after stop", c.svc.Name()))
	}
	c.suspended = true
	return nil
}

// resume restarts the service if suspend stopped it. Called exactly once
// per run, even when mutation failed, so the service is not left down. A
// resume failure is reported by the caller but never masks the mutation
// error.
func (c *coordinator) resume(ctx context.Context) error {
	if c.resumed || !c.suspended || c.svc == nil || !c.wasRunning {
		return nil
	}
	c.resumed = true

	log.WithField("service", c.svc.Name()).Info("restarting service")
	if err := c.svc.Start(ctx, c.timeout); err != nil {
		return newError(ServiceControlFailure, err)
	}
	return nil
}
