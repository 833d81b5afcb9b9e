// Package reconciler removes unwanted tag references and repositories from
// a registry filesystem storage backend and drives the registry's garbage
// collector to reclaim the blobs they referenced. One run is strictly
// sequential: suspend the owning service, resolve targets, mutate (or
// report, in dry-run), collect garbage, resume the service. The storage
// tree is treated as exclusively owned between suspension and resumption;
// running two reconcilers against one root concurrently requires external
// mutual exclusion.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"

	"cleanregistry/pkg/gc"
	"cleanregistry/pkg/runtime"
	"cleanregistry/pkg/storage"
)

const (
	defaultServiceTimeout = 60 * time.Second
	defaultCollectTimeout = 10 * time.Minute
)

// Options configure one reconciler run.
type Options struct {
	// Targets are explicit removal requests. Empty Targets means default
	// cleanup: report untagged revisions and let the collector sweep them.
	Targets []Target

	// DryRun computes and reports the full plan without mutating the
	// store; the collector runs in its own dry-run mode to corroborate.
	DryRun bool

	// ServiceTimeout bounds each service stop/start. Zero uses a default.
	ServiceTimeout time.Duration

	// CollectTimeout bounds the garbage-collection pass. Zero uses a
	// default.
	CollectTimeout time.Duration
}

// Reconciler coordinates storage mutation, service lifecycle and garbage
// collection for one storage root.
type Reconciler struct {
	store     *storage.Store
	svc       runtime.Service // nil in detached mode
	collector gc.Collector    // nil when no collector is reachable
}

// New returns a Reconciler over the given store. svc may be nil (detached
// mode: no service to quiesce); collector may be nil (mutations apply but
// nothing is swept).
func New(store *storage.Store, svc runtime.Service, collector gc.Collector) *Reconciler {
	return &Reconciler{store: store, svc: svc, collector: collector}
}

// Reconcile performs one run and returns its report. The report is valid
// (possibly partial) even when err is non-nil; CategoryOf(err) tells a
// front end which failure class to exit with.
func (r *Reconciler) Reconcile(ctx context.Context, opts Options) (*Report, error) {
	if opts.ServiceTimeout == 0 {
		opts.ServiceTimeout = defaultServiceTimeout
	}
	if opts.CollectTimeout == 0 {
		opts.CollectTimeout = defaultCollectTimeout
	}

	report := &Report{RunID: uuid.NewString()}
	logger := log.WithField("run", report.RunID[:8])
	logger.WithFields(log.Fields{
		"root":    r.store.Root(),
		"targets": len(opts.Targets),
		"dry-run": opts.DryRun,
	}).Info("starting reconciliation")

	coord := newCoordinator(r.svc, opts.ServiceTimeout)
	if err := coord.suspend(ctx); err != nil {
		return report, err
	}

	err := r.run(ctx, opts, report)

	if resumeErr := coord.resume(ctx); resumeErr != nil {
		if err != nil {
			// Never mask the original failure; the stuck service is
			// logged for the operator.
			logger.WithError(resumeErr).Error("failed to restart service")
		} else {
			err = resumeErr
		}
	}
	return report, err
}

func (r *Reconciler) run(ctx context.Context, opts Options, report *Report) error {
	resolved, err := r.resolve(report, opts.Targets)
	if err != nil {
		return err
	}

	if err := r.execute(report, resolved, opts.DryRun); err != nil {
		return err
	}

	excl := planExclusions(resolved)
	err = r.untaggedRevisions(excl, func(repo string, dgst digest.Digest) {
		log.WithFields(log.Fields{"repository": repo, "digest": dgst}).Info("untagged revision")
		report.add(Action{Kind: ActionUntaggedRevision, Repository: repo, Digest: dgst, Outcome: OutcomeFound})
	})
	if err != nil {
		return err
	}

	// Nothing removed and nothing untagged means nothing for the collector
	// to reclaim; a no-op run stays a zero-action report.
	if report.TagsRemoved+report.RepositoriesRemoved+report.UntaggedFound == 0 {
		log.Debug("nothing to sweep; skipping garbage collection")
		return nil
	}
	return r.collect(ctx, report, opts)
}

// execute applies (or, in dry-run, only records) the explicit removals.
// Mutation stops at the first failure; completed removals are themselves
// valid states and are never rolled back.
func (r *Reconciler) execute(report *Report, resolved []resolvedTarget, dryRun bool) error {
	for _, t := range resolved {
		if t.Tag != "" {
			if err := r.removeTag(report, t, dryRun); err != nil {
				return err
			}
			continue
		}
		if err := r.removeRepository(report, t, dryRun); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) removeTag(report *Report, t resolvedTarget, dryRun bool) error {
	action := Action{Kind: ActionRemoveTag, Repository: t.Repository, Tag: t.Tag, Digest: t.digest}
	if dryRun {
		action.Outcome = OutcomeWouldRemove
		report.add(action)
		return nil
	}

	if err := r.store.RemoveTag(t.Repository, t.Tag); err != nil {
		report.add(Action{Kind: ActionRemoveTag, Repository: t.Repository, Tag: t.Tag, Outcome: OutcomeFailed})
		return classify(err)
	}
	// Post-condition: the tag link is gone, the repository and its sibling
	// tags persist.
	if r.store.TagExists(t.Repository, t.Tag) {
		return newError(IOFailure, fmt.Errorf("tag %s still present after removal", t))
	}
	if !r.store.RepositoryExists(t.Repository) {
		return newError(IOFailure, fmt.Errorf("repository %s vanished while removing tag %s", t.Repository, t.Tag))
	}
	action.Outcome = OutcomeRemoved
	report.add(action)
	return nil
}

func (r *Reconciler) removeRepository(report *Report, t resolvedTarget, dryRun bool) error {
	action := Action{Kind: ActionRemoveRepository, Repository: t.Repository}
	if dryRun {
		action.Outcome = OutcomeWouldRemove
		report.add(action)
		return nil
	}

	if err := r.store.RemoveRepository(t.Repository); err != nil {
		report.add(Action{Kind: ActionRemoveRepository, Repository: t.Repository, Outcome: OutcomeFailed})
		return classify(err)
	}
	// Post-condition: the whole subtree is gone.
	if r.store.RepositoryExists(t.Repository) {
		return newError(IOFailure, fmt.Errorf("repository %s still present after removal", t.Repository))
	}
	action.Outcome = OutcomeRemoved
	report.add(action)
	return nil
}

// collect drives the external garbage collector. Its failure is degraded
// success: the storage tree is consistent, just not swept.
func (r *Reconciler) collect(ctx context.Context, report *Report, opts Options) error {
	if r.collector == nil {
		log.Debug("no garbage collector wired; skipping sweep")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opts.CollectTimeout)
	defer cancel()

	if err := r.collector.Collect(ctx, opts.DryRun); err != nil {
		report.add(Action{Kind: ActionGarbageCollect, Outcome: OutcomeFailed})
		return newError(GarbageCollectionFailure, err)
	}
	report.add(Action{Kind: ActionGarbageCollect, Outcome: OutcomeDone})
	return nil
}

// classify maps a storage error to the reconciler taxonomy. Absence during
// mutation means the tree changed under us after resolution; that still
// reads as a missing target, not an I/O fault.
func classify(err error) error {
	if storage.IsNotFound(err) {
		return newError(TargetNotFound, err)
	}
	return newError(IOFailure, err)
}
