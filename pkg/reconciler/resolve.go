package reconciler

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"cleanregistry/pkg/storage"
)

// resolvedTarget is a Target verified against the store. Tag targets carry
// the digest the tag currently references.
type resolvedTarget struct {
	Target
	digest digest.Digest
}

// resolve verifies every explicit target against the store without
// mutating anything, so the dry-run and mutate paths share identical
// resolution. Absent targets are recorded in the report and fail the whole
// run: a multi-target request is never partially executed.
func (r *Reconciler) resolve(report *Report, targets []Target) ([]resolvedTarget, error) {
	var resolved []resolvedTarget
	var missing []string

	for _, t := range targets {
		kind := ActionRemoveRepository
		if t.Tag != "" {
			kind = ActionRemoveTag
		}

		if !r.store.RepositoryExists(t.Repository) {
			report.add(Action{Kind: kind, Repository: t.Repository, Tag: t.Tag, Outcome: OutcomeSkippedNotFound})
			missing = append(missing, t.String())
			continue
		}
		if t.Tag == "" {
			resolved = append(resolved, resolvedTarget{Target: t})
			continue
		}

		dgst, err := r.store.ResolveTag(t.Repository, t.Tag)
		if storage.IsNotFound(err) {
			report.add(Action{Kind: kind, Repository: t.Repository, Tag: t.Tag, Outcome: OutcomeSkippedNotFound})
			missing = append(missing, t.String())
			continue
		} else if err != nil {
			return nil, newError(IOFailure, err)
		}
		resolved = append(resolved, resolvedTarget{Target: t, digest: dgst})
	}

	if len(missing) > 0 {
		return nil, newError(TargetNotFound,
			fmt.Errorf("no such repository/tag: %s", strings.Join(missing, ", ")))
	}
	return resolved, nil
}

// exclusions describe tags and repositories an explicit-removal plan will
// delete, so untagged detection counts their references as already gone.
// This keeps the dry-run report equal to what a mutating run observes
// after its deletions.
type exclusions struct {
	repos map[string]bool
	tags  map[string]map[string]bool
}

func planExclusions(resolved []resolvedTarget) exclusions {
	excl := exclusions{
		repos: make(map[string]bool),
		tags:  make(map[string]map[string]bool),
	}
	for _, t := range resolved {
		if t.Tag == "" {
			excl.repos[t.Repository] = true
			continue
		}
		if excl.tags[t.Repository] == nil {
			excl.tags[t.Repository] = make(map[string]bool)
		}
		excl.tags[t.Repository][t.Tag] = true
	}
	return excl
}

// untaggedRevisions walks every repository and reports manifest revisions
// referenced by no tag: the set difference between recorded revisions and
// the digests current tag links point at.
func (r *Reconciler) untaggedRevisions(excl exclusions, fn func(repo string, dgst digest.Digest)) error {
	err := r.store.Repositories(func(repo string) error {
		if excl.repos[repo] {
			return nil
		}

		revisions, err := r.store.Revisions(repo)
		if err != nil {
			return err
		}
		if len(revisions) == 0 {
			return nil
		}

		tags, err := r.store.Tags(repo)
		if err != nil {
			return err
		}
		referenced := make(map[digest.Digest]bool, len(tags))
		for _, tag := range tags {
			if excl.tags[repo][tag] {
				continue
			}
			dgst, err := r.store.ResolveTag(repo, tag)
			if err != nil {
				return err
			}
			referenced[dgst] = true
		}

		for _, dgst := range revisions {
			if !referenced[dgst] {
				fn(repo, dgst)
			}
		}
		return nil
	})
	if err != nil {
		return newError(IOFailure, err)
	}
	return nil
}
