package reconciler

import (
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

// ActionKind names one kind of reconciler action.
type ActionKind string

const (
	ActionRemoveTag        ActionKind = "remove-tag"
	ActionRemoveRepository ActionKind = "remove-repository"
	ActionUntaggedRevision ActionKind = "untagged-revision"
	ActionGarbageCollect   ActionKind = "garbage-collect"
)

// Outcome records what happened (or would happen) to one action.
type Outcome string

const (
	OutcomeWouldRemove     Outcome = "would-remove"
	OutcomeRemoved         Outcome = "removed"
	OutcomeSkippedNotFound Outcome = "skipped:not-found"
	OutcomeFound           Outcome = "found"
	OutcomeDone            Outcome = "done"
	OutcomeFailed          Outcome = "failed"
)

// Action is one entry in the ordered action log.
type Action struct {
	Kind       ActionKind
	Repository string
	Tag        string
	Digest     digest.Digest
	Outcome    Outcome
}

func (a Action) String() string {
	subject := a.Repository
	switch a.Kind {
	case ActionRemoveTag:
		subject = a.Repository + ":" + a.Tag
	case ActionUntaggedRevision:
		subject = fmt.Sprintf("%s@%s", a.Repository, a.Digest)
	case ActionGarbageCollect:
		subject = "storage"
	}
	return fmt.Sprintf("%-18s %-16s %s", a.Kind, a.Outcome, subject)
}

// Report is the ordered action log of one reconciler run plus overall
// counts. An empty report (zero actions) is a valid success.
type Report struct {
	RunID   string
	Actions []Action

	TagsRemoved         int
	RepositoriesRemoved int
	UntaggedFound       int
}

func (r *Report) add(a Action) {
	r.Actions = append(r.Actions, a)
	switch {
	case a.Kind == ActionRemoveTag && (a.Outcome == OutcomeRemoved || a.Outcome == OutcomeWouldRemove):
		r.TagsRemoved++
	case a.Kind == ActionRemoveRepository && (a.Outcome == OutcomeRemoved || a.Outcome == OutcomeWouldRemove):
		r.RepositoriesRemoved++
	case a.Kind == ActionUntaggedRevision:
		r.UntaggedFound++
	}
}

// Empty reports whether the run produced no actions.
func (r *Report) Empty() bool {
	return len(r.Actions) == 0
}

// Write prints the action log and counts in a stable, line-oriented form.
func (r *Report) Write(w io.Writer) {
	for _, a := range r.Actions {
		fmt.Fprintln(w, a)
	}
	fmt.Fprintf(w, "run %s: %d tags removed, %d repositories removed, %d untagged revisions\n",
		r.RunID, r.TagsRemoved, r.RepositoriesRemoved, r.UntaggedFound)
}
