package reconciler

import (
	"errors"
	"fmt"
)

// Category classifies reconciler failures so a front end can map them to
// distinct process exit codes and automation can tell bad input from a
// broken environment from an unavailable collector.
type Category int

const (
	// TargetNotFound: a requested repository or tag does not exist. User
	// input error; aborts the run before any mutation.
	TargetNotFound Category = iota + 1

	// IOFailure: filesystem permission or device error. Fatal; stops
	// further mutation but resumption is still attempted.
	IOFailure

	// ServiceControlFailure: suspend, resume or exec failed or timed out.
	// Fatal before mutation; best-effort-logged after.
	ServiceControlFailure

	// GarbageCollectionFailure: the external collector failed. Degraded
	// success; completed deletions stand.
	GarbageCollectionFailure
)

func (c Category) String() string {
	switch c {
	case TargetNotFound:
		return "target-not-found"
	case IOFailure:
		return "io-failure"
	case ServiceControlFailure:
		return "service-control-failure"
	case GarbageCollectionFailure:
		return "garbage-collection-failure"
	}
	return "unknown"
}

// Error carries a failure category alongside the underlying error.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category Category, err error) *Error {
	return &Error{Category: category, Err: err}
}

// CategoryOf returns the category of a reconciler error, or zero when err
// carries none.
func CategoryOf(err error) Category {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Category
	}
	return 0
}
