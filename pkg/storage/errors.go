package storage

import (
	"errors"
	"fmt"
)

// ErrRepositoryUnknown is returned when a repository does not exist under
// the storage root.
type ErrRepositoryUnknown struct {
	Name string
}

func (e ErrRepositoryUnknown) Error() string {
	return fmt.Sprintf("unknown repository: %s", e.Name)
}

// ErrTagUnknown is returned when a tag does not exist within a repository.
type ErrTagUnknown struct {
	Repository string
	Tag        string
}

func (e ErrTagUnknown) Error() string {
	return fmt.Sprintf("unknown tag: %s in repository %s", e.Tag, e.Repository)
}

// IsNotFound reports whether err signals an absent repository or tag, as
// opposed to an I/O failure. Callers decide whether absence is acceptable.
func IsNotFound(err error) bool {
	var repoErr ErrRepositoryUnknown
	var tagErr ErrTagUnknown
	return errors.As(err, &repoErr) || errors.As(err, &tagErr)
}
