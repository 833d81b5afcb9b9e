package reconciler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/reference"
)

// Target is one removal request: a bare repository (remove the whole
// repository) or repository plus tag (remove one tag reference).
type Target struct {
	Repository string
	Tag        string
}

func (t Target) String() string {
	if t.Tag == "" {
		return t.Repository
	}
	return t.Repository + ":" + t.Tag
}

// maxTargetLength bounds the whole repository[:tag] string, matching the
// registry's limit on repository name length.
const maxTargetLength = 256

var (
	anchoredTagRegexp = regexp.MustCompile(`^` + reference.TagRegexp.String() + `$`)

	// Path components per the distribution reference grammar: lowercase
	// alphanumerics separated by periods, single or double underscores, or
	// runs of dashes. Storage repository names carry no registry domain, so
	// the full reference.NameRegexp (which admits one) is too permissive.
	repoComponentRegexp = regexp.MustCompile(`^[a-z0-9]+(?:(?:[._]|__|[-]+)[a-z0-9]+)*$`)
)

// ParseTarget validates and splits a REPOSITORY[:TAG] argument.
func ParseTarget(s string) (Target, error) {
	if len(s) >= maxTargetLength {
		return Target{}, fmt.Errorf("invalid repository/tag %q: longer than %d characters", s, maxTargetLength-1)
	}
	repo, tag := s, ""
	if i := strings.Index(s, ":"); i >= 0 {
		repo, tag = s[:i], s[i+1:]
		if !anchoredTagRegexp.MatchString(tag) {
			return Target{}, fmt.Errorf("invalid tag %q in %q", tag, s)
		}
	}
	if repo == "" {
		return Target{}, fmt.Errorf("invalid repository/tag %q: empty repository", s)
	}
	for _, component := range strings.Split(repo, "/") {
		if !repoComponentRegexp.MatchString(component) {
			return Target{}, fmt.Errorf("invalid repository %q in %q", repo, s)
		}
	}
	return Target{Repository: repo, Tag: tag}, nil
}

// ParseTargets validates a list of REPOSITORY[:TAG] arguments.
func ParseTargets(args []string) ([]Target, error) {
	targets := make([]Target, 0, len(args))
	for _, arg := range args {
		t, err := ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
