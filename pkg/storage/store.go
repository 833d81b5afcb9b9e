package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// Store provides structural read/write access to a registry filesystem
// storage backend. It exposes layout primitives only and enforces no
// registry business rules. All mutations are synchronous and immediately
// visible to subsequent reads.
type Store struct {
	root string
}

// NewStore returns a Store rooted at the given storage root, the directory
// that contains (or would contain) the repositories subtree. A root without
// a repositories subtree is a valid, empty store.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the storage root path.
func (s *Store) Root() string {
	return s.root
}

// Repositories enumerates repository names, calling fn once per repository.
// A repository is any directory under repositories/ that contains a
// _manifests directory; nested names like a/b/c are supported and the walk
// never descends into repository internals. Enumeration stops at the first
// error returned by fn and propagates it.
func (s *Store) Repositories(fn func(name string) error) error {
	reposRoot := s.repositoriesRoot()
	if _, err := os.Stat(reposRoot); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", reposRoot, err)
	}
	return s.walkRepositories(reposRoot, "", fn)
}

func (s *Store) walkRepositories(dir, name string, fn func(string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		child := joinName(name, entry.Name())
		childDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(childDir, manifestsDir)); err == nil {
			if err := fn(child); err != nil {
				return err
			}
			continue
		}
		if err := s.walkRepositories(childDir, child, fn); err != nil {
			return err
		}
	}
	return nil
}

func joinName(name, elem string) string {
	if name == "" {
		return elem
	}
	return name + "/" + elem
}

// RepositoryExists reports whether the named repository exists.
func (s *Store) RepositoryExists(repo string) bool {
	info, err := os.Stat(s.repositoryPath(repo))
	return err == nil && info.IsDir()
}

// TagExists reports whether the tag's current link exists in the repository.
func (s *Store) TagExists(repo, tag string) bool {
	info, err := os.Stat(s.tagLinkPath(repo, tag))
	return err == nil && info.Mode().IsRegular()
}

// Tags returns the sorted tag names of a repository.
func (s *Store) Tags(repo string) ([]string, error) {
	if !s.RepositoryExists(repo) {
		return nil, ErrRepositoryUnknown{Name: repo}
	}
	entries, err := os.ReadDir(s.tagsPath(repo))
	if os.IsNotExist(err) {
		// A repository with its tags directory already removed has no
		// tags; this is a valid intermediate state.
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read tags of %s: %w", repo, err)
	}
	var tags []string
	for _, entry := range entries {
		if entry.IsDir() {
			tags = append(tags, entry.Name())
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// ResolveTag reads the digest a tag currently references.
func (s *Store) ResolveTag(repo, tag string) (digest.Digest, error) {
	if !s.RepositoryExists(repo) {
		return "", ErrRepositoryUnknown{Name: repo}
	}
	raw, err := os.ReadFile(s.tagLinkPath(repo, tag))
	if os.IsNotExist(err) {
		return "", ErrTagUnknown{Repository: repo, Tag: tag}
	} else if err != nil {
		return "", fmt.Errorf("failed to read tag link %s:%s: %w", repo, tag, err)
	}
	dgst, err := digest.Parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return "", fmt.Errorf("invalid digest in tag link %s:%s: %w", repo, tag, err)
	}
	return dgst, nil
}

// Revisions returns the sorted manifest revision digests recorded under a
// repository, independent of any tag references. Entries that do not parse
// as digests are skipped with a warning rather than failing the walk.
func (s *Store) Revisions(repo string) ([]digest.Digest, error) {
	if !s.RepositoryExists(repo) {
		return nil, ErrRepositoryUnknown{Name: repo}
	}
	revRoot := s.revisionsPath(repo)
	algos, err := os.ReadDir(revRoot)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read revisions of %s: %w", repo, err)
	}
	var revisions []digest.Digest
	for _, algo := range algos {
		if !algo.IsDir() {
			continue
		}
		hexes, err := os.ReadDir(filepath.Join(revRoot, algo.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read revisions of %s: %w", repo, err)
		}
		for _, hex := range hexes {
			if !hex.IsDir() {
				continue
			}
			dgst := digest.NewDigestFromEncoded(digest.Algorithm(algo.Name()), hex.Name())
			if err := dgst.Validate(); err != nil {
				log.WithFields(log.Fields{
					"repository": repo,
					"entry":      algo.Name() + "/" + hex.Name(),
				}).Warn("skipping unparseable revision entry")
				continue
			}
			revisions = append(revisions, dgst)
		}
	}
	sort.Slice(revisions, func(i, j int) bool { return revisions[i] < revisions[j] })
	return revisions, nil
}

// RemoveTag deletes a single tag reference, leaving sibling tags and the
// repository's revision records in place.
func (s *Store) RemoveTag(repo, tag string) error {
	if !s.RepositoryExists(repo) {
		return ErrRepositoryUnknown{Name: repo}
	}
	if !s.TagExists(repo, tag) {
		return ErrTagUnknown{Repository: repo, Tag: tag}
	}
	dir := s.tagPath(repo, tag)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove tag %s:%s: %w", repo, tag, err)
	}
	log.WithFields(log.Fields{"repository": repo, "tag": tag}).Info("removed tag")
	return nil
}

// RemoveRepository deletes the whole repository subtree, tags and revision
// records included, then prunes any parent directories of a nested name
// that are left empty. Removing a repository that already has no tags is
// valid.
func (s *Store) RemoveRepository(repo string) error {
	if !s.RepositoryExists(repo) {
		return ErrRepositoryUnknown{Name: repo}
	}
	dir := s.repositoryPath(repo)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove repository %s: %w", repo, err)
	}
	s.pruneEmptyParents(repo)
	log.WithField("repository", repo).Info("removed repository")
	return nil
}

// pruneEmptyParents removes empty ancestor directories of a nested
// repository name, stopping at the repositories root or at the first
// non-empty directory. Errors are ignored: a parent that cannot be removed
// is simply left behind.
func (s *Store) pruneEmptyParents(repo string) {
	reposRoot := s.repositoriesRoot()
	dir := filepath.Dir(s.repositoryPath(repo))
	for dir != reposRoot && strings.HasPrefix(dir, reposRoot) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
