package storage

import "path/filepath"

// On-disk layout of the registry filesystem backend, relative to the
// storage root:
//
//	repositories/<name>/_manifests/tags/<tag>/current/link
//	repositories/<name>/_manifests/revisions/<algorithm>/<hex digest>/link
//	blobs/<algorithm>/<prefix>/<hex digest>/data
//
// The store only ever reads and unlinks entries under repositories/;
// blobs/ belongs to the registry's own garbage collector.
const (
	repositoriesDir = "repositories"
	manifestsDir    = "_manifests"
	tagsDir         = "tags"
	revisionsDir    = "revisions"
	currentDir      = "current"
	linkFile        = "link"
)

func (s *Store) repositoriesRoot() string {
	return filepath.Join(s.root, repositoriesDir)
}

func (s *Store) repositoryPath(repo string) string {
	return filepath.Join(s.repositoriesRoot(), filepath.FromSlash(repo))
}

func (s *Store) manifestsPath(repo string) string {
	return filepath.Join(s.repositoryPath(repo), manifestsDir)
}

func (s *Store) tagsPath(repo string) string {
	return filepath.Join(s.manifestsPath(repo), tagsDir)
}

func (s *Store) tagPath(repo, tag string) string {
	return filepath.Join(s.tagsPath(repo), tag)
}

func (s *Store) tagLinkPath(repo, tag string) string {
	return filepath.Join(s.tagPath(repo, tag), currentDir, linkFile)
}

func (s *Store) revisionsPath(repo string) string {
	return filepath.Join(s.manifestsPath(repo), revisionsDir)
}
