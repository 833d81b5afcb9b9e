package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/opencontainers/go-digest"
)

// writeTag records repo:tag -> dgst the way the registry does: a current
// link file under the tag directory.
func writeTag(t *testing.T, root, repo, tag string, dgst digest.Digest) {
	t.Helper()
	link := filepath.Join(root, "repositories", repo, "_manifests", "tags", tag, "current", "link")
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("Failed to create tag directory: %v", err)
	}
	if err := os.WriteFile(link, []byte(dgst), 0o644); err != nil {
		t.Fatalf("Failed to write tag link: %v", err)
	}
}

// writeRevision records a manifest revision under the repository.
func writeRevision(t *testing.T, root, repo string, dgst digest.Digest) {
	t.Helper()
	link := filepath.Join(root, "repositories", repo, "_manifests", "revisions",
		string(dgst.Algorithm()), dgst.Encoded(), "link")
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("Failed to create revision directory: %v", err)
	}
	if err := os.WriteFile(link, []byte(dgst), 0o644); err != nil {
		t.Fatalf("Failed to write revision link: %v", err)
	}
}

func listRepositories(t *testing.T, store *Store) []string {
	t.Helper()
	var names []string
	if err := store.Repositories(func(name string) error {
		names = append(names, name)
		return nil
	}); err != nil {
		t.Fatalf("Repositories failed: %v", err)
	}
	return names
}

func TestRepositories(t *testing.T) {
	d1 := digest.FromString("one")

	t.Run("empty store", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if names := listRepositories(t, store); len(names) != 0 {
			t.Errorf("Expected no repositories, got %v", names)
		}
	})

	t.Run("flat and nested names", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "alpine", "latest", d1)
		writeTag(t, root, "team/app/api", "v1", d1)
		writeTag(t, root, "team/tools", "latest", d1)

		store := NewStore(root)
		got := listRepositories(t, store)
		want := []string{"alpine", "team/app/api", "team/tools"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("callback error stops enumeration", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "a", "latest", d1)
		writeTag(t, root, "b", "latest", d1)

		store := NewStore(root)
		boom := errors.New("boom")
		err := store.Repositories(func(string) error { return boom })
		if !errors.Is(err, boom) {
			t.Errorf("Expected callback error, got %v", err)
		}
	})

	t.Run("restartable", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "a", "latest", d1)
		store := NewStore(root)
		first := listRepositories(t, store)
		second := listRepositories(t, store)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Enumerations differ: %v vs %v", first, second)
		}
	})
}

func TestResolveTag(t *testing.T) {
	root := t.TempDir()
	d1 := digest.FromString("one")
	writeTag(t, root, "alpine", "latest", d1)
	store := NewStore(root)

	t.Run("existing tag", func(t *testing.T) {
		got, err := store.ResolveTag("alpine", "latest")
		if err != nil {
			t.Fatalf("ResolveTag failed: %v", err)
		}
		if got != d1 {
			t.Errorf("Expected %s, got %s", d1, got)
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := store.ResolveTag("alpine", "nope")
		if !IsNotFound(err) {
			t.Errorf("Expected not-found error, got %v", err)
		}
		var tagErr ErrTagUnknown
		if !errors.As(err, &tagErr) || tagErr.Tag != "nope" {
			t.Errorf("Expected ErrTagUnknown for nope, got %v", err)
		}
	})

	t.Run("unknown repository", func(t *testing.T) {
		_, err := store.ResolveTag("nope", "latest")
		var repoErr ErrRepositoryUnknown
		if !errors.As(err, &repoErr) || repoErr.Name != "nope" {
			t.Errorf("Expected ErrRepositoryUnknown for nope, got %v", err)
		}
	})
}

func TestRevisions(t *testing.T) {
	root := t.TempDir()
	d1 := digest.FromString("one")
	d2 := digest.FromString("two")
	d3 := digest.FromString("three")
	writeTag(t, root, "app", "latest", d1)
	writeRevision(t, root, "app", d1)
	writeRevision(t, root, "app", d2)
	writeRevision(t, root, "app", d3)
	store := NewStore(root)

	revisions, err := store.Revisions("app")
	if err != nil {
		t.Fatalf("Revisions failed: %v", err)
	}
	if len(revisions) != 3 {
		t.Fatalf("Expected 3 revisions, got %v", revisions)
	}
	seen := map[digest.Digest]bool{}
	for _, dgst := range revisions {
		seen[dgst] = true
	}
	for _, want := range []digest.Digest{d1, d2, d3} {
		if !seen[want] {
			t.Errorf("Expected revision %s in %v", want, revisions)
		}
	}
}

func TestRemoveTag(t *testing.T) {
	d1 := digest.FromString("one")

	t.Run("keeps sibling tags referencing the same digest", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "app", "latest", d1)
		writeTag(t, root, "app", "stable", d1)
		writeRevision(t, root, "app", d1)
		store := NewStore(root)

		if err := store.RemoveTag("app", "latest"); err != nil {
			t.Fatalf("RemoveTag failed: %v", err)
		}
		if store.TagExists("app", "latest") {
			t.Error("Removed tag still exists")
		}
		got, err := store.ResolveTag("app", "stable")
		if err != nil || got != d1 {
			t.Errorf("Sibling tag broken: digest=%s err=%v", got, err)
		}
		if !store.RepositoryExists("app") {
			t.Error("Repository vanished with the tag")
		}
	})

	t.Run("absent tag", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "app", "latest", d1)
		store := NewStore(root)
		if err := store.RemoveTag("app", "nope"); !IsNotFound(err) {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})
}

func TestRemoveRepository(t *testing.T) {
	d1 := digest.FromString("one")

	t.Run("removes tags and revisions", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "app", "latest", d1)
		writeRevision(t, root, "app", d1)
		store := NewStore(root)

		if err := store.RemoveRepository("app"); err != nil {
			t.Fatalf("RemoveRepository failed: %v", err)
		}
		if store.RepositoryExists("app") {
			t.Error("Repository still exists after removal")
		}
		if err := store.RemoveRepository("app"); !IsNotFound(err) {
			t.Errorf("Expected not-found on second removal, got %v", err)
		}
	})

	t.Run("repository with no tags left", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "app", "latest", d1)
		writeRevision(t, root, "app", d1)
		store := NewStore(root)
		if err := store.RemoveTag("app", "latest"); err != nil {
			t.Fatalf("RemoveTag failed: %v", err)
		}
		if err := store.RemoveRepository("app"); err != nil {
			t.Errorf("RemoveRepository after last tag failed: %v", err)
		}
	})

	t.Run("prunes empty parents of nested names", func(t *testing.T) {
		root := t.TempDir()
		writeTag(t, root, "team/app/api", "v1", d1)
		writeTag(t, root, "team/tools", "latest", d1)
		store := NewStore(root)

		if err := store.RemoveRepository("team/app/api"); err != nil {
			t.Fatalf("RemoveRepository failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "repositories", "team", "app")); !os.IsNotExist(err) {
			t.Error("Empty parent directory not pruned")
		}
		if !store.RepositoryExists("team/tools") {
			t.Error("Unrelated repository under shared parent removed")
		}
		got := listRepositories(t, store)
		if !reflect.DeepEqual(got, []string{"team/tools"}) {
			t.Errorf("Expected only team/tools, got %v", got)
		}
	})
}

func TestTagsAfterTagsDirRemoved(t *testing.T) {
	root := t.TempDir()
	d1 := digest.FromString("one")
	writeTag(t, root, "app", "latest", d1)
	writeRevision(t, root, "app", d1)
	store := NewStore(root)

	if err := os.RemoveAll(filepath.Join(root, "repositories", "app", "_manifests", "tags")); err != nil {
		t.Fatal(err)
	}
	tags, err := store.Tags("app")
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("Expected no tags, got %v", tags)
	}
}
