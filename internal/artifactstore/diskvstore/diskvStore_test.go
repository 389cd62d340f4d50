package diskvstore_test

import (
	"testing"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore/diskvstore"
)

func TestDiskvStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := diskvstore.NewDiskvStore(dir)

	added := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	movie := &artifact.Artifact{Name: "movie.mkv", Parts: []string{"/in/movie.mkv.001", "/in/movie.mkv.002"}, Added: added}
	odd := &artifact.Artifact{Name: "a/b:c.bin", Parts: []string{"/in/a.bin"}, Added: added}

	for _, a := range []*artifact.Artifact{movie, odd} {
		if err := store.Set(a); err != nil {
			t.Fatalf("Set(%s) error: %v", a.Name, err)
		}
	}

	// A second store on the same location sees the same content
	list, err := diskvstore.NewDiskvStore(dir).List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(list))
	}
	found := false
	for _, a := range list {
		if a.Name == movie.Name {
			found = true
			if !a.Equal(movie) || !a.Added.Equal(added) {
				t.Errorf("got %+v, want %+v", a, movie)
			}
		}
	}
	if !found {
		t.Errorf("movie.mkv missing from %v", list)
	}

	if err := store.Delete(movie); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := store.Delete(movie); err != nil {
		t.Errorf("second Delete() error: %v", err)
	}

	list, err = store.List()
	if err != nil || len(list) != 1 || list[0].Name != odd.Name {
		t.Errorf("List() after delete = %v, %v", list, err)
	}
}

func TestDiskvStore_RejectsInvalid(t *testing.T) {
	t.Parallel()

	if err := diskvstore.NewDiskvStore(t.TempDir()).Set(&artifact.Artifact{Name: "empty"}); err == nil {
		t.Error("expected error storing artifact without parts")
	}
}
