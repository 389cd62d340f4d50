package stubstore_test

import (
	"testing"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore/stubstore"
)

func TestStubStore_ForgetsEverything(t *testing.T) {
	t.Parallel()

	store := stubstore.NewStubStore()
	movie := &artifact.Artifact{Name: "movie.mkv", Parts: []string{"/in/movie.mkv.001"}}

	if err := store.Set(movie); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	list, err := store.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() = %v, want empty", list)
	}
	if err := store.Delete(movie); err != nil {
		t.Errorf("Delete() error: %v", err)
	}
}
