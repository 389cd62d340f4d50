package artifactservice_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore/diskvstore"
	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
	"git.ruekov.eu/ruakij/partStreamer/internal/service/artifactservice"
	"git.ruekov.eu/ruakij/partStreamer/internal/trigger"
)

type fakePresenter struct {
	mu    sync.Mutex
	files map[string]presentation.Openable
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{files: make(map[string]presentation.Openable)}
}

func (p *fakePresenter) AddFile(fullpath string, modTime time.Time, openable presentation.Openable) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[fullpath] = openable
	return nil
}

func (p *fakePresenter) RemoveFile(fullpath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, fullpath)
	return nil
}

func (p *fakePresenter) paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

type fakeTrigger struct {
	add, remove trigger.Hook
	removed     bool
}

func (t *fakeTrigger) AddListener(addHook, removeHook trigger.Hook) (int, error) {
	t.add, t.remove = addHook, removeHook
	return 7, nil
}

func (t *fakeTrigger) RemoveListener(id int) error {
	if id != 7 {
		return errors.New("unknown listener")
	}
	t.removed = true
	return nil
}

func splitMovie(t *testing.T, dir string) *artifact.Artifact {
	t.Helper()
	parts := map[string]string{"movie.mkv.001": "test", "movie.mkv.002": " KURWA\n", "movie.mkv.003": "kek"}
	a := &artifact.Artifact{Name: "movie.mkv"}
	for _, name := range []string{"movie.mkv.001", "movie.mkv.002", "movie.mkv.003"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(parts[name]), 0o600); err != nil {
			t.Fatal(err)
		}
		a.Parts = append(a.Parts, path)
	}
	return a
}

func TestService_TriggerLifecycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := diskvstore.NewDiskvStore(t.TempDir())
	presenter := newFakePresenter()
	trig := &fakeTrigger{}

	svc := artifactservice.NewService(store, []presentation.Presenter{presenter}, []trigger.Trigger{trig}, artifactservice.Options{})
	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	movie := splitMovie(t, dir)
	if err := trig.add(movie); err != nil {
		t.Fatalf("add hook error: %v", err)
	}
	// Announcing the same artifact again is fine
	if err := trig.add(movie); err != nil {
		t.Fatalf("repeated add hook error: %v", err)
	}

	if !slices.Equal(presenter.paths(), []string{"movie.mkv"}) {
		t.Fatalf("presented %v", presenter.paths())
	}

	reader, err := presenter.files["movie.mkv"].Open()
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil || string(data) != "test KURWA\nkek" {
		t.Errorf("read %q, %v", data, err)
	}

	stored, err := store.List()
	if err != nil || len(stored) != 1 {
		t.Fatalf("store = %v, %v", stored, err)
	}

	if err := trig.remove(movie); err != nil {
		t.Fatalf("remove hook error: %v", err)
	}
	if len(presenter.paths()) != 0 {
		t.Errorf("still presented: %v", presenter.paths())
	}
	if stored, _ := store.List(); len(stored) != 0 {
		t.Errorf("still stored: %v", stored)
	}

	if err := svc.Close(); err != nil || !trig.removed {
		t.Errorf("Close() = %v, removed = %v", err, trig.removed)
	}
}

func TestService_InitFromStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := diskvstore.NewDiskvStore(t.TempDir())

	movie := splitMovie(t, dir)
	gone := &artifact.Artifact{Name: "gone.bin", Parts: []string{filepath.Join(dir, "gone.bin.001")}}
	for _, a := range []*artifact.Artifact{movie, gone} {
		if err := store.Set(a); err != nil {
			t.Fatal(err)
		}
	}

	presenter := newFakePresenter()
	svc := artifactservice.NewService(store, []presentation.Presenter{presenter}, nil, artifactservice.Options{})
	if err := svc.Init(); err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(presenter.paths(), []string{"movie.mkv"}) {
		t.Errorf("presented %v", presenter.paths())
	}
	stored, err := store.List()
	if err != nil || len(stored) != 1 || stored[0].Name != "movie.mkv" {
		t.Errorf("store = %v, %v", stored, err)
	}
}

func TestService_Blacklist(t *testing.T) {
	t.Parallel()

	presenter := newFakePresenter()
	svc := artifactservice.NewService(diskvstore.NewDiskvStore(t.TempDir()), []presentation.Presenter{presenter}, nil, artifactservice.Options{
		Blacklist: []*regexp.Regexp{regexp.MustCompile(`\.mkv$`)},
	})

	if err := svc.AddArtifact(splitMovie(t, t.TempDir())); err != nil {
		t.Fatal(err)
	}
	if len(presenter.paths()) != 0 {
		t.Errorf("blacklisted file presented: %v", presenter.paths())
	}
}

func TestService_Lookup(t *testing.T) {
	t.Parallel()

	svc := artifactservice.NewService(diskvstore.NewDiskvStore(t.TempDir()), []presentation.Presenter{newFakePresenter()}, nil, artifactservice.Options{})
	if err := svc.AddArtifact(splitMovie(t, t.TempDir())); err != nil {
		t.Fatal(err)
	}

	a, err := svc.Lookup("movie.mkv")
	if err != nil || len(a.Parts) != 3 {
		t.Fatalf("Lookup() = %v, %v", a, err)
	}

	_, err = svc.Lookup("movi.mkv")
	if !errors.Is(err, artifactservice.ErrArtifactNotFound) || !strings.Contains(err.Error(), "did you mean movie.mkv") {
		t.Errorf("error = %v", err)
	}

	if list := svc.Artifacts(); len(list) != 1 || list[0].Name != "movie.mkv" {
		t.Errorf("Artifacts() = %v", list)
	}
}

func TestService_BrokenArchivesPresentedAsIs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archives := []*artifact.Artifact{
		{Name: "show.7z"},
		{Name: "show.rar"},
	}
	for _, a := range archives {
		for i, content := range []string{"not an ", "archive"} {
			path := filepath.Join(dir, a.Name+"."+string(rune('1'+i)))
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			a.Parts = append(a.Parts, path)
		}
	}

	presenter := newFakePresenter()
	svc := artifactservice.NewService(diskvstore.NewDiskvStore(t.TempDir()), []presentation.Presenter{presenter}, nil, artifactservice.Options{
		ExpandArchives: true,
	})
	for _, a := range archives {
		if err := svc.AddArtifact(a); err != nil {
			t.Fatal(err)
		}
	}

	if !slices.Equal(presenter.paths(), []string{"show.7z", "show.rar"}) {
		t.Errorf("presented %v", presenter.paths())
	}
}
