// Package artifactservice ties everything together: artifacts announced by triggers or loaded from
// the store are turned into resources and handed to the presenters.
package artifactservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore"
	"git.ruekov.eu/ruakij/partStreamer/internal/filehealth"
	"git.ruekov.eu/ruakij/partStreamer/internal/metrics"
	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
	"git.ruekov.eu/ruakij/partStreamer/internal/trigger"
	"git.ruekov.eu/ruakij/partStreamer/pkg/filenameops"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/rarfileresource"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/sevenzipfileresource"
)

var logger = slog.With("Module", "ArtifactService")

var (
	ErrArtifactAlreadyExists = errors.New("artifact already exists")
	ErrArtifactNotFound      = errors.New("artifact not found")
)

// Below this similarity no name is suggested
const suggestionMinSimilarity = 0.5

const (
	sevenzipExtension = ".7z"
	rarExtension      = ".rar"
)

type Options struct {
	// Files matching any of these are not presented
	Blacklist []*regexp.Regexp
	// Present the files inside 7z and rar archives next to the archive
	ExpandArchives  bool
	ArchivePassword string
}

type TriggerListener struct {
	trigger.Trigger
	listenerID int
}

type entry struct {
	artifact *artifact.Artifact
	files    []string
}

type Service struct {
	mu         sync.RWMutex
	store      artifactstore.Store
	presenters []presentation.Presenter
	triggers   []TriggerListener
	checker    filehealth.Checker
	metrics    *metrics.Metrics
	options    Options
	entries    map[string]*entry
}

func NewService(store artifactstore.Store, presenters []presentation.Presenter, triggers []trigger.Trigger, options Options) *Service {
	triggerListeners := make([]TriggerListener, len(triggers))
	for i, t := range triggers {
		triggerListeners[i] = TriggerListener{
			Trigger:    t,
			listenerID: -1,
		}
	}

	return &Service{
		store:      store,
		presenters: presenters,
		triggers:   triggerListeners,
		options:    options,
		entries:    make(map[string]*entry),
	}
}

// SetChecker enables health checks of new artifacts.
func (s *Service) SetChecker(checker filehealth.Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checker = checker
}

// SetMetrics enables counting reads of presented files.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Init loads the artifacts from the store and registers at the triggers. Stored artifacts whose
// parts are gone are deleted from the store.
func (s *Service) Init() error {
	logger.Debug("Getting artifacts from store")
	stored, err := s.store.List()
	if err != nil {
		return fmt.Errorf("failed listing artifacts in store: %w", err)
	}
	logger.Info("Loaded artifact store", "items", len(stored))

	for i := range stored {
		a := &stored[i]
		if missing := missingParts(a); len(missing) > 0 {
			logger.Warn("Stored artifact lost parts, dropping", "artifact", a.Name, "missing", missing)
			if err := s.store.Delete(a); err != nil {
				logger.Error("Failed deleting artifact from store", "artifact", a.Name, "err", err)
			}
			continue
		}
		if err := s.AddArtifact(a); err != nil {
			logger.Error("Couldnt add artifact", "artifact", a.Name, "err", err)
		}
	}

	logger.Debug("Registering at triggers")
	for i := range s.triggers {
		s.triggers[i].listenerID, err = s.triggers[i].AddListener(s.addFromTrigger, s.RemoveArtifact)
		if err != nil {
			return fmt.Errorf("failed registering at trigger %d: %w", i, err)
		}
	}

	logger.Debug("Init complete")
	return nil
}

// Close unregisters from all triggers.
func (s *Service) Close() error {
	var errs []error
	for i := range s.triggers {
		if s.triggers[i].listenerID < 0 {
			continue
		}
		if err := s.triggers[i].RemoveListener(s.triggers[i].listenerID); err != nil {
			errs = append(errs, fmt.Errorf("failed unregistering from trigger %d: %w", i, err))
		}
		s.triggers[i].listenerID = -1
	}
	return errors.Join(errs...)
}

func missingParts(a *artifact.Artifact) []string {
	var missing []string
	for _, part := range a.Parts {
		if _, err := os.Stat(part); err != nil {
			missing = append(missing, part)
		}
	}
	return missing
}

// addFromTrigger replaces a known artifact of the same name when its parts changed.
func (s *Service) addFromTrigger(a *artifact.Artifact) error {
	err := s.AddArtifact(a)
	if errors.Is(err, ErrArtifactAlreadyExists) {
		return nil
	}
	return err
}

// AddArtifact presents a and persists it in the store. An artifact of the same name but other
// parts is replaced.
func (s *Service) AddArtifact(a *artifact.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	logger.Debug("Adding artifact", "artifact", a.Name, "parts", len(a.Parts))

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.entries[a.Name]; exists {
		if existing.artifact.Equal(a) {
			return fmt.Errorf("%w: %s", ErrArtifactAlreadyExists, a.Name)
		}
		s.removeLocked(existing)
	}

	if a.Added.IsZero() {
		a.Added = time.Now()
	}

	files := s.buildFiles(a)
	if len(files) == 0 {
		logger.Warn("After blacklist, no files left", "artifact", a.Name)
		return nil
	}

	if s.checker != nil {
		for _, err := range s.checker.CheckFiles(context.Background(), files) {
			logger.Warn("Health check failed", "artifact", a.Name, "err", err)
		}
	}

	e := &entry{artifact: a}
	for _, filepath := range sortedKeys(files) {
		var openable presentation.Openable = files[filepath]
		if s.metrics != nil {
			openable = s.metrics.Instrument(filepath, files[filepath])
		}

		added := false
		for _, presenter := range s.presenters {
			if err := presenter.AddFile(filepath, a.Added, openable); err != nil {
				logger.Error("Failed adding file", "artifact", a.Name, "path", filepath, "err", err)
				continue
			}
			added = true
		}
		if added {
			e.files = append(e.files, filepath)
		}
	}
	s.entries[a.Name] = e
	if s.metrics != nil {
		s.metrics.SetArtifacts(len(s.entries))
	}

	if err := s.store.Set(a); err != nil {
		return fmt.Errorf("failed storing artifact %s: %w", a.Name, err)
	}

	logger.Info("Added artifact", "artifact", a.Name, "files", len(e.files))
	return nil
}

// buildFiles lists everything presented for a, keyed by path.
func (s *Service) buildFiles(a *artifact.Artifact) map[string]presentation.Openable {
	files := make(map[string]presentation.Openable, 1)

	res := a.Resource()
	if !s.isBlacklistedFilename(a.Name) {
		files[a.Name] = res
	}

	if !s.options.ExpandArchives {
		return files
	}

	lowerName := strings.ToLower(a.Name)
	switch {
	case strings.HasSuffix(lowerName, sevenzipExtension):
		// 7z volumes are plain byte splits of one archive
		inner, err := sevenzipfileresource.ListFiles(res, s.options.ArchivePassword)
		if err != nil {
			logger.Warn("Failed listing archive, presenting it as is", "artifact", a.Name, "err", err)
			return files
		}
		s.addArchiveFiles(files, a.Name[:len(a.Name)-len(sevenzipExtension)], sortedKeys(inner), func(filename string) resource.ReadSeekCloseableResource {
			return sevenzipfileresource.NewSevenzipFileResource(res, s.options.ArchivePassword, filename)
		})

	case strings.HasSuffix(lowerName, rarExtension):
		volumes := a.PartResources()
		inner, err := rarfileresource.ListFiles(volumes, s.options.ArchivePassword)
		if err != nil {
			logger.Warn("Failed listing archive, presenting it as is", "artifact", a.Name, "err", err)
			return files
		}
		s.addArchiveFiles(files, a.Name[:len(a.Name)-len(rarExtension)], sortedKeys(inner), func(filename string) resource.ReadSeekCloseableResource {
			return rarfileresource.NewRarFileResource(volumes, s.options.ArchivePassword, filename)
		})
	}
	return files
}

func (s *Service) addArchiveFiles(files map[string]presentation.Openable, dir string, filenames []string, build func(filename string) resource.ReadSeekCloseableResource) {
	for _, filename := range filenames {
		filepath := path.Join(dir, filename)
		if s.isBlacklistedFilename(filepath) {
			continue
		}
		files[filepath] = build(filename)
	}
}

func (s *Service) isBlacklistedFilename(filename string) bool {
	for _, re := range s.options.Blacklist {
		if re.MatchString(filename) {
			return true
		}
	}
	return false
}

// RemoveArtifact takes every file of a away from the presenters and deletes it from the store.
// Unknown artifacts are ignored.
func (s *Service) RemoveArtifact(a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[a.Name]
	if !exists {
		return nil
	}
	s.removeLocked(e)

	if err := s.store.Delete(e.artifact); err != nil {
		return fmt.Errorf("failed deleting artifact %s from store: %w", a.Name, err)
	}
	logger.Info("Removed artifact", "artifact", a.Name)
	return nil
}

func (s *Service) removeLocked(e *entry) {
	for _, filepath := range e.files {
		for _, presenter := range s.presenters {
			if err := presenter.RemoveFile(filepath); err != nil {
				logger.Warn("Failed removing file", "artifact", e.artifact.Name, "path", filepath, "err", err)
			}
		}
		if s.metrics != nil {
			s.metrics.Forget(filepath)
		}
	}
	delete(s.entries, e.artifact.Name)
	if s.metrics != nil {
		s.metrics.SetArtifacts(len(s.entries))
	}
}

// Artifacts lists the artifacts presented, ordered by name.
func (s *Service) Artifacts() []artifact.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]artifact.Artifact, 0, len(s.entries))
	for _, name := range sortedKeys(s.entries) {
		list = append(list, *s.entries[name].artifact)
	}
	return list
}

// Lookup finds an artifact by name; the error suggests the closest name when there is one.
func (s *Service) Lookup(name string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, exists := s.entries[name]; exists {
		a := *e.artifact
		return &a, nil
	}

	return nil, NotFoundError(name, sortedKeys(s.entries))
}

// NotFoundError reports name missing among candidates, suggesting the most similar one.
func NotFoundError(name string, candidates []string) error {
	match, similarity, ok := filenameops.ClosestMatch(name, candidates)
	if ok && similarity >= suggestionMinSimilarity {
		return fmt.Errorf("%w: %s, did you mean %s?", ErrArtifactNotFound, name, match)
	}
	return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
