// Package folderwatcher announces the split files of a folder as artifacts, following the folder
// with fsnotify and falling back to polling when that is not available.
package folderwatcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/trigger"
	"github.com/fsnotify/fsnotify"
)

var logger = slog.With("Module", "FolderWatcher")

var ErrListenerNotFound = errors.New("listener not found")

var _ trigger.Trigger = (*FolderWatcher)(nil)

const (
	PollingScanTime = 15 * time.Second
	// Events are collected for this long before scanning, parts are often copied in bursts
	SettleTime = 2 * time.Second
)

type listener struct {
	add, remove trigger.Hook
}

// FolderWatcher notifies listeners about artifacts added to or removed from a directory.
// Changing the parts of an artifact announces its removal followed by the new version.
type FolderWatcher struct {
	watchFolder    string
	mu             sync.Mutex
	listeners      map[int]listener
	nextListenerID int
	known          map[string]*artifact.Artifact
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

func NewFolderWatcher(folder string) *FolderWatcher {
	return &FolderWatcher{
		watchFolder: folder,
		listeners:   make(map[int]listener),
		known:       make(map[string]*artifact.Artifact),
		stopChan:    make(chan struct{}),
	}
}

// Init scans once and starts following the folder.
func (fw *FolderWatcher) Init() {
	fw.Scan()

	if err := fw.startFsNotifyScan(); err != nil {
		logger.Error("Error when setting up FsNotifyScan, continuing with polling", "err", err)
		fw.startPeriodicScan(PollingScanTime)
	}
}

// startFsNotifyScan uses fsnotify to detect changes on disk
func (fw *FolderWatcher) startFsNotifyScan() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed creating fsnotify watcher: %w", err)
	}

	if err := watcher.Add(fw.watchFolder); err != nil {
		watcher.Close()
		return fmt.Errorf("failed adding folder %s to watch: %w", fw.watchFolder, err)
	}

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		defer watcher.Close()

		settle := time.NewTimer(SettleTime)
		settle.Stop()
		for {
			select {
			case <-fw.stopChan:
				settle.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				logger.Debug("Event", "op", event.Op.String(), "name", event.Name)
				settle.Reset(SettleTime)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error", "err", err)
			case <-settle.C:
				fw.Scan()
			}
		}
	}()

	return nil
}

// startPeriodicScan periodically checks the directory for changes
func (fw *FolderWatcher) startPeriodicScan(interval time.Duration) {
	ticker := time.NewTicker(interval)

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-fw.stopChan:
				return
			case <-ticker.C:
				fw.Scan()
			}
		}
	}()
}

// Scan compares the folder with the artifacts known and notifies listeners about the differences.
func (fw *FolderWatcher) Scan() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	found, err := artifact.FromFolder(fw.watchFolder)
	if err != nil {
		logger.Error("Error reading directory", "err", err)
		return
	}

	seen := make(map[string]struct{}, len(found))
	for i := range found {
		current := &found[i]
		seen[current.Name] = struct{}{}

		previous, exists := fw.known[current.Name]
		if exists && previous.Equal(current) {
			continue
		}
		if exists {
			fw.notifyRemove(previous)
		}

		current.Added = time.Now()
		fw.known[current.Name] = current
		fw.notifyAdd(current)
	}

	for name, previous := range fw.known {
		if _, ok := seen[name]; !ok {
			delete(fw.known, name)
			fw.notifyRemove(previous)
		}
	}
}

func (fw *FolderWatcher) notifyAdd(a *artifact.Artifact) {
	if len(fw.listeners) == 0 {
		logger.Warn("Cannot notify, no listeners found", "artifact", a.Name)
		return
	}
	for id, l := range fw.listeners {
		if err := l.add(a); err != nil {
			logger.Error("Error executing add hook", "listener", id, "artifact", a.Name, "err", err)
		}
	}
}

func (fw *FolderWatcher) notifyRemove(a *artifact.Artifact) {
	for id, l := range fw.listeners {
		if err := l.remove(a); err != nil {
			logger.Error("Error executing remove hook", "listener", id, "artifact", a.Name, "err", err)
		}
	}
}

// AddListener adds listener hooks and returns an ID. Artifacts already known are announced to
// the new listener right away.
func (fw *FolderWatcher) AddListener(addHook, removeHook trigger.Hook) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	listenerID := fw.nextListenerID
	fw.nextListenerID++
	fw.listeners[listenerID] = listener{add: addHook, remove: removeHook}

	for _, a := range fw.known {
		if err := addHook(a); err != nil {
			logger.Error("Error executing add hook", "listener", listenerID, "artifact", a.Name, "err", err)
		}
	}

	return listenerID, nil
}

// RemoveListener removes hooks based on listener ID
func (fw *FolderWatcher) RemoveListener(listenerID int) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, ok := fw.listeners[listenerID]; !ok {
		return fmt.Errorf("%w: %d", ErrListenerNotFound, listenerID)
	}
	delete(fw.listeners, listenerID)
	return nil
}

// StopWatching stops the folder monitoring
func (fw *FolderWatcher) StopWatching() {
	fw.stopOnce.Do(func() {
		close(fw.stopChan)
	})
	fw.wg.Wait()
}
