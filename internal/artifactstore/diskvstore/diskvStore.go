// Package diskvstore keeps artifacts as JSON documents in a diskv key-value store.
package diskvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore"
	"github.com/peterbourgon/diskv/v3"
	"golang.org/x/sync/errgroup"
)

var _ artifactstore.Store = (*DiskvStore)(nil)

const keySuffix = ".json"

// Decoded artifacts are small, keep some in memory
const cacheSizeMax = 1024 * 1024

type DiskvStore struct {
	mu    sync.RWMutex
	store *diskv.Diskv
}

func NewDiskvStore(location string) *DiskvStore {
	return &DiskvStore{
		store: diskv.New(diskv.Options{
			BasePath: location,
			// Flat, one file per artifact
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: cacheSizeMax,
		}),
	}
}

func (s *DiskvStore) List() ([]artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for key := range s.store.Keys(nil) {
		if strings.HasSuffix(key, keySuffix) {
			keys = append(keys, key)
		}
	}

	list := make([]artifact.Artifact, len(keys))
	group := errgroup.Group{}
	for i, key := range keys {
		group.Go(func() error {
			data, err := s.store.Read(key)
			if err != nil {
				return fmt.Errorf("failed reading %s: %w", key, err)
			}
			if err := json.Unmarshal(data, &list[i]); err != nil {
				return fmt.Errorf("failed decoding %s: %w", key, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("error processing entries: %w", err)
	}

	return list, nil
}

func sanitizeKey(name string) string {
	// Replace invalid characters with underscore
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result + keySuffix
}

func (s *DiskvStore) Set(a *artifact.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed encoding artifact %s: %w", a.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeKey(a.Name)
	if err := s.store.Write(key, data); err != nil {
		return fmt.Errorf("failed writing %s: %w", key, err)
	}
	return nil
}

func (s *DiskvStore) Delete(a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeKey(a.Name)
	if err := s.store.Erase(key); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // Already gone, not an error
		}
		return fmt.Errorf("failed deleting %s: %w", key, err)
	}
	return nil
}
