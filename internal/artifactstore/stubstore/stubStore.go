package stubstore

import (
	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore"
)

var _ artifactstore.Store = (*StubStore)(nil)

// StubStore is a store which does nothing
type StubStore struct{}

func NewStubStore() *StubStore {
	return &StubStore{}
}

func (s *StubStore) List() ([]artifact.Artifact, error) {
	return nil, nil
}

func (s *StubStore) Set(*artifact.Artifact) error {
	return nil
}

func (s *StubStore) Delete(*artifact.Artifact) error {
	return nil
}
