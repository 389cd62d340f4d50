package artifactstore

import "git.ruekov.eu/ruakij/partStreamer/internal/artifact"

// Store persists known artifacts across restarts.
type Store interface {
	List() ([]artifact.Artifact, error)
	Set(*artifact.Artifact) error
	Delete(*artifact.Artifact) error
}
