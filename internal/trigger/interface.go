package trigger

import "git.ruekov.eu/ruakij/partStreamer/internal/artifact"

type Hook func(a *artifact.Artifact) error

// Trigger announces artifacts appearing and disappearing.
type Trigger interface {
	AddListener(addHook, removeHook Hook) (listenerID int, err error)
	RemoveListener(listenerID int) error
}
