package filehealth

import (
	"context"

	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
)

// Checker defines the interface for file health checking
type Checker interface {
	CheckFiles(ctx context.Context, files map[string]presentation.Openable) []error
}
