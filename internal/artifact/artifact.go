// Package artifact describes a file split into parts on disk, e.g. movie.mkv.001, movie.mkv.002.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/pkg/filenameops"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/concatresource"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/fileresource"
)

var (
	ErrNoName  = errors.New("artifact has no name")
	ErrNoParts = errors.New("artifact has no parts")
)

type Artifact struct {
	// Name of the whole file
	Name string `json:"name"`
	// Paths of all parts in order
	Parts []string  `json:"parts"`
	Added time.Time `json:"added"`
}

func (a *Artifact) Validate() error {
	if a.Name == "" {
		return ErrNoName
	}
	if len(a.Parts) == 0 {
		return fmt.Errorf("%w: %s", ErrNoParts, a.Name)
	}
	return nil
}

// PartResources returns one resource per part, in order.
func (a *Artifact) PartResources() []resource.ReadSeekCloseableResource {
	resources := make([]resource.ReadSeekCloseableResource, len(a.Parts))
	for i, part := range a.Parts {
		resources[i] = &fileresource.FileResource{Filepath: part}
	}
	return resources
}

// Resource reads all parts as one.
func (a *Artifact) Resource() *concatresource.ConcatResource {
	return concatresource.NewConcatResource(a.Name, a.PartResources())
}

// Equal reports whether both consist of the same parts.
func (a *Artifact) Equal(b *Artifact) bool {
	return a.Name == b.Name && slices.Equal(a.Parts, b.Parts)
}

// FromFolder groups the regular files of dir into artifacts. Hidden files are ignored.
func FromFolder(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed reading directory %s: %w", dir, err)
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name()[0] == '.' {
			continue
		}
		filenames = append(filenames, entry.Name())
	}

	groups := filenameops.GroupPartFilenames(filenames)
	artifacts := make([]Artifact, 0, len(groups))
	for name, parts := range groups {
		paths := make([]string, len(parts))
		for i, part := range parts {
			paths[i] = filepath.Join(dir, part)
		}
		artifacts = append(artifacts, Artifact{
			Name:  name,
			Parts: paths,
		})
	}
	return artifacts, nil
}
