// Package concatresource combines resources into one, read through a concatstream.Stream.
package concatresource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"git.ruekov.eu/ruakij/partStreamer/pkg/concatstream"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
)

var ErrNoResources = errors.New("no resources given")

// ConcatResource is a Resource type which allows combining multiple Resources as if it was one
type ConcatResource struct {
	name      string
	resources []resource.ReadSeekCloseableResource
}

func NewConcatResource(name string, resources []resource.ReadSeekCloseableResource) *ConcatResource {
	return &ConcatResource{
		name:      name,
		resources: resources,
	}
}

// Open eagerly opens all underlying Resources; each part is declared with the size its resource
// reports. Already opened parts are closed again when one fails.
func (r *ConcatResource) Open() (io.ReadSeekCloser, error) {
	return r.OpenContext(context.Background())
}

func (r *ConcatResource) OpenContext(ctx context.Context) (*concatstream.Stream, error) {
	if len(r.resources) == 0 {
		return nil, ErrNoResources
	}

	sources := make([]concatstream.Source, 0, len(r.resources))
	closeAll := func() {
		for _, src := range sources {
			src.Close()
		}
	}

	for i, res := range r.resources {
		size, err := res.Size()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed getting size from underlying resource %d: %w", i, err)
		}
		reader, err := res.Open()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed opening underlying resource %d: %w", i, err)
		}
		sources = append(sources, concatstream.Sized(reader, size))
	}

	stream := concatstream.NewWithOptions(concatstream.Options{Name: r.name}, sources...)
	if err := stream.Open(ctx); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

// Sizes returns the declared size of every part.
func (r *ConcatResource) Sizes() ([]int64, error) {
	sizes := make([]int64, len(r.resources))
	for i, res := range r.resources {
		size, err := res.Size()
		if err != nil {
			return nil, fmt.Errorf("failed getting size from underlying resource %d: %w", i, err)
		}
		sizes[i] = size
	}
	return sizes, nil
}

func (r *ConcatResource) Size() (int64, error) {
	sizes, err := r.Sizes()
	if err != nil {
		return 0, err
	}

	var totalSize int64
	for _, size := range sizes {
		totalSize += size
	}
	return totalSize, nil
}
