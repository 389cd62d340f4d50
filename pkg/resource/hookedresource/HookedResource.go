// Package hookedresource lets middleware intercept the operations of any
// ReadSeekCloseableResource, e.g. to count reads for metrics.
package hookedresource

import (
	"errors"
	"fmt"
	"io"

	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
)

// Hooks are executed in slice order, each one wrapping the ones after it.
type Hooks struct {
	Open  []OpenHook
	Read  []ReadHook
	Seek  []SeekHook
	Close []CloseHook
}

// HookedResource wraps a ReadSeekCloseableResource and runs its hooks around Open and around
// Read, Seek and Close of every reader opened.
type HookedResource struct {
	underlying resource.ReadSeekCloseableResource
	hooks      Hooks
}

func NewHookedResource(underlying resource.ReadSeekCloseableResource, hooks Hooks) *HookedResource {
	return &HookedResource{
		underlying: underlying,
		hooks:      hooks,
	}
}

func (r *HookedResource) AddOpenHook(hook OpenHook) {
	r.hooks.Open = append(r.hooks.Open, hook)
}

func (r *HookedResource) AddReadHook(hook ReadHook) {
	r.hooks.Read = append(r.hooks.Read, hook)
}

func (r *HookedResource) AddSeekHook(hook SeekHook) {
	r.hooks.Seek = append(r.hooks.Seek, hook)
}

func (r *HookedResource) AddCloseHook(hook CloseHook) {
	r.hooks.Close = append(r.hooks.Close, hook)
}

func (r *HookedResource) Underlying() resource.ReadSeekCloseableResource {
	return r.underlying
}

func (r *HookedResource) Size() (int64, error) {
	size, err := r.underlying.Size()
	if err != nil {
		return 0, fmt.Errorf("failed getting size from underlying resource: %w", err)
	}
	return size, nil
}

func (r *HookedResource) Open() (io.ReadSeekCloser, error) {
	open := func() (io.ReadSeekCloser, error) {
		reader, err := r.underlying.Open()
		if err != nil {
			return nil, fmt.Errorf("failed opening underlying resource: %w", err)
		}
		return newHookReader(reader, r.hooks), nil
	}

	for i := len(r.hooks.Open) - 1; i >= 0; i-- {
		hook, next := r.hooks.Open[i], open
		open = func() (io.ReadSeekCloser, error) {
			return hook(next)
		}
	}

	return open()
}

// HookReader runs the read, seek and close hooks of its resource. The chains are built once on open.
type HookReader struct {
	reader io.ReadSeekCloser
	read   func([]byte) (int, error)
	seek   func(int64, int) (int64, error)
	close  func() error
}

func newHookReader(reader io.ReadSeekCloser, hooks Hooks) *HookReader {
	r := &HookReader{reader: reader}

	// io.EOF stays unwrapped, callers compare it directly
	r.read = func(p []byte) (int, error) {
		n, err := reader.Read(p)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("failed reading from underlying reader: %w", err)
		}
		return n, err
	}
	for i := len(hooks.Read) - 1; i >= 0; i-- {
		hook, next := hooks.Read[i], r.read
		r.read = func(p []byte) (int, error) {
			return hook(p, next)
		}
	}

	r.seek = func(offset int64, whence int) (int64, error) {
		pos, err := reader.Seek(offset, whence)
		if err != nil {
			return pos, fmt.Errorf("failed seeking in underlying reader: %w", err)
		}
		return pos, nil
	}
	for i := len(hooks.Seek) - 1; i >= 0; i-- {
		hook, next := hooks.Seek[i], r.seek
		r.seek = func(offset int64, whence int) (int64, error) {
			return hook(offset, whence, next)
		}
	}

	r.close = func() error {
		if err := reader.Close(); err != nil {
			return fmt.Errorf("failed closing underlying reader: %w", err)
		}
		return nil
	}
	for i := len(hooks.Close) - 1; i >= 0; i-- {
		hook, next := hooks.Close[i], r.close
		r.close = func() error {
			return hook(next)
		}
	}

	return r
}

func (r *HookReader) Underlying() io.ReadSeekCloser {
	return r.reader
}

func (r *HookReader) Read(p []byte) (int, error) {
	return r.read(p)
}

func (r *HookReader) Seek(offset int64, whence int) (int64, error) {
	return r.seek(offset, whence)
}

func (r *HookReader) Close() error {
	return r.close()
}
