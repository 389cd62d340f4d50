package concatstream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// LengthProbe is one way of discovering the byte length of a source.
type LengthProbe interface {
	Name() string
	// Applies reports whether the source has the shape this probe needs
	Applies(src Source) bool
	Length(ctx context.Context, src Source) (int64, error)
}

// DefaultProbes are tried in order by DiscoverLength and Stream.Open.
var DefaultProbes = []LengthProbe{
	SizeProbe{},
	BufferProbe{},
	StatProbe{},
	SeekProbe{},
}

// SizeProbe asks the source directly.
type SizeProbe struct{}

func (SizeProbe) Name() string { return "size" }

func (SizeProbe) Applies(src Source) bool {
	switch src.(type) {
	case ResourceSizer, Sizer:
		return true
	}
	return false
}

func (SizeProbe) Length(_ context.Context, src Source) (int64, error) {
	switch s := src.(type) {
	case ResourceSizer:
		return s.Size()
	case Sizer:
		return s.Size(), nil
	}
	return 0, ErrProbeNotApplicable
}

// BufferProbe measures the buffer view of in-memory sources.
type BufferProbe struct{}

func (BufferProbe) Name() string { return "buffer" }

func (BufferProbe) Applies(src Source) bool {
	_, ok := src.(BufferViewer)
	return ok
}

func (BufferProbe) Length(_ context.Context, src Source) (int64, error) {
	b, ok := src.(BufferViewer)
	if !ok {
		return 0, ErrProbeNotApplicable
	}
	return int64(len(b.Bytes())), nil
}

var ErrNotRegularFile = errors.New("not a regular file")

// StatProbe stats file-backed sources. Only regular files have a meaningful size.
type StatProbe struct{}

func (StatProbe) Name() string { return "stat" }

func (StatProbe) Applies(src Source) bool {
	_, ok := src.(Statter)
	return ok
}

func (StatProbe) Length(_ context.Context, src Source) (int64, error) {
	s, ok := src.(Statter)
	if !ok {
		return 0, ErrProbeNotApplicable
	}
	info, err := s.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is %s: %w", info.Name(), info.Mode().Type(), ErrNotRegularFile)
	}
	return info.Size(), nil
}

// SeekProbe seeks to the end and back; last resort for any source.
type SeekProbe struct{}

func (SeekProbe) Name() string { return "seek" }

func (SeekProbe) Applies(Source) bool { return true }

func (SeekProbe) Length(_ context.Context, src Source) (int64, error) {
	offset, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed telling position: %w", err)
	}
	length, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed seeking to end: %w", err)
	}
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed seeking back to %d: %w", offset, err)
	}
	return length, nil
}

// DiscoverLength tries the probes in order (DefaultProbes when none are given) and returns the
// first length one of them determines. Failing probes fall through to the next one.
func DiscoverLength(ctx context.Context, src Source, probes ...LengthProbe) (int64, error) {
	if len(probes) == 0 {
		probes = DefaultProbes
	}

	var errs []error
	for _, probe := range probes {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !probe.Applies(src) {
			continue
		}

		length, err := probe.Length(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s probe: %w", probe.Name(), err))
			continue
		}
		if length < 0 {
			errs = append(errs, fmt.Errorf("%s probe: negative length %d", probe.Name(), length))
			continue
		}
		return length, nil
	}

	if len(errs) == 0 {
		return 0, ErrUnknownLength
	}
	return 0, fmt.Errorf("%w: %w", ErrUnknownLength, errors.Join(errs...))
}
