package concatstream

import (
	"io"
	"io/fs"
)

// Source is one underlying part of the stream.
// Seek(0, io.SeekCurrent) is used to tell the position a source reports for itself.
type Source interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Sizer is implemented by sources knowing their total length, e.g. bytes.Reader or io.SectionReader.
type Sizer interface {
	Size() int64
}

// ResourceSizer is implemented by sources with a fallible length query.
type ResourceSizer interface {
	Size() (int64, error)
}

// BufferViewer is implemented by sources backed by an in-memory buffer.
type BufferViewer interface {
	Bytes() []byte
}

// Statter is implemented by file-backed sources.
type Statter interface {
	Stat() (fs.FileInfo, error)
}

// ReadableReporter may be implemented by sources which can lose the ability to read.
type ReadableReporter interface {
	Readable() bool
}

// SeekableReporter may be implemented by sources which can lose the ability to seek.
type SeekableReporter interface {
	Seekable() bool
}

type capabilities struct {
	readable func() bool
	seekable func() bool
}

func always() bool { return true }

func resolveCapabilities(src Source) capabilities {
	caps := capabilities{
		readable: always,
		seekable: always,
	}
	if r, ok := src.(ReadableReporter); ok {
		caps.readable = r.Readable
	}
	if s, ok := src.(SeekableReporter); ok {
		caps.seekable = s.Seekable
	}
	return caps
}

type sizedSource struct {
	Source
	size int64
}

func (s *sizedSource) Size() (int64, error) {
	return s.size, nil
}

func (s *sizedSource) Readable() bool {
	if r, ok := s.Source.(ReadableReporter); ok {
		return r.Readable()
	}
	return true
}

func (s *sizedSource) Seekable() bool {
	if r, ok := s.Source.(SeekableReporter); ok {
		return r.Seekable()
	}
	return true
}

// Sized declares the length of src, taking precedence over every other way of discovering it.
func Sized(src Source, size int64) Source {
	return &sizedSource{
		Source: src,
		size:   size,
	}
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// NopCloser turns a ReadSeeker into a Source with a no-op Close, the ReadSeeker's own length
// reporting stays visible to probes.
func NopCloser(rs io.ReadSeeker) Source {
	switch v := rs.(type) {
	case Source:
		return v
	case interface {
		io.ReadSeeker
		Sizer
	}:
		return sizerNopCloser{nopCloser{v}, v}
	default:
		return nopCloser{rs}
	}
}

type sizerNopCloser struct {
	nopCloser
	sizer Sizer
}

func (s sizerNopCloser) Size() int64 { return s.sizer.Size() }
