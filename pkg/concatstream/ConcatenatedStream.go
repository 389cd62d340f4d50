// Package concatstream presents an ordered list of seekable sources as one seekable stream,
// without copying their contents.
//
// Lengths of all sources are discovered once on Open and stay fixed afterwards. A logical
// position is mapped to a source by walking the length table; reads never span more than one
// source per call, callers needing more loop (see package streamio).
package concatstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"git.ruekov.eu/ruakij/partStreamer/pkg/rlock"
	"golang.org/x/sync/errgroup"
)

var logger = slog.With("Module", "ConcatStream")

type state int

const (
	stateUninitialized state = iota
	stateOpen
	stateClosed
)

type Options struct {
	// Name is only informational
	Name string
	// Probes used to discover source lengths; DefaultProbes when empty
	Probes []LengthProbe
}

// Stream is a ConcatenatedSeekableStream. It owns its sources: they are closed with the stream and
// must not be repositioned by anyone else while it is open.
type Stream struct {
	mu      *rlock.Mutex
	name    string
	sources []Source
	caps    []capabilities
	probes  []LengthProbe

	state   state
	lengths []int64
	total   int64

	// Logical position
	pos int64
	// Active source index
	fileIndex int
	// Position the active source reported after the last resync
	filePos int64
	// Set when a resync failed, the active source is re-positioned before the next read
	stale bool
}

var _ io.ReadSeekCloser = (*Stream)(nil)

// Same limit bufio uses before giving up on a reader
const maxConsecutiveEmptyReads = 100

func New(sources ...Source) *Stream {
	return NewWithOptions(Options{}, sources...)
}

func NewWithOptions(options Options, sources ...Source) *Stream {
	caps := make([]capabilities, len(sources))
	for i, src := range sources {
		caps[i] = resolveCapabilities(src)
	}

	probes := options.Probes
	if len(probes) == 0 {
		probes = DefaultProbes
	}

	return &Stream{
		mu:      rlock.New(),
		name:    options.Name,
		sources: sources,
		caps:    caps,
		probes:  probes,
	}
}

// Create constructs and opens a stream in one go.
func Create(ctx context.Context, sources ...Source) (*Stream, error) {
	s := New(sources...)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open discovers the length of every source concurrently and makes the stream usable.
// Calling it on an open stream does nothing.
func (s *Stream) Open(ctx context.Context) error {
	ctx, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	switch s.state {
	case stateOpen:
		return nil
	case stateClosed:
		return ErrClosed
	}

	if len(s.sources) == 0 {
		return fmt.Errorf("%w: %w", ErrInitialization, ErrNoSources)
	}

	lengths := make([]int64, len(s.sources))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		group.Go(func() error {
			length, err := DiscoverLength(groupCtx, src, s.probes...)
			if err != nil {
				return &InitError{Stream: s.name, Index: i, Source: src, Err: err}
			}
			lengths[i] = length
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	var total int64
	for _, length := range lengths {
		total += length
	}

	s.lengths = lengths
	s.total = total
	s.pos = 0
	if err := s.resync(); err != nil {
		return fmt.Errorf("failed positioning sources: %w", err)
	}
	s.state = stateOpen

	logger.Debug("Opened", "name", s.name, "sources", len(s.sources), "size", total)
	return nil
}

func (s *Stream) Name() string {
	return s.name
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	return s.ClosedContext(context.Background())
}

func (s *Stream) ClosedContext(ctx context.Context) bool {
	_, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		// ctx ended while waiting
		return false
	}
	defer unlock()
	return s.state == stateClosed
}

// Acquire holds the stream lock until the returned function is called. Operations called with the
// returned context re-enter the lock, so composite operations run without interleaving.
//
// Methods without a context (Read, Seek, Size, Lengths, Closed, Close) lock on their own and block
// while the lock is held; use their Context variants with the returned context instead.
func (s *Stream) Acquire(ctx context.Context) (context.Context, func(), error) {
	return s.mu.Lock(ctx)
}

// Size returns the total length of all sources.
func (s *Stream) Size() (int64, error) {
	return s.SizeContext(context.Background())
}

func (s *Stream) SizeContext(ctx context.Context) (int64, error) {
	_, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.total, nil
}

// Lengths returns a copy of the length table.
func (s *Stream) Lengths() ([]int64, error) {
	return s.LengthsContext(context.Background())
}

func (s *Stream) LengthsContext(ctx context.Context) ([]int64, error) {
	_, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return append([]int64(nil), s.lengths...), nil
}

func (s *Stream) Tell(ctx context.Context) (int64, error) {
	_, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.pos, nil
}

func (s *Stream) Readable(ctx context.Context) (bool, error) {
	ctx, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return false, err
	}
	return s.all(ctx, func(c capabilities) bool { return c.readable() }), nil
}

func (s *Stream) Seekable(ctx context.Context) (bool, error) {
	ctx, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return false, err
	}
	return s.all(ctx, func(c capabilities) bool { return c.seekable() }), nil
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	return s.SeekContext(context.Background(), offset, whence)
}

// SeekContext moves the logical position. Positions past the end are allowed and read as empty,
// negative positions are rejected without changing the position.
func (s *Stream) SeekContext(ctx context.Context, offset int64, whence int) (int64, error) {
	ctx, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if !s.all(ctx, func(c capabilities) bool { return c.seekable() }) {
		return 0, fmt.Errorf("seek: %w", ErrUnsupportedOperation)
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = s.total + offset
	default:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWhence, whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativePosition, newPos)
	}

	s.pos = newPos
	if err := s.resync(); err != nil {
		return s.pos, err
	}
	return s.pos, nil
}

// Read implements io.Reader on top of ReadChunk; it never returns 0 bytes without an error
// for a non-empty p.
func (s *Stream) Read(p []byte) (int, error) {
	return s.ReadContext(context.Background(), p)
}

func (s *Stream) ReadContext(ctx context.Context, p []byte) (int, error) {
	ctx, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	for range maxConsecutiveEmptyReads {
		n, err := s.ReadChunk(ctx, p)
		if n > 0 || err != nil || len(p) == 0 {
			return n, err
		}
	}
	return 0, io.ErrNoProgress
}

// ReadChunk reads at most len(p) bytes with a single read on the active source.
// It returns io.EOF once the end of the last source is reached. A source which ends before its
// length says is skipped on the next call; (0, nil) is returned in that case.
func (s *Stream) ReadChunk(ctx context.Context, p []byte) (int, error) {
	ctx, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if !s.all(ctx, func(c capabilities) bool { return c.readable() }) {
		return 0, fmt.Errorf("read: %w", ErrUnsupportedOperation)
	}
	if len(p) == 0 {
		return 0, nil
	}

	if s.stale {
		if err := s.resync(); err != nil {
			return 0, err
		}
	}

	last := s.fileIndex == len(s.sources)-1
	remaining := max(s.lengths[s.fileIndex]-s.filePos, 0)
	if remaining == 0 {
		if last {
			return 0, io.EOF
		}
		return 0, s.skipToNextSource()
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	src := s.sources[s.fileIndex]
	n, readErr := src.Read(p)
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		if n > 0 {
			//nolint:errcheck // the read error takes precedence
			_ = s.advance(src, n)
		}
		return n, readErr
	}

	if n == 0 {
		if readErr == nil {
			return 0, nil
		}
		// Source ended early
		if last {
			return 0, io.EOF
		}
		return 0, s.skipToNextSource()
	}

	if err := s.advance(src, n); err != nil {
		return n, err
	}
	return n, nil
}

// advance accounts n freshly read bytes from src and re-maps the position.
func (s *Stream) advance(src Source, n int) error {
	s.pos += int64(n)

	filePos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		s.stale = true
		return fmt.Errorf("failed telling source %d: %w", s.fileIndex, err)
	}
	s.filePos = filePos

	return s.resync()
}

func (s *Stream) skipToNextSource() error {
	var start int64
	for i := range s.fileIndex + 1 {
		start += s.lengths[i]
	}
	logger.Debug("Source ended before its length, skipping", "name", s.name, "source", s.fileIndex, "offset", s.filePos, "length", s.lengths[s.fileIndex])
	s.pos = start
	return s.resync()
}

// resync maps pos onto a source and positions that source. A source reporting a smaller position
// than requested pulls the logical position back by the difference.
func (s *Stream) resync() error {
	remainder := s.pos
	index := 0
	for remainder >= s.lengths[index] && index+1 < len(s.sources) {
		remainder -= s.lengths[index]
		index++
	}

	filePos, err := s.sources[index].Seek(remainder, io.SeekStart)
	if err != nil {
		s.stale = true
		return fmt.Errorf("failed seeking source %d to %d: %w", index, remainder, err)
	}
	if filePos != remainder {
		s.pos -= remainder - filePos
	}

	s.fileIndex = index
	s.filePos = filePos
	s.stale = false
	return nil
}

func (s *Stream) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext closes all sources concurrently. Closing a closed stream is a no-op.
func (s *Stream) CloseContext(ctx context.Context) error {
	_, unlock, err := s.mu.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed

	errs := make([]error, len(s.sources))
	group := errgroup.Group{}
	for i, src := range s.sources {
		group.Go(func() error {
			if err := src.Close(); err != nil {
				errs[i] = fmt.Errorf("failed closing source %d: %w", i, err)
			}
			return nil
		})
	}
	//nolint:errcheck // errors are collected in errs
	_ = group.Wait()

	logger.Debug("Closed", "name", s.name)
	return errors.Join(errs...)
}

func (s *Stream) checkOpen() error {
	switch s.state {
	case stateUninitialized:
		return ErrNotOpen
	case stateClosed:
		return ErrClosed
	}
	return nil
}

// all queries a capability of every source concurrently.
func (s *Stream) all(ctx context.Context, capability func(capabilities) bool) bool {
	results := make([]bool, len(s.caps))
	group, _ := errgroup.WithContext(ctx)
	for i, c := range s.caps {
		group.Go(func() error {
			results[i] = capability(c)
			return nil
		})
	}
	//nolint:errcheck // capability queries cannot fail
	_ = group.Wait()

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
