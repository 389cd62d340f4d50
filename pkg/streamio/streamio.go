// Package streamio builds whole-content and line-oriented reads from the bounded single-chunk reads
// of a chunked stream, e.g. concatstream.Stream.
package streamio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Primitives is everything the helpers use of a stream.
type Primitives interface {
	ReadChunk(ctx context.Context, p []byte) (int, error)
	SeekContext(ctx context.Context, offset int64, whence int) (int64, error)
	Tell(ctx context.Context) (int64, error)
	Readable(ctx context.Context) (bool, error)
	Seekable(ctx context.Context) (bool, error)
	SizeContext(ctx context.Context) (int64, error)
	ClosedContext(ctx context.Context) bool
}

// Locker is implemented by streams which let composite operations hold their lock.
type Locker interface {
	Acquire(ctx context.Context) (context.Context, func(), error)
}

var ErrNotReadable = errors.New("stream is not readable")

// Size of lookahead chunks when reading lines of unlimited length
const lineChunkSize = 8 * 1024

// Limit of chunks in a row not returning data before giving up
const maxConsecutiveEmptyReads = 100

func hold(ctx context.Context, r Primitives) (context.Context, func(), error) {
	if l, ok := r.(Locker); ok {
		return l.Acquire(ctx)
	}
	return ctx, func() {}, nil
}

func checkReadable(ctx context.Context, r Primitives) error {
	ok, err := r.Readable(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotReadable
	}
	return nil
}

// ReadInto fills buf across source boundaries. It returns the amount read, which is only smaller
// than len(buf) at the end of the stream; (0, io.EOF) once nothing is left.
func ReadInto(ctx context.Context, r Primitives, buf []byte) (int, error) {
	ctx, unlock, err := hold(ctx, r)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return readInto(ctx, r, buf)
}

func readInto(ctx context.Context, r Primitives, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	var total, empty int
	for total < len(buf) {
		n, err := r.ReadChunk(ctx, buf[total:])
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}

		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return total, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}

	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// Read reads amount bytes, or everything left when amount is negative or larger than what is left.
// It returns io.EOF only when a positive amount was asked for and nothing is left.
func Read(ctx context.Context, r Primitives, amount int) ([]byte, error) {
	ctx, unlock, err := hold(ctx, r)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := checkReadable(ctx, r); err != nil {
		return nil, err
	}

	size, err := r.SizeContext(ctx)
	if err != nil {
		return nil, err
	}
	pos, err := r.Tell(ctx)
	if err != nil {
		return nil, err
	}

	left := max(size-pos, 0)
	want := left
	if amount >= 0 && int64(amount) < left {
		want = int64(amount)
	}

	if want == 0 {
		if amount > 0 {
			return nil, io.EOF
		}
		return []byte{}, nil
	}

	buf := make([]byte, want)
	n, err := readInto(ctx, r, buf)
	if errors.Is(err, io.EOF) {
		if amount <= 0 {
			return buf[:0], nil
		}
		return nil, io.EOF
	}
	if err != nil {
		return buf[:n], err
	}
	return buf[:n], nil
}

// ReadAll reads everything from the current position to the end.
func ReadAll(ctx context.Context, r Primitives) ([]byte, error) {
	return Read(ctx, r, -1)
}

// ReadLine reads up to and including the next '\n', at most limit bytes (unlimited when limit < 0).
// Seekable streams are read in chunks and repositioned behind the delimiter, others byte by byte.
// At the end of the stream it returns (nil, io.EOF).
func ReadLine(ctx context.Context, r Primitives, limit int) ([]byte, error) {
	ctx, unlock, err := hold(ctx, r)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := checkReadable(ctx, r); err != nil {
		return nil, err
	}
	seekable, err := r.Seekable(ctx)
	if err != nil {
		return nil, err
	}

	var line []byte
	if seekable {
		line, err = readLineLookahead(ctx, r, limit)
	} else {
		line, err = readLineBytewise(ctx, r, limit)
	}
	if err != nil {
		return line, err
	}
	if len(line) == 0 && limit != 0 {
		return nil, io.EOF
	}
	return line, nil
}

func readLineLookahead(ctx context.Context, r Primitives, limit int) ([]byte, error) {
	var line []byte
	empty := 0
	for limit < 0 || len(line) < limit {
		want := lineChunkSize
		if limit >= 0 {
			want = limit - len(line)
		}

		chunk := make([]byte, want)
		n, err := r.ReadChunk(ctx, chunk)
		if errors.Is(err, io.EOF) {
			return line, nil
		}
		if err != nil {
			return line, err
		}
		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return line, io.ErrNoProgress
			}
			continue
		}
		empty = 0

		if i := bytes.IndexByte(chunk[:n], '\n'); i >= 0 {
			line = append(line, chunk[:i+1]...)
			if excess := n - (i + 1); excess > 0 {
				if _, err := r.SeekContext(ctx, -int64(excess), io.SeekCurrent); err != nil {
					return line, fmt.Errorf("failed seeking back behind line: %w", err)
				}
			}
			return line, nil
		}
		line = append(line, chunk[:n]...)
	}
	return line, nil
}

func readLineBytewise(ctx context.Context, r Primitives, limit int) ([]byte, error) {
	var line []byte
	b := make([]byte, 1)
	empty := 0
	for limit < 0 || len(line) < limit {
		n, err := r.ReadChunk(ctx, b)
		if errors.Is(err, io.EOF) {
			return line, nil
		}
		if err != nil {
			return line, err
		}
		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return line, io.ErrNoProgress
			}
			continue
		}
		empty = 0

		line = append(line, b[0])
		if b[0] == '\n' {
			break
		}
	}
	return line, nil
}

// ReadLines reads lines until the end, or until the lines read sum up to at least hint bytes
// when hint > 0.
func ReadLines(ctx context.Context, r Primitives, hint int) ([][]byte, error) {
	ctx, unlock, err := hold(ctx, r)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var lines [][]byte
	total := 0
	for {
		line, err := ReadLine(ctx, r, -1)
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
		total += len(line)
		if hint > 0 && total >= hint {
			return lines, nil
		}
	}
}

// Reader adapts Primitives to io.Reader filling as much of p as possible per call.
type Reader struct {
	ctx context.Context
	r   Primitives
}

func NewReader(ctx context.Context, r Primitives) *Reader {
	return &Reader{ctx: ctx, r: r}
}

func (r *Reader) Read(p []byte) (int, error) {
	return ReadInto(r.ctx, r.r, p)
}
