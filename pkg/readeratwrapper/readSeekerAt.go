package readeratwrapper

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Based off https://stackoverflow.com/a/40206454

type ReadSeekerAt struct {
	mu               sync.Mutex
	underlyingReader io.ReadSeeker
}

// Creates a new ReadSeekerAt from a ReadSeeker; Limitation: Supports only one ReadAt at a time (enforced with mutex)
func NewReadSeekerAt(r io.ReadSeeker) *ReadSeekerAt {
	return &ReadSeekerAt{underlyingReader: r}
}

// ReadAt seeks to off and fills p, looping over short reads as io.ReaderAt requires.
// The position of the underlying reader is left behind the data read.
func (r *ReadSeekerAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.underlyingReader.Seek(off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed seeking: %w", err)
	}

	n, err := io.ReadFull(r.underlyingReader, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
