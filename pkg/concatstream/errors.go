package concatstream

import (
	"errors"
	"fmt"

	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
)

var (
	ErrInitialization       = errors.New("stream initialization failed")
	ErrNoSources            = errors.New("no sources given")
	ErrNotOpen              = errors.New("stream is not open")
	ErrClosed               = errors.New("I/O operation on closed stream")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidWhence        = errors.New("whence must be io.SeekStart, io.SeekCurrent or io.SeekEnd")
	ErrNegativePosition     = fmt.Errorf("negative position: %w", resource.ErrInvalidSeek)
	ErrUnknownLength        = errors.New("unknown length")
	ErrProbeNotApplicable   = errors.New("probe not applicable")
)

// InitError is returned by Open when the length of a source cannot be determined.
type InitError struct {
	// Name of the stream, empty when it has none
	Stream string
	Index  int
	Source Source
	Err    error
}

func (e *InitError) Error() string {
	src := e.Source
	if sized, ok := src.(*sizedSource); ok {
		src = sized.Source
	}
	if e.Stream != "" {
		return fmt.Sprintf("%s: source %d (%T) has unknown length: %v", e.Stream, e.Index, src, e.Err)
	}
	return fmt.Sprintf("source %d (%T) has unknown length: %v", e.Index, src, e.Err)
}

func (e *InitError) Unwrap() []error {
	return []error{ErrInitialization, e.Err}
}
