package resource

import (
	"errors"
	"io"
)

var (
	ErrInvalidSeek = errors.New("invalid seek position")
)

// ReadSeekCloseableResource encapsulates Open and Size of a fixed-length data-resource.
//
// Every Open hands out an independent reader; Size must not change between calls.
// Specific implementations may document their own management behavior.
type ReadSeekCloseableResource interface {
	Open() (io.ReadSeekCloser, error)
	Size() (int64, error)
}
