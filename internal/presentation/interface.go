package presentation

import (
	"io"
	"time"
)

type Openable interface {
	Open() (io.ReadSeekCloser, error)
	Size() (int64, error)
}

// Presenter exposes files to clients, e.g. over WebDAV or as a FUSE mount.
type Presenter interface {
	AddFile(fullpath string, modTime time.Time, openable Openable) error
	RemoveFile(fullpath string) error
}
