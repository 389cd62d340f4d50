package fileresource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

var ErrNotSeekable = errors.New("file is not seekable")

// FileResource allows using a file as Resource
type FileResource struct {
	Filepath string
	Options  FileResourceOptions
}

type FileResourceOptions struct {
	// If specified will use this filesystem to open file
	Filesystem fs.FS
}

func (r *FileResource) open() (fs.File, error) {
	if r.Options.Filesystem != nil {
		return r.Options.Filesystem.Open(r.Filepath)
	}
	return os.Open(r.Filepath)
}

func (r *FileResource) Open() (io.ReadSeekCloser, error) {
	file, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("failed opening underlying resource: %w", err)
	}

	reader, ok := file.(io.ReadSeekCloser)
	if !ok {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotSeekable, r.Filepath)
	}
	return reader, nil
}

func (r *FileResource) Size() (int64, error) {
	file, err := r.open()
	if err != nil {
		return 0, fmt.Errorf("failed opening underlying resource: %w", err)
	}
	defer file.Close()

	fileinfo, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed getting fileinfo from underlying resource: %w", err)
	}

	return fileinfo.Size(), nil
}
