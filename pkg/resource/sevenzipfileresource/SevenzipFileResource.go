// Package sevenzipfileresource exposes single files stored inside a 7z archive, which itself is
// any resource, typically the concatenated volumes of a split archive.
package sevenzipfileresource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"git.ruekov.eu/ruakij/partStreamer/pkg/iofsops"
	"git.ruekov.eu/ruakij/partStreamer/pkg/readeratwrapper"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
	"github.com/bodgit/sevenzip"
)

var ErrFileNotFound = errors.New("file not found")

// SevenzipFileResource is a single file inside a 7z archive resource.
type SevenzipFileResource struct {
	archive  resource.ReadSeekCloseableResource
	password string
	filename string

	mu   sync.Mutex
	size int64
}

func NewSevenzipFileResource(archive resource.ReadSeekCloseableResource, password, filename string) *SevenzipFileResource {
	return &SevenzipFileResource{
		archive:  archive,
		password: password,
		filename: filename,
		size:     -1,
	}
}

type SevenzipFileResourceReader struct {
	archiveReader  io.ReadSeekCloser
	sevenzipReader *sevenzip.Reader
	filename       string
	fileReader     io.ReadCloser
	index          int64
	size           int64
}

func (r *SevenzipFileResource) Open() (io.ReadSeekCloser, error) {
	archiveReader, sevenzipReader, err := openArchive(r.archive, r.password)
	if err != nil {
		return nil, err
	}

	file, err := findFile(sevenzipReader, r.filename)
	if err != nil {
		archiveReader.Close()
		return nil, err
	}
	fileReader, err := file.Open()
	if err != nil {
		archiveReader.Close()
		return nil, fmt.Errorf("failed opening 7z file: %w", err)
	}

	size := int64(file.UncompressedSize)
	r.mu.Lock()
	r.size = size
	r.mu.Unlock()

	return &SevenzipFileResourceReader{
		archiveReader:  archiveReader,
		sevenzipReader: sevenzipReader,
		filename:       r.filename,
		fileReader:     fileReader,
		size:           size,
	}, nil
}

func (r *SevenzipFileResource) Size() (int64, error) {
	r.mu.Lock()
	size := r.size
	r.mu.Unlock()
	if size >= 0 {
		return size, nil
	}

	archiveReader, sevenzipReader, err := openArchive(r.archive, r.password)
	if err != nil {
		return 0, err
	}
	defer archiveReader.Close()

	file, err := findFile(sevenzipReader, r.filename)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.size = int64(file.UncompressedSize)
	r.mu.Unlock()
	return int64(file.UncompressedSize), nil
}

// ListFiles lists all files inside the archive with their full path.
func ListFiles(archive resource.ReadSeekCloseableResource, password string) (map[string]fs.FileInfo, error) {
	archiveReader, sevenzipReader, err := openArchive(archive, password)
	if err != nil {
		return nil, err
	}
	defer archiveReader.Close()

	fileInfos, err := iofsops.BuildFileList(sevenzipReader, ".")
	if err != nil {
		return nil, fmt.Errorf("failed building filelist from 7z: %w", err)
	}
	return fileInfos, nil
}

func openArchive(archive resource.ReadSeekCloseableResource, password string) (io.ReadSeekCloser, *sevenzip.Reader, error) {
	size, err := archive.Size()
	if err != nil {
		return nil, nil, fmt.Errorf("failed getting size from underlying resource: %w", err)
	}
	reader, err := archive.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed opening underlying resource: %w", err)
	}

	sevenzipReader, err := sevenzip.NewReaderWithPassword(
		readeratwrapper.NewReadSeekerAt(reader),
		size,
		password,
	)
	if err != nil {
		reader.Close()
		return nil, nil, fmt.Errorf("failed creating new 7z reader: %w", err)
	}
	return reader, sevenzipReader, nil
}

func (r *SevenzipFileResourceReader) Close() error {
	r.sevenzipReader = nil

	var fileErr error
	if r.fileReader != nil {
		fileErr = r.fileReader.Close()
		r.fileReader = nil
	}
	return errors.Join(fileErr, r.archiveReader.Close())
}

func (r *SevenzipFileResourceReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := r.fileReader.Read(p)
	r.index += int64(n)

	return n, err
}

// Seek is emulated: files are decompressed sequentially, so seeking backwards reopens the file
// and every seek forward discards data.
func (r *SevenzipFileResourceReader) Seek(offset int64, whence int) (int64, error) {
	var newIndex int64
	switch whence {
	case io.SeekStart:
		newIndex = offset
	case io.SeekCurrent:
		newIndex = r.index + offset
	case io.SeekEnd:
		newIndex = r.size + offset
	default:
		return 0, resource.ErrInvalidSeek
	}

	if newIndex == r.index {
		return r.index, nil
	}
	if newIndex < 0 || newIndex > r.size {
		return 0, resource.ErrInvalidSeek
	}

	if newIndex < r.index {
		r.fileReader.Close()
		file, err := findFile(r.sevenzipReader, r.filename)
		if err != nil {
			return 0, err
		}
		r.fileReader, err = file.Open()
		if err != nil {
			return 0, fmt.Errorf("failed reopening file: %w", err)
		}

		r.index = 0
	}

	n, err := io.CopyN(io.Discard, r.fileReader, newIndex-r.index)
	r.index += n
	if err != nil {
		return r.index, fmt.Errorf("failed discarding %d bytes forward: %w", newIndex-r.index, err)
	}

	return r.index, nil
}

func findFile(reader *sevenzip.Reader, filename string) (*sevenzip.File, error) {
	for _, file := range reader.File {
		if file.Name == filename {
			return file, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
}
