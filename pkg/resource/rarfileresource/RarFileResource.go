// Package rarfileresource exposes single files stored inside a (multi-volume) rar archive. Unlike
// 7z volumes, rar volumes carry their own headers and are handed to the decoder one by one.
package rarfileresource

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Ruakij/rardecode/v2"
	"golang.org/x/sync/errgroup"

	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNoVolumes    = errors.New("no volumes")
)

// RarFileResource is a single file inside the archive made of volumes.
type RarFileResource struct {
	volumes  []resource.ReadSeekCloseableResource
	password string
	filename string

	mu   sync.Mutex
	size int64
}

func NewRarFileResource(volumes []resource.ReadSeekCloseableResource, password, filename string) *RarFileResource {
	return &RarFileResource{
		volumes:  volumes,
		password: password,
		filename: filename,
		size:     -1,
	}
}

type RarFileResourceReader struct {
	resource  *RarFileResource
	volumes   []io.ReadSeekCloser
	rarReader *rardecode.Reader
	index     int64
	size      int64
}

func (r *RarFileResource) Open() (io.ReadSeekCloser, error) {
	volumes, err := openVolumes(r.volumes)
	if err != nil {
		return nil, err
	}

	reader := &RarFileResourceReader{
		resource: r,
		volumes:  volumes,
	}
	if err := reader.rewind(); err != nil {
		reader.Close()
		return nil, err
	}

	r.mu.Lock()
	r.size = reader.size
	r.mu.Unlock()
	return reader, nil
}

func (r *RarFileResource) Size() (int64, error) {
	r.mu.Lock()
	size := r.size
	r.mu.Unlock()
	if size >= 0 {
		return size, nil
	}

	reader, err := r.Open()
	if err != nil {
		return 0, err
	}
	reader.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size, nil
}

// ListFiles lists the files inside the archive with their unpacked size. Directories are left out.
func ListFiles(volumes []resource.ReadSeekCloseableResource, password string) (map[string]int64, error) {
	opened, err := openVolumes(volumes)
	if err != nil {
		return nil, err
	}
	defer closeVolumes(opened)

	rarReader, err := newRarReader(opened, password)
	if err != nil {
		return nil, err
	}

	files := make(map[string]int64, 1)
	for {
		header, err := rarReader.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("failed reading fileheader: %w", err)
		}
		if header.IsDir {
			continue
		}
		files[header.Name] = header.UnPackedSize
	}
}

func openVolumes(volumes []resource.ReadSeekCloseableResource) ([]io.ReadSeekCloser, error) {
	if len(volumes) == 0 {
		return nil, ErrNoVolumes
	}

	opened := make([]io.ReadSeekCloser, len(volumes))
	group := errgroup.Group{}
	for i, volume := range volumes {
		group.Go(func() error {
			reader, err := volume.Open()
			if err != nil {
				return fmt.Errorf("failed opening volume %d: %w", i, err)
			}
			opened[i] = reader
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		closeVolumes(opened)
		return nil, err
	}
	return opened, nil
}

func closeVolumes(volumes []io.ReadSeekCloser) error {
	var errs []error
	for _, volume := range volumes {
		if volume == nil {
			continue
		}
		errs = append(errs, volume.Close())
	}
	return errors.Join(errs...)
}

func newRarReader(volumes []io.ReadSeekCloser, password string) (*rardecode.Reader, error) {
	readers := make([]io.Reader, len(volumes))
	for i, volume := range volumes {
		readers[i] = volume
	}

	rarReader, err := rardecode.NewMultiReader(readers, rardecode.Password(password))
	if err != nil {
		return nil, fmt.Errorf("failed creating rar reader: %w", err)
	}
	return rarReader, nil
}

// rewind positions all volumes at their start and the decoder at the beginning of the file.
func (r *RarFileResourceReader) rewind() error {
	for i, volume := range r.volumes {
		if _, err := volume.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed seeking volume %d: %w", i, err)
		}
	}

	rarReader, err := newRarReader(r.volumes, r.resource.password)
	if err != nil {
		return err
	}
	header, err := skipToFile(rarReader, r.resource.filename)
	if err != nil {
		return err
	}

	r.rarReader = rarReader
	r.size = header.UnPackedSize
	r.index = 0
	return nil
}

func (r *RarFileResourceReader) Close() error {
	r.rarReader = nil
	volumes := r.volumes
	r.volumes = nil
	return closeVolumes(volumes)
}

func (r *RarFileResourceReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := r.rarReader.Read(p)
	r.index += int64(n)

	return n, err
}

// Seek is emulated: seeking backwards rewinds the volumes, every seek forward discards data.
func (r *RarFileResourceReader) Seek(offset int64, whence int) (int64, error) {
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
		if err := r.rewind(); err != nil {
			return 0, fmt.Errorf("failed rewinding: %w", err)
		}
	}

	n, err := io.CopyN(io.Discard, r.rarReader, newIndex-r.index)
	r.index += n
	if err != nil {
		return r.index, fmt.Errorf("failed discarding %d bytes forward: %w", newIndex-r.index, err)
	}

	return r.index, nil
}

func skipToFile(reader *rardecode.Reader, filename string) (*rardecode.FileHeader, error) {
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		if err != nil {
			return nil, fmt.Errorf("failed reading fileheader: %w", err)
		}
		if header.Name == filename {
			return header, nil
		}
	}
}
