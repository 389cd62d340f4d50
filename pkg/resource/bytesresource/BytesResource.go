package bytesresource

import (
	"io"

	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
)

// BytesResource is a utility type that allows using a byte-slice resource.
type BytesResource struct {
	Content []byte
}

// BytesResourceReader reads the content of a BytesResource. Seeks past the end are clamped to it.
type BytesResourceReader struct {
	content []byte
	index   int64
}

func (r *BytesResource) Open() (io.ReadSeekCloser, error) {
	return &BytesResourceReader{
		content: r.Content,
	}, nil
}

func (r *BytesResource) Size() (int64, error) {
	return int64(len(r.Content)), nil
}

// Bytes exposes the underlying buffer, so its length is known without seeking.
func (r *BytesResourceReader) Bytes() []byte {
	return r.content
}

func (r *BytesResourceReader) Close() error {
	r.content = nil
	return nil
}

func (r *BytesResourceReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.index >= int64(len(r.content)) {
		return 0, io.EOF
	}

	n := copy(p, r.content[r.index:])
	r.index += int64(n)

	return n, nil
}

func (r *BytesResourceReader) Seek(offset int64, whence int) (int64, error) {
	var newIndex int64
	size := int64(len(r.content))

	switch whence {
	case io.SeekStart:
		newIndex = offset
	case io.SeekCurrent:
		newIndex = r.index + offset
	case io.SeekEnd:
		newIndex = size + offset
	default:
		return 0, resource.ErrInvalidSeek
	}

	if newIndex < 0 {
		return 0, resource.ErrInvalidSeek
	}

	if newIndex > size {
		newIndex = size
	}

	r.index = newIndex
	return r.index, nil
}
