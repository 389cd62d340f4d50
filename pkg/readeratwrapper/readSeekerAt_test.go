package readeratwrapper_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"git.ruekov.eu/ruakij/partStreamer/pkg/readeratwrapper"
)

// chunkedReader returns at most two bytes per Read.
type chunkedReader struct {
	io.ReadSeeker
}

func (r chunkedReader) Read(p []byte) (int, error) {
	if len(p) > 2 {
		p = p[:2]
	}
	return r.ReadSeeker.Read(p)
}

func TestReadSeekerAt(t *testing.T) {
	t.Parallel()

	r := readeratwrapper.NewReadSeekerAt(chunkedReader{strings.NewReader("0123456789")})

	buf := make([]byte, 5)
	n, err := r.ReadAt(buf, 3)
	if err != nil || n != 5 || string(buf) != "34567" {
		t.Errorf("ReadAt(3) = %d, %v, %q; want 5, nil, %q", n, err, buf, "34567")
	}

	n, err = r.ReadAt(buf, 8)
	if !errors.Is(err, io.EOF) || n != 2 || string(buf[:n]) != "89" {
		t.Errorf("ReadAt(8) = %d, %v, %q; want 2, EOF, %q", n, err, buf[:n], "89")
	}
}
