package concatstream_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.ruekov.eu/ruakij/partStreamer/pkg/concatstream"
)

// bufferSource only exposes a buffer view and an unusable Seek.
type bufferSource struct {
	data []byte
}

func (s *bufferSource) Bytes() []byte { return s.data }
func (s *bufferSource) Read([]byte) (int, error) { return 0, io.EOF }
func (s *bufferSource) Seek(int64, int) (int64, error) { return 0, errors.New("seek unsupported") }
func (s *bufferSource) Close() error { return nil }

func TestDiscoverLength(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	length, err := concatstream.DiscoverLength(ctx, concatstream.NopCloser(strings.NewReader("hello")))
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)

	length, err = concatstream.DiscoverLength(ctx, &bufferSource{data: []byte("buffered")})
	require.NoError(t, err)
	assert.Equal(t, int64(8), length)

	length, err = concatstream.DiscoverLength(ctx, concatstream.Sized(&bufferSource{}, 42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), length, "explicit length wins over buffer view")

	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("on disk"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	length, err = concatstream.DiscoverLength(ctx, f, concatstream.StatProbe{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), length)
}

// plainSource hides every length capability of the wrapped reader.
type plainSource struct {
	rs io.ReadSeeker
}

func (s plainSource) Read(p []byte) (int, error) { return s.rs.Read(p) }
func (s plainSource) Seek(offset int64, whence int) (int64, error) { return s.rs.Seek(offset, whence) }
func (s plainSource) Close() error { return nil }

func TestSeekProbe_RestoresPosition(t *testing.T) {
	t.Parallel()

	reader := bytes.NewReader([]byte("0123456789"))
	_, err := reader.Seek(4, io.SeekStart)
	require.NoError(t, err)

	length, err := concatstream.DiscoverLength(context.Background(), plainSource{reader})
	require.NoError(t, err)
	assert.Equal(t, int64(10), length)

	pos, err := reader.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)
}

func TestStatProbe_RejectsPipes(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	_, err = concatstream.StatProbe{}.Length(context.Background(), r)
	assert.ErrorIs(t, err, concatstream.ErrNotRegularFile)

	// Seeking a pipe fails as well, so nothing can tell its length
	_, err = concatstream.DiscoverLength(context.Background(), r)
	assert.ErrorIs(t, err, concatstream.ErrUnknownLength)
	assert.ErrorIs(t, err, concatstream.ErrNotRegularFile)
}
