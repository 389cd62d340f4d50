package concatstream

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tell(t *testing.T, r io.Seeker) int64 {
	t.Helper()
	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	return pos
}

func TestStream_CursorMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	readers := []*bytes.Reader{
		bytes.NewReader([]byte("test")),
		bytes.NewReader([]byte(" KURWA\n")),
		bytes.NewReader([]byte("kek")),
	}
	s, err := Create(ctx, NopCloser(readers[0]), NopCloser(readers[1]), NopCloser(readers[2]))
	require.NoError(t, err)
	defer s.Close()

	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(14), size)

	pos, err := s.Tell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	buf := make([]byte, 1)
	n, err := s.ReadChunk(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "t", string(buf[:n]))

	pos, err = s.Tell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)

	tests := []struct {
		name      string
		seek      int64
		fileIndex int
		filePos   int64
		read      int
		expect    string
	}{
		{"middle of the first source", 2, 0, 2, 16, "st"},
		{"last byte of the first source", 3, 0, 3, 1, "t"},
		{"first byte of the second source", 4, 1, 0, 1, " "},
		{"middle of the second source", 6, 1, 2, 1, "U"},
		{"first byte of the last source", 11, 2, 0, 1, "k"},
		{"before the last byte", 13, 2, 2, 1, "k"},
		{"after the last byte", 14, 2, 3, 1, ""},
		{"further past the end", 16, 2, 5, 1, ""},
	}
	for _, tt := range tests {
		pos, err := s.Seek(tt.seek, io.SeekStart)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.seek, pos, tt.name)
		assert.Equal(t, tt.fileIndex, s.fileIndex, tt.name)
		assert.Equal(t, tt.filePos, s.filePos, tt.name)
		assert.Equal(t, tt.filePos, tell(t, readers[tt.fileIndex]), tt.name)

		buf := make([]byte, tt.read)
		n, err := s.ReadChunk(ctx, buf)
		if tt.expect == "" {
			assert.ErrorIs(t, err, io.EOF, tt.name)
		} else {
			require.NoError(t, err, tt.name)
		}
		assert.Equal(t, tt.expect, string(buf[:n]), tt.name)
	}

	// Every chunk is served by exactly one source
	_, err = s.Seek(1, io.SeekStart)
	require.NoError(t, err)
	for _, expect := range []string{"est", " KURWA\n", "kek"} {
		buf := make([]byte, 64)
		n, err := s.ReadChunk(ctx, buf)
		require.NoError(t, err)
		assert.Equal(t, expect, string(buf[:n]))
	}
}

func TestStream_ZeroLengthSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Create(ctx,
		NopCloser(bytes.NewReader(nil)),
		NopCloser(bytes.NewReader([]byte("ab"))),
		NopCloser(bytes.NewReader(nil)),
		NopCloser(bytes.NewReader([]byte("cd"))),
		NopCloser(bytes.NewReader(nil)),
	)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1, s.fileIndex, "empty first source is skipped on open")

	_, err = s.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, 3, s.fileIndex)
	assert.Equal(t, int64(0), s.filePos)

	_, err = s.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, 4, s.fileIndex, "end of stream pins the last source")

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
}
