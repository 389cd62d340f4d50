package streamio_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.ruekov.eu/ruakij/partStreamer/pkg/concatstream"
	"git.ruekov.eu/ruakij/partStreamer/pkg/streamio"
)

func newStream(t *testing.T) *concatstream.Stream {
	t.Helper()
	s, err := concatstream.Create(context.Background(),
		concatstream.NopCloser(bytes.NewReader([]byte("test"))),
		concatstream.NopCloser(bytes.NewReader([]byte(" KURWA\n"))),
		concatstream.NopCloser(bytes.NewReader([]byte("kek"))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// unseekable reports the stream as not seekable so lines are read byte by byte.
type unseekable struct {
	*concatstream.Stream
	seeks int
}

func (u *unseekable) Seekable(context.Context) (bool, error) { return false, nil }

func (u *unseekable) SeekContext(ctx context.Context, offset int64, whence int) (int64, error) {
	u.seeks++
	return u.Stream.SeekContext(ctx, offset, whence)
}

func TestReadInto(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStream(t)

	buf := make([]byte, 10)
	n, err := streamio.ReadInto(ctx, s, buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "test KURWA", string(buf))

	n, err = streamio.ReadInto(ctx, s, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "\nkek KURWA", string(buf), "bytes past n stay untouched")

	n, err = streamio.ReadInto(ctx, s, buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, n)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	big := make([]byte, 16)
	n, err = streamio.ReadInto(ctx, s, big)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, "test KURWA\nkek", string(big[:n]))
	assert.Equal(t, []byte{0, 0}, big[n:])
}

func TestRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStream(t)

	_, err := s.Seek(3, io.SeekStart)
	require.NoError(t, err)

	data, err := streamio.Read(ctx, s, 5)
	require.NoError(t, err)
	assert.Equal(t, "t KUR", string(data))

	data, err = streamio.ReadAll(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "WA\nkek", string(data))

	data, err = streamio.ReadAll(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = streamio.Read(ctx, s, 1)
	assert.ErrorIs(t, err, io.EOF)

	_, err = s.Seek(100, io.SeekStart)
	require.NoError(t, err)
	data, err = streamio.ReadAll(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, data, "past the end reads empty")
}

func TestRead_ReentersStreamLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStream(t)

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := streamio.ReadAll(ctx, s)
		done <- result{data, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "test KURWA\nkek", string(res.data))
	case <-time.After(5 * time.Second):
		t.Fatal("ReadAll did not return while holding the stream lock")
	}

	// Still usable afterwards, the lock was released
	pos, err := s.Tell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(14), pos)
}

func TestReadLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stream func(*testing.T) streamio.Primitives
	}{
		{"seekable", func(t *testing.T) streamio.Primitives { return newStream(t) }},
		{"not seekable", func(t *testing.T) streamio.Primitives { return &unseekable{Stream: newStream(t)} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := tt.stream(t)

			for _, expect := range []string{"test K", "URWA\n", "kek"} {
				line, err := streamio.ReadLine(ctx, s, 6)
				require.NoError(t, err)
				assert.Equal(t, expect, string(line))
			}
			_, err := streamio.ReadLine(ctx, s, 6)
			assert.ErrorIs(t, err, io.EOF)

			_, err = s.SeekContext(ctx, 0, io.SeekStart)
			require.NoError(t, err)
			line, err := streamio.ReadLine(ctx, s, -1)
			require.NoError(t, err)
			assert.Equal(t, "test KURWA\n", string(line))

			pos, err := s.Tell(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(11), pos, "positioned right behind the delimiter")
		})
	}
}

func TestReadLine_NotSeekableNeverSeeks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := &unseekable{Stream: newStream(t)}

	lines, err := streamio.ReadLines(ctx, s, 0)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, 0, s.seeks)
}

func TestReadLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStream(t)

	lines, err := streamio.ReadLines(ctx, s, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "test KURWA\n", string(lines[0]))
	assert.Equal(t, "kek", string(lines[1]))

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	lines, err = streamio.ReadLines(ctx, s, 5)
	require.NoError(t, err)
	assert.Len(t, lines, 1, "hint reached after the first line")
}

func TestReader(t *testing.T) {
	t.Parallel()
	s := newStream(t)

	data, err := io.ReadAll(streamio.NewReader(context.Background(), s))
	require.NoError(t, err)
	assert.Equal(t, "test KURWA\nkek", string(data))
}

func TestClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStream(t)
	require.NoError(t, s.Close())

	_, err := streamio.ReadAll(ctx, s)
	assert.ErrorIs(t, err, concatstream.ErrClosed)
	_, err = streamio.ReadLine(ctx, s, -1)
	assert.ErrorIs(t, err, concatstream.ErrClosed)
	_, err = streamio.ReadInto(ctx, s, make([]byte, 4))
	assert.ErrorIs(t, err, concatstream.ErrClosed)
}
