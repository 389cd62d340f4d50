package hookedresource_test

import (
	"errors"
	"io"
	"slices"
	"testing"

	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/bytesresource"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/hookedresource"
)

func TestHookedResource_Order(t *testing.T) {
	t.Parallel()

	var calls []string
	tag := func(name string) hookedresource.OpenHook {
		return func(next func() (io.ReadSeekCloser, error)) (io.ReadSeekCloser, error) {
			calls = append(calls, name+" before")
			reader, err := next()
			calls = append(calls, name+" after")
			return reader, err
		}
	}

	res := hookedresource.NewHookedResource(&bytesresource.BytesResource{Content: []byte("data")}, hookedresource.Hooks{
		Open: []hookedresource.OpenHook{tag("outer")},
	})
	res.AddOpenHook(tag("inner"))

	reader, err := res.Open()
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer reader.Close()

	want := []string{"outer before", "inner before", "inner after", "outer after"}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestHookedResource_ReadSeekClose(t *testing.T) {
	t.Parallel()

	var read, seeks, closes int
	res := hookedresource.NewHookedResource(&bytesresource.BytesResource{Content: []byte("hello world")}, hookedresource.Hooks{})
	res.AddReadHook(func(p []byte, next func([]byte) (int, error)) (int, error) {
		n, err := next(p)
		read += n
		return n, err
	})
	res.AddSeekHook(func(offset int64, whence int, next func(int64, int) (int64, error)) (int64, error) {
		seeks++
		return next(offset, whence)
	})
	res.AddCloseHook(func(next func() error) error {
		closes++
		return next()
	})

	reader, err := res.Open()
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := reader.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	// io.ReadAll relies on an unwrapped io.EOF
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(data) != "world" || read != 5 {
		t.Errorf("read %q (%d counted), want %q", data, read, "world")
	}

	if err := reader.Close(); err != nil {
		t.Fatal(err)
	}
	if seeks != 1 || closes != 1 {
		t.Errorf("seeks = %d, closes = %d; want 1, 1", seeks, closes)
	}
}

func TestHookedResource_HookCanReject(t *testing.T) {
	t.Parallel()

	denied := errors.New("denied")
	res := hookedresource.NewHookedResource(&bytesresource.BytesResource{}, hookedresource.Hooks{
		Open: []hookedresource.OpenHook{func(func() (io.ReadSeekCloser, error)) (io.ReadSeekCloser, error) {
			return nil, denied
		}},
	})
	if _, err := res.Open(); !errors.Is(err, denied) {
		t.Errorf("Open() error = %v, want %v", err, denied)
	}
}
