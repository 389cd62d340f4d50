// Package filehealth checks whether presented files can actually be read. Files read through a
// concatenated stream additionally have every part boundary checked, which finds parts shorter
// than their declared length.
package filehealth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
)

var logger = slog.With("Module", "FileHealth")

var ErrPartTruncated = errors.New("part ends before its declared length")

type CheckerConfig struct {
	TryReadBytes      int64
	TryReadPercentage float32
	// Read the last byte of every part
	CheckBoundaries bool
}

// Ensure DefaultChecker implements Checker interface
var _ Checker = (*DefaultChecker)(nil)

// DefaultChecker implements basic file health checking
type DefaultChecker struct {
	config CheckerConfig
}

func NewDefaultChecker(config CheckerConfig) *DefaultChecker {
	return &DefaultChecker{config: config}
}

// FileHealthError represents a file health check error
type FileHealthError struct {
	Path string
	Err  error
}

func (e *FileHealthError) Error() string {
	return fmt.Sprintf("health check failed for %s: %v", e.Path, e.Err)
}

func (e *FileHealthError) Unwrap() error {
	return e.Err
}

// PartError names the part failing a boundary check.
type PartError struct {
	Part     int
	Declared int64
	Err      error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d (declared %d bytes): %v", e.Part, e.Declared, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// partedReader is what a concatenated stream offers for checking its parts.
type partedReader interface {
	LengthsContext(ctx context.Context) ([]int64, error)
	SeekContext(ctx context.Context, offset int64, whence int) (int64, error)
	ReadChunk(ctx context.Context, p []byte) (int, error)
}

func (c *DefaultChecker) enabled() bool {
	return c.config.TryReadBytes > 0 || c.config.TryReadPercentage > 0 || c.config.CheckBoundaries
}

func (c *DefaultChecker) CheckFiles(ctx context.Context, files map[string]presentation.Openable) []error {
	if !c.enabled() {
		return nil
	}

	var errs []error
	for path, file := range files {
		if err := c.checkFile(ctx, file); err != nil {
			errs = append(errs, &FileHealthError{
				Path: path,
				Err:  err,
			})
		}
	}
	return errs
}

func (c *DefaultChecker) checkFile(ctx context.Context, file presentation.Openable) error {
	f, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if parted, ok := f.(partedReader); ok && c.config.CheckBoundaries {
		if err := checkBoundaries(ctx, parted); err != nil {
			return err
		}
	}

	return c.tryRead(f)
}

// checkBoundaries reads the last byte each part is declared to have.
func checkBoundaries(ctx context.Context, r partedReader) error {
	lengths, err := r.LengthsContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get part lengths: %w", err)
	}

	var errs []error
	var start int64
	buf := make([]byte, 1)
	for i, length := range lengths {
		if length == 0 {
			continue
		}
		last := start + length - 1
		start += length

		if err := ctx.Err(); err != nil {
			return err
		}

		pos, err := r.SeekContext(ctx, last, io.SeekStart)
		if err != nil {
			errs = append(errs, &PartError{Part: i, Declared: length, Err: err})
			continue
		}
		if pos != last {
			errs = append(errs, &PartError{Part: i, Declared: length, Err: ErrPartTruncated})
			continue
		}

		n, err := r.ReadChunk(ctx, buf)
		if err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, &PartError{Part: i, Declared: length, Err: err})
			continue
		}
		if n == 0 {
			errs = append(errs, &PartError{Part: i, Declared: length, Err: ErrPartTruncated})
		}
	}

	if len(errs) > 0 {
		logger.Debug("Boundary check failed", "parts", len(lengths), "failed", len(errs))
	}
	return errors.Join(errs...)
}

func (c *DefaultChecker) tryRead(f io.ReadSeeker) error {
	if c.config.TryReadBytes <= 0 && c.config.TryReadPercentage <= 0 {
		return nil
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to get file size: %w", err)
	}

	// Calculate how much to read
	var readSize int64
	if c.config.TryReadBytes > 0 {
		readSize = c.config.TryReadBytes
	} else {
		readSize = int64(float32(size) * c.config.TryReadPercentage)
	}

	if readSize == 0 {
		readSize = 1 // Read at least 1 byte
	}
	if readSize > size {
		readSize = size
	}

	// Read from beginning
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	n, err := io.CopyN(io.Discard, f, readSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if n < readSize {
		return fmt.Errorf("failed to read file: got %d of %d bytes: %w", n, readSize, io.ErrUnexpectedEOF)
	}
	return nil
}
