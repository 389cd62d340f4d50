package hookedresource

import "io"

// OpenHook intercepts opening the resource; next opens it, or runs the next hook.
//
// Example:
//
//	res.AddOpenHook(func(next func() (io.ReadSeekCloser, error)) (io.ReadSeekCloser, error) {
//	    logger.Debug("Opening resource")
//	    return next()
//	})
type OpenHook func(next func() (io.ReadSeekCloser, error)) (io.ReadSeekCloser, error)

// ReadHook intercepts reads; it may inspect p[:n] after calling next.
type ReadHook func(p []byte, next func([]byte) (int, error)) (int, error)

// SeekHook intercepts seeks; it may validate or rewrite offset and whence before calling next.
type SeekHook func(offset int64, whence int, next func(int64, int) (int64, error)) (int64, error)

// CloseHook intercepts closing a reader.
type CloseHook func(next func() error) error
