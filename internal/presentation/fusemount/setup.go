// Package fusemount presents files read-only through a FUSE mount.
package fusemount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var logger = slog.With("Module", "FuseMount")

var ErrUnexpectedUnmount = errors.New("unexpected unmount, unmounted from external?")

func Setup() *FileSystem {
	return &FileSystem{
		root: &dirNode{
			modTime: time.Now(),
		},
	}
}

// Mount serves the filesystem at path until ctx is cancelled.
func (fsManager *FileSystem) Mount(ctx context.Context, path string, mountOptions []string) error {
	server, err := fs.Mount(path, fsManager.root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:        "partstreamer",
			Name:          "partstreamer",
			DisableXAttrs: true,
			Options:       mountOptions,
		},
	})
	if err != nil {
		return fmt.Errorf("failed mounting: %w", err)
	}
	logger.Info("Mounted", "path", path)

	mountWaitCtx := make(chan struct{})
	go func() {
		server.Wait()
		close(mountWaitCtx)
	}()

	select {
	case <-ctx.Done():
		logger.Debug("Context cancelled, unmounting")
		if err := server.Unmount(); err != nil {
			return fmt.Errorf("unmounting failed: %w", err)
		}
	case <-mountWaitCtx:
		return ErrUnexpectedUnmount
	}
	return nil
}
