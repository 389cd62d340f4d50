package fusemount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
	"git.ruekov.eu/ruakij/partStreamer/pkg/readeratwrapper"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fileNode represents a file in the read-only filesystem.
type fileNode struct {
	fs.Inode
	modTime  time.Time
	openable presentation.Openable
	size     int64
}

// dirNode represents a directory in the filesystem.
type dirNode struct {
	fs.Inode
	modTime time.Time
}

var (
	_ = fs.InodeEmbedder((*fileNode)(nil))
	_ = fs.InodeEmbedder((*dirNode)(nil))
	_ = fs.NodeReaddirer((*dirNode)(nil))
	_ = fs.NodeLookuper((*dirNode)(nil))
	_ = fs.NodeGetattrer((*dirNode)(nil))
	_ = fs.NodeGetattrer((*fileNode)(nil))
	_ = fs.NodeOpener((*fileNode)(nil))
)

func (n *dirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	children := n.Children()
	r := make([]fuse.DirEntry, 0, len(children))
	for name, child := range children {
		mode := uint32(fuse.S_IFDIR)
		if _, ok := child.Operations().(*fileNode); ok {
			mode = fuse.S_IFREG
		}
		r = append(r, fuse.DirEntry{
			Name: name,
			Mode: mode,
			Ino:  child.StableAttr().Ino,
		})
	}
	return fs.NewListDirStream(r), 0
}

func (n *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.GetChild(name)
	if child == nil {
		return nil, syscall.ENOENT
	}

	if getattrer, ok := child.Operations().(fs.NodeGetattrer); ok {
		var attrOut fuse.AttrOut
		if errno := getattrer.Getattr(ctx, nil, &attrOut); errno != 0 {
			return nil, errno
		}
		out.Attr = attrOut.Attr
	}
	return child, 0
}

func (n *dirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Ino = n.StableAttr().Ino
	out.Mode = fuse.S_IFDIR | 0o555
	return setTimes(&out.Attr, n.modTime)
}

func (n *fileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.size < 0 {
		// size not convertable to fuse-size
		return syscall.EIO
	}
	out.Ino = n.StableAttr().Ino
	out.Mode = fuse.S_IFREG | 0o444
	out.Size = uint64(n.size)
	return setTimes(&out.Attr, n.modTime)
}

func setTimes(attr *fuse.Attr, t time.Time) syscall.Errno {
	sec, nsec, err := convertTimeToFuseAttr(t)
	if err != nil {
		return syscall.EINVAL
	}

	attr.Ctime, attr.Ctimensec = sec, nsec
	attr.Mtime, attr.Mtimensec = sec, nsec
	attr.Atime, attr.Atimensec = sec, nsec
	return 0
}

var ErrTimeNotConvertableToFuseTime = errors.New("time is not convertable to fuse-time")

// Safely converts time (like modTime) to fuse time and timensec attributes
func convertTimeToFuseAttr(t time.Time) (sec uint64, nsec uint32, err error) {
	unixTime := t.Unix()
	if unixTime < 0 {
		return 0, 0, ErrTimeNotConvertableToFuseTime
	}
	// Nanosecond is always within [0, 999999999]
	return uint64(unixTime), uint32(t.Nanosecond()), nil
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	reader, err := n.openable.Open()
	if err != nil {
		logger.Error("Error opening file", "err", err)
		return nil, 0, syscall.EIO
	}

	return &fileHandle{
		reader:   reader,
		readerAt: readeratwrapper.NewReadSeekerAt(reader),
	}, fuse.FOPEN_KEEP_CACHE, 0
}

// fileHandle is one open reader of a file
type fileHandle struct {
	mu       sync.Mutex
	reader   io.ReadSeekCloser
	readerAt io.ReaderAt
}

var (
	_ = fs.FileReader((*fileHandle)(nil))
	_ = fs.FileReleaser((*fileHandle)(nil))
)

func (f *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := f.readerAt.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Error("Error reading", "len", len(dest), "offset", off, "err", err)
		return nil, syscall.EIO
	}

	return fuse.ReadResultData(dest[:n]), 0
}

func (f *fileHandle) Release(ctx context.Context) syscall.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reader == nil {
		return 0
	}
	err := f.reader.Close()
	f.reader = nil
	if err != nil {
		logger.Warn("Error closing file", "err", err)
		return syscall.EIO
	}
	return 0
}

// FileSystem manages the root directory and dynamic file modifications.
type FileSystem struct {
	mu   sync.Mutex
	root *dirNode
}

var _ = presentation.Presenter((*FileSystem)(nil))

var ErrPathNotFound = errors.New("path not found")

func splitPath(fullpath string) []string {
	return strings.Split(strings.Trim(fullpath, "/"), "/")
}

func (fsManager *FileSystem) AddFile(fullpath string, modTime time.Time, openable presentation.Openable) error {
	size, err := openable.Size()
	if err != nil {
		return fmt.Errorf("adding file failed: %w", err)
	}

	fsManager.mu.Lock()
	defer fsManager.mu.Unlock()

	parts := splitPath(fullpath)
	currentInode := &fsManager.root.Inode

	// Ensure path exists
	for _, part := range parts[:len(parts)-1] {
		nextInode := currentInode.GetChild(part)
		if nextInode == nil {
			newDir := &dirNode{
				modTime: modTime,
			}
			nextInode = currentInode.NewPersistentInode(context.Background(), newDir, fs.StableAttr{Mode: fuse.S_IFDIR})
			currentInode.AddChild(part, nextInode, true)
		}
		currentInode = nextInode
	}

	fileName := parts[len(parts)-1]
	file := &fileNode{modTime: modTime, openable: openable, size: size}
	fileInode := currentInode.NewPersistentInode(context.Background(), file, fs.StableAttr{Mode: fuse.S_IFREG})
	currentInode.AddChild(fileName, fileInode, true)
	return nil
}

// RemoveFile removes the file and every directory left empty by it.
func (fsManager *FileSystem) RemoveFile(fullpath string) error {
	fsManager.mu.Lock()
	defer fsManager.mu.Unlock()

	parts := splitPath(fullpath)

	// Inodes along the path, root first
	inodes := make([]*fs.Inode, 0, len(parts))
	currentInode := &fsManager.root.Inode
	for _, part := range parts[:len(parts)-1] {
		currentInode = currentInode.GetChild(part)
		if currentInode == nil {
			return fmt.Errorf("%w: %s", ErrPathNotFound, fullpath)
		}
		inodes = append(inodes, currentInode)
	}

	fileName := parts[len(parts)-1]
	parent := &fsManager.root.Inode
	if len(inodes) > 0 {
		parent = inodes[len(inodes)-1]
	}
	if parent.GetChild(fileName) == nil {
		return fmt.Errorf("%w: %s", ErrPathNotFound, fullpath)
	}
	parent.RmChild(fileName)

	// Walk back up, removing empty directories
	for i := len(inodes) - 1; i >= 0; i-- {
		if len(inodes[i].Children()) > 0 {
			break
		}
		grandparent := &fsManager.root.Inode
		if i > 0 {
			grandparent = inodes[i-1]
		}
		grandparent.RmChild(parts[i])
	}

	return nil
}
