package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
	"golang.org/x/net/webdav"
)

var (
	ErrReadOnlyFilesystem = errors.New("read-only filesystem")
	ErrNotDirectory       = errors.New("not a directory")
)

var (
	_ webdav.FileSystem      = (*FS)(nil)
	_ presentation.Presenter = (*FS)(nil)
)

// FS is a read-only in-memory directory tree of openable files. Directories exist implicitly
// as long as they contain a file.
type FS struct {
	mu      sync.RWMutex
	files   map[string]*simpleFile
	created time.Time
}

func NewFS() *FS {
	return &FS{
		files:   make(map[string]*simpleFile),
		created: time.Now(),
	}
}

func cleanPath(name string) string {
	return path.Clean("/" + name)
}

func (fs *FS) AddFile(fullpath string, modTime time.Time, openable presentation.Openable) error {
	fullpath = cleanPath(fullpath)

	size, err := openable.Size()
	if err != nil {
		return fmt.Errorf("adding file failed: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.isDir(fullpath) {
		return fmt.Errorf("adding file failed: %s: %w", fullpath, os.ErrExist)
	}
	fs.files[fullpath] = &simpleFile{
		openable: openable,
		size:     size,
		modTime:  modTime,
		name:     path.Base(fullpath),
	}
	return nil
}

func (fs *FS) RemoveFile(fullpath string) error {
	fullpath = cleanPath(fullpath)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.files[fullpath]; !exists {
		return fmt.Errorf("%s: %w", fullpath, os.ErrNotExist)
	}
	delete(fs.files, fullpath)
	return nil
}

func (fs *FS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return ErrReadOnlyFilesystem
}

func (fs *FS) RemoveAll(ctx context.Context, name string) error {
	return ErrReadOnlyFilesystem
}

func (fs *FS) Rename(ctx context.Context, oldName, newName string) error {
	return ErrReadOnlyFilesystem
}

func (fs *FS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, ErrReadOnlyFilesystem
	}
	name = cleanPath(name)

	fs.mu.RLock()
	file, exists := fs.files[name]
	isDir := !exists && fs.isDir(name)
	fs.mu.RUnlock()

	if isDir {
		return &simpleFileReader{
			info: fs.dirInfo(name),
			path: name,
			fs:   fs,
		}, nil
	}
	if !exists {
		return nil, os.ErrNotExist
	}

	reader, err := file.openable.Open()
	if err != nil {
		logger.Error("Error opening file", "path", name, "err", err)
		return nil, err
	}
	return &simpleFileReader{
		info:   file,
		path:   name,
		reader: reader,
		fs:     fs,
	}, nil
}

func (fs *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	name = cleanPath(name)

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if f, exists := fs.files[name]; exists {
		return f, nil
	}
	if fs.isDir(name) {
		return fs.dirInfo(name), nil
	}
	return nil, os.ErrNotExist
}

func (fs *FS) dirInfo(name string) *simpleFile {
	return &simpleFile{
		name:    path.Base(name),
		modTime: fs.created,
		isDir:   true,
	}
}

// isDir reports whether any file lives below name; the root always exists.
func (fs *FS) isDir(name string) bool {
	if name == "/" {
		return true
	}
	prefix := name + "/"
	for filePath := range fs.files {
		if strings.HasPrefix(filePath, prefix) {
			return true
		}
	}
	return false
}

type simpleFileReader struct {
	info   *simpleFile
	path   string
	reader io.ReadSeekCloser
	fs     *FS
}

func (sf *simpleFileReader) Close() error {
	if sf.reader != nil {
		return sf.reader.Close()
	}
	return nil
}

func (sf *simpleFileReader) Read(p []byte) (int, error) {
	if sf.reader == nil {
		return 0, fmt.Errorf("%s: %w", sf.path, ErrNotDirectory)
	}
	return sf.reader.Read(p)
}

func (sf *simpleFileReader) Seek(offset int64, whence int) (int64, error) {
	if sf.reader == nil {
		return 0, fmt.Errorf("%s: %w", sf.path, ErrNotDirectory)
	}
	return sf.reader.Seek(offset, whence)
}

func (sf *simpleFileReader) Write(p []byte) (int, error) {
	return 0, ErrReadOnlyFilesystem
}

func (sf *simpleFileReader) Readdir(count int) ([]fs.FileInfo, error) {
	if !sf.info.isDir {
		return nil, fmt.Errorf("%s: %w", sf.path, ErrNotDirectory)
	}

	sf.fs.mu.RLock()
	defer sf.fs.mu.RUnlock()

	prefix := sf.path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	seen := make(map[string]struct{})
	entries := make([]fs.FileInfo, 0)
	for filePath, f := range sf.fs.files {
		relPath, found := strings.CutPrefix(filePath, prefix)
		if !found {
			continue
		}

		name, _, nested := strings.Cut(relPath, "/")
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}

		if nested {
			entries = append(entries, sf.fs.dirInfo(name))
		} else {
			entries = append(entries, f)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	if count > 0 && len(entries) > count {
		return entries[:count], nil
	}
	return entries, nil
}

func (sf *simpleFileReader) Stat() (fs.FileInfo, error) {
	return sf.info, nil
}

type simpleFile struct {
	openable presentation.Openable
	size     int64
	modTime  time.Time
	name     string
	isDir    bool
}

func (sf *simpleFile) Name() string {
	return sf.name
}

func (sf *simpleFile) Size() int64 {
	if sf.isDir {
		return 0
	}
	return sf.size
}

func (sf *simpleFile) Mode() fs.FileMode {
	if sf.isDir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (sf *simpleFile) ModTime() time.Time {
	return sf.modTime
}

func (sf *simpleFile) IsDir() bool {
	return sf.isDir
}

func (sf *simpleFile) Sys() any {
	return nil
}
