// Package webdav provides a WebDAV interface to the uploads and temp
// namespaces.
package webdav

import (
	"bytes"
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/storage"
)

// Mount exposes a filesystem root under a top-level DAV directory.
type Mount struct {
	Name string // DAV directory, e.g. "uploads"
	Root string // absolute filesystem root, e.g. /var/www/wp-content/uploads
}

// DefaultMounts exposes the uploads root as /uploads and the temp root as
// /tmp.
func DefaultMounts(roots storage.Roots) []Mount {
	return []Mount{
		{Name: "uploads", Root: roots.Uploads},
		{Name: "tmp", Root: roots.Temp},
	}
}

// FS implements webdav.FileSystem on top of a storage.Filesystem. The DAV
// root and the mount directories are synthetic; everything below a mount
// is passed to the Filesystem.
type FS struct {
	fs      *storage.Filesystem
	mounts  map[string]string
	started time.Time

	listOnce sync.Once
}

var _ webdav.FileSystem = (*FS)(nil)

// NewFS creates a DAV filesystem with the given mounts.
func NewFS(fs *storage.Filesystem, mounts []Mount) *FS {
	m := make(map[string]string, len(mounts))
	for _, mt := range mounts {
		if mt.Name == "" || mt.Root == "" {
			continue
		}
		m["/"+strings.Trim(mt.Name, "/")] = strings.TrimRight(mt.Root, "/")
	}
	return &FS{fs: fs, mounts: m, started: time.Now()}
}

func normalizePath(name string) string {
	return path.Clean("/" + name)
}

// virtualInfo returns info for the DAV root and mount directories.
func (d *FS) virtualInfo(name string) *fileInfo {
	if name == "/" {
		return &fileInfo{name: "/", isDir: true, modTime: d.started}
	}
	if _, ok := d.mounts[name]; ok {
		return &fileInfo{name: path.Base(name), isDir: true, modTime: d.started}
	}
	return nil
}

// resolve maps a DAV name below a mount to its filesystem path.
func (d *FS) resolve(name string) (string, bool) {
	for prefix, root := range d.mounts {
		if strings.HasPrefix(name, prefix+"/") {
			return root + strings.TrimPrefix(name, prefix), true
		}
	}
	return "", false
}

func (d *FS) mountInfos() []os.FileInfo {
	names := make([]string, 0, len(d.mounts))
	for prefix := range d.mounts {
		names = append(names, prefix)
	}
	sort.Strings(names)

	infos := make([]os.FileInfo, 0, len(names))
	for _, n := range names {
		infos = append(infos, d.virtualInfo(n))
	}
	return infos
}

// emptyListing returns the children of a directory below the DAV root.
// Listing is unsupported there, so it is always empty.
func (d *FS) emptyListing(name string) []os.FileInfo {
	d.listOnce.Do(func() {
		logging.Info("webdav directory listings below mounts are empty",
			zap.String("first_path", name))
	})
	return []os.FileInfo{}
}

// Mkdir is not supported below a mount.
func (d *FS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	name = normalizePath(name)
	if d.virtualInfo(name) != nil {
		return os.ErrExist
	}
	target, ok := d.resolve(name)
	if !ok {
		return os.ErrNotExist
	}
	return d.fs.Mkdir(ctx, target, perm)
}

// OpenFile opens a file for reading or returns a buffer that is written
// through on Close.
func (d *FS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	name = normalizePath(name)
	writable := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0

	if fi := d.virtualInfo(name); fi != nil {
		if writable {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
		}
		f := &file{fs: d, ctx: ctx, name: name, info: fi}
		if name == "/" {
			f.children = d.mountInfos()
		} else {
			f.realPath = d.mounts[name]
			f.children = d.emptyListing(name)
		}
		return f, nil
	}

	target, ok := d.resolve(name)
	if !ok {
		return nil, os.ErrNotExist
	}

	if writable {
		if flag&os.O_EXCL != 0 {
			exists, err := d.fs.Exists(ctx, target)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, os.ErrExist
			}
		}
		return &file{
			fs:       d,
			ctx:      ctx,
			name:     name,
			realPath: target,
			buf:      &bytes.Buffer{},
		}, nil
	}

	isDir, err := d.fs.IsDir(ctx, target)
	if err != nil {
		return nil, err
	}
	if isDir {
		return &file{
			fs:       d,
			ctx:      ctx,
			name:     name,
			realPath: target,
			info:     &fileInfo{name: path.Base(name), isDir: true, modTime: time.Now()},
			children: d.emptyListing(name),
		}, nil
	}

	isFile, err := d.fs.IsFile(ctx, target)
	if err != nil {
		return nil, err
	}
	if !isFile {
		return nil, os.ErrNotExist
	}

	data, err := d.fs.GetContents(ctx, target)
	if err != nil {
		return nil, err
	}
	return &file{
		fs:       d,
		ctx:      ctx,
		name:     name,
		realPath: target,
		info:     &fileInfo{name: path.Base(name), size: int64(len(data)), modTime: time.Now()},
		reader:   bytes.NewReader(data),
	}, nil
}

// RemoveAll deletes a single file. Directory removal is not supported.
func (d *FS) RemoveAll(ctx context.Context, name string) error {
	name = normalizePath(name)
	if d.virtualInfo(name) != nil {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
	}
	target, ok := d.resolve(name)
	if !ok {
		return os.ErrNotExist
	}

	isDir, err := d.fs.IsDir(ctx, target)
	if err != nil {
		return err
	}
	if isDir {
		return d.fs.Rmdir(ctx, target, true)
	}
	return d.fs.Delete(ctx, target)
}

// Rename moves a file, possibly across namespaces.
func (d *FS) Rename(ctx context.Context, oldName, newName string) error {
	oldName = normalizePath(oldName)
	newName = normalizePath(newName)
	if d.virtualInfo(oldName) != nil || d.virtualInfo(newName) != nil {
		return &os.PathError{Op: "rename", Path: oldName, Err: os.ErrPermission}
	}

	src, ok := d.resolve(oldName)
	if !ok {
		return os.ErrNotExist
	}
	dst, ok := d.resolve(newName)
	if !ok {
		return os.ErrNotExist
	}
	return d.fs.Move(ctx, src, dst, true)
}

// Stat synthesises file info from the Filesystem predicates. Modification
// times are not tracked, so files report the current time.
func (d *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	name = normalizePath(name)
	if fi := d.virtualInfo(name); fi != nil {
		return fi, nil
	}
	target, ok := d.resolve(name)
	if !ok {
		return nil, os.ErrNotExist
	}

	isDir, err := d.fs.IsDir(ctx, target)
	if err != nil {
		return nil, err
	}
	if isDir {
		return &fileInfo{name: path.Base(name), isDir: true, modTime: time.Now()}, nil
	}

	isFile, err := d.fs.IsFile(ctx, target)
	if err != nil {
		return nil, err
	}
	if !isFile {
		return nil, os.ErrNotExist
	}

	size, err := d.fs.Size(ctx, target)
	if err != nil {
		return nil, err
	}
	return &fileInfo{name: path.Base(name), size: size, modTime: time.Now()}, nil
}
