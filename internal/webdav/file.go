package webdav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/fruitsalade/uploadsfs/internal/logging"
)

// file implements webdav.File. Reads are served from the whole file
// fetched at open time; writes are buffered and stored on Close.
type file struct {
	fs       *FS
	ctx      context.Context
	name     string
	realPath string
	info     *fileInfo

	reader *bytes.Reader
	buf    *bytes.Buffer

	// children is set for directories; empty below a mount.
	children []os.FileInfo
	dirPos   int
}

var _ webdav.File = (*file)(nil)

func (f *file) Close() error {
	if f.buf == nil {
		return nil
	}

	content := f.buf.Bytes()
	f.buf = nil
	if err := f.fs.fs.PutContents(f.ctx, f.realPath, content, 0); err != nil {
		return err
	}

	logging.Debug("webdav file written",
		zap.String("path", f.name),
		zap.Int("size", len(content)))
	return nil
}

func (f *file) Read(p []byte) (int, error) {
	if f.reader == nil {
		return 0, fmt.Errorf("%s: not opened for reading", f.name)
	}
	return f.reader.Read(p)
}

func (f *file) Write(p []byte) (int, error) {
	if f.buf == nil {
		return 0, fmt.Errorf("%s: not opened for writing", f.name)
	}
	return f.buf.Write(p)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.reader == nil {
		return 0, fmt.Errorf("%s: not seekable", f.name)
	}
	return f.reader.Seek(offset, whence)
}

// Readdir lists the mounts for the DAV root. Directories below a mount
// list as empty: the Filesystem cannot enumerate either namespace.
func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	if f.info == nil || !f.info.isDir {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: fs.ErrInvalid}
	}

	rest := f.children[f.dirPos:]
	if count <= 0 {
		f.dirPos = len(f.children)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	f.dirPos += count
	return rest[:count], nil
}

func (f *file) Stat() (os.FileInfo, error) {
	if f.info != nil {
		return f.info, nil
	}
	if f.buf != nil {
		return &fileInfo{
			name:    path.Base(f.name),
			size:    int64(f.buf.Len()),
			modTime: time.Now(),
		}, nil
	}
	return nil, os.ErrNotExist
}

// fileInfo implements os.FileInfo.
type fileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) IsDir() bool        { return fi.isDir }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) Sys() interface{}   { return nil }

func (fi *fileInfo) Mode() os.FileMode {
	if fi.isDir {
		return os.ModeDir | 0755
	}
	return 0644
}
