package storage

import (
	"context"
	"os"
	"time"
)

// DirEntry describes one directory listing entry.
type DirEntry struct {
	Name  string
	Size  int64
	IsDir bool
}

// The operations below are not supported by either namespace. Each records
// an unimplemented-method error and returns it as a *FatalError along with
// the zero value.

func (fs *Filesystem) unimplemented(method string) error {
	return fs.record(newUnimplementedError("Filesystem." + method))
}

// Mkdir would create a directory. Unsupported in both namespaces.
func (fs *Filesystem) Mkdir(_ context.Context, path string, mode os.FileMode) error {
	return fs.unimplemented("Mkdir")
}

// Rmdir would remove a directory. Unsupported in both namespaces.
func (fs *Filesystem) Rmdir(_ context.Context, path string, recursive bool) error {
	return fs.unimplemented("Rmdir")
}

// Dirlist would list a directory. Neither namespace can be enumerated.
func (fs *Filesystem) Dirlist(_ context.Context, path string, includeHidden, recursive bool) ([]DirEntry, error) {
	return nil, fs.unimplemented("Dirlist")
}

// Cwd would report the working directory. Unsupported.
func (fs *Filesystem) Cwd(_ context.Context) (string, error) {
	return "", fs.unimplemented("Cwd")
}

// Chdir would change the working directory. Unsupported.
func (fs *Filesystem) Chdir(_ context.Context, dir string) error {
	return fs.unimplemented("Chdir")
}

// Chgrp would change the file group. Unsupported.
func (fs *Filesystem) Chgrp(_ context.Context, path, group string, recursive bool) error {
	return fs.unimplemented("Chgrp")
}

// Chmod would change permissions. Unsupported; PutContents takes a mode.
func (fs *Filesystem) Chmod(_ context.Context, path string, mode os.FileMode, recursive bool) error {
	return fs.unimplemented("Chmod")
}

// Chown would change the file owner. Unsupported.
func (fs *Filesystem) Chown(_ context.Context, path, owner string, recursive bool) error {
	return fs.unimplemented("Chown")
}

// Owner would report the file owner. Unsupported.
func (fs *Filesystem) Owner(_ context.Context, path string) (string, error) {
	return "", fs.unimplemented("Owner")
}

// Getchmod would report permissions as a mode string. Unsupported; it
// returns "".
func (fs *Filesystem) Getchmod(_ context.Context, path string) (string, error) {
	return "", fs.unimplemented("Getchmod")
}

// Group would report the file group. Unsupported.
func (fs *Filesystem) Group(_ context.Context, path string) (string, error) {
	return "", fs.unimplemented("Group")
}

// Atime would report the access time. Unsupported.
func (fs *Filesystem) Atime(_ context.Context, path string) (time.Time, error) {
	return time.Time{}, fs.unimplemented("Atime")
}

// Mtime would report the modification time. Unsupported.
func (fs *Filesystem) Mtime(_ context.Context, path string) (time.Time, error) {
	return time.Time{}, fs.unimplemented("Mtime")
}

// Touch would set file times. Unsupported.
func (fs *Filesystem) Touch(_ context.Context, path string, mtime, atime time.Time) error {
	return fs.unimplemented("Touch")
}
