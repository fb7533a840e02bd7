// Package storage routes filesystem calls between the uploads namespace,
// owned by a remote transport, and the temp namespace, owned by local disk.
package storage

import (
	"context"
	"os"
)

// Transport is the interface for filesystem backends.
// Implementations only ever see absolute paths inside the namespace they
// were registered for.
type Transport interface {
	// GetContents reads the whole file.
	GetContents(ctx context.Context, path string) ([]byte, error)

	// GetContentsArray reads the file as lines, each keeping its trailing newline.
	GetContentsArray(ctx context.Context, path string) ([]string, error)

	// PutContents writes contents to path. A zero mode leaves permissions
	// to the backend.
	PutContents(ctx context.Context, path string, contents []byte, mode os.FileMode) error

	// Delete removes a single file.
	Delete(ctx context.Context, path string) error

	// Size returns the file size in bytes.
	Size(ctx context.Context, path string) (int64, error)

	Exists(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	IsReadable(ctx context.Context, path string) (bool, error)
	IsWritable(ctx context.Context, path string) (bool, error)

	// Type returns the transport type identifier ("api", "s3", "local").
	Type() string
}
