package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/metrics"
)

// Roots are the absolute path prefixes owned by each transport.
// They must not overlap; Uploads is checked first.
type Roots struct {
	Uploads string
	Temp    string
}

// Filesystem resolves which transport handles a path and forwards the call.
// Resolution is a plain string-prefix match recomputed on every call.
type Filesystem struct {
	roots   Roots
	uploads Transport
	temp    Transport

	mu   sync.Mutex
	errs []error
}

// NewFilesystem creates a Filesystem routing roots.Uploads to uploads and
// roots.Temp to temp.
func NewFilesystem(roots Roots, uploads, temp Transport) *Filesystem {
	return &Filesystem{
		roots:   roots,
		uploads: uploads,
		temp:    temp,
	}
}

// Roots returns the configured root prefixes.
func (fs *Filesystem) Roots() Roots {
	return fs.roots
}

// Errors returns a copy of the fatal errors recorded so far.
func (fs *Filesystem) Errors() []error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]error(nil), fs.errs...)
}

// Err returns all recorded errors combined, or nil.
func (fs *Filesystem) Err() error {
	return multierr.Combine(fs.Errors()...)
}

func (fs *Filesystem) record(err *FatalError, fields ...zap.Field) error {
	fs.mu.Lock()
	fs.errs = append(fs.errs, err)
	fs.mu.Unlock()

	metrics.RecordFatalError(err.Code)
	logging.Error(err.Message, append([]zap.Field{zap.String("code", err.Code)}, fields...)...)
	return err
}

func (fs *Filesystem) isUploadsPath(path string) bool {
	return fs.roots.Uploads != "" && strings.HasPrefix(path, fs.roots.Uploads)
}

func (fs *Filesystem) isTempPath(path string) bool {
	return fs.roots.Temp != "" && strings.HasPrefix(path, fs.roots.Temp)
}

// TransportFor returns the transport owning path. Paths under neither root
// produce a *FatalError, which is also recorded in the error log.
func (fs *Filesystem) TransportFor(path string) (Transport, error) {
	switch {
	case fs.isUploadsPath(path):
		return fs.uploads, nil
	case fs.isTempPath(path):
		return fs.temp, nil
	}

	return nil, fs.record(newPathError(path),
		zap.String("path", path),
		zap.String("uploads_root", fs.roots.Uploads),
		zap.String("temp_root", fs.roots.Temp))
}

func (fs *Filesystem) route(path, operation string) (Transport, error) {
	t, err := fs.TransportFor(path)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransportCall(t.Type(), operation)
	return t, nil
}

// GetContents reads an entire file.
func (fs *Filesystem) GetContents(ctx context.Context, path string) ([]byte, error) {
	t, err := fs.route(path, "get_contents")
	if err != nil {
		return nil, err
	}
	return t.GetContents(ctx, path)
}

// GetContentsArray reads a file as lines.
func (fs *Filesystem) GetContentsArray(ctx context.Context, path string) ([]string, error) {
	t, err := fs.route(path, "get_contents_array")
	if err != nil {
		return nil, err
	}
	return t.GetContentsArray(ctx, path)
}

// PutContents writes contents to path.
func (fs *Filesystem) PutContents(ctx context.Context, path string, contents []byte, mode os.FileMode) error {
	t, err := fs.route(path, "put_contents")
	if err != nil {
		return err
	}
	return t.PutContents(ctx, path, contents, mode)
}

// Delete removes a file.
func (fs *Filesystem) Delete(ctx context.Context, path string) error {
	t, err := fs.route(path, "delete")
	if err != nil {
		return err
	}
	return t.Delete(ctx, path)
}

func (fs *Filesystem) Size(ctx context.Context, path string) (int64, error) {
	t, err := fs.route(path, "size")
	if err != nil {
		return 0, err
	}
	return t.Size(ctx, path)
}

func (fs *Filesystem) Exists(ctx context.Context, path string) (bool, error) {
	t, err := fs.route(path, "exists")
	if err != nil {
		return false, err
	}
	return t.Exists(ctx, path)
}

func (fs *Filesystem) IsFile(ctx context.Context, path string) (bool, error) {
	t, err := fs.route(path, "is_file")
	if err != nil {
		return false, err
	}
	return t.IsFile(ctx, path)
}

func (fs *Filesystem) IsDir(ctx context.Context, path string) (bool, error) {
	t, err := fs.route(path, "is_dir")
	if err != nil {
		return false, err
	}
	return t.IsDir(ctx, path)
}

func (fs *Filesystem) IsReadable(ctx context.Context, path string) (bool, error) {
	t, err := fs.route(path, "is_readable")
	if err != nil {
		return false, err
	}
	return t.IsReadable(ctx, path)
}

func (fs *Filesystem) IsWritable(ctx context.Context, path string) (bool, error) {
	t, err := fs.route(path, "is_writable")
	if err != nil {
		return false, err
	}
	return t.IsWritable(ctx, path)
}

// Copy copies source to destination, which may live on different
// transports. With overwrite false an existing destination yields
// ErrDestinationExists and nothing is written.
func (fs *Filesystem) Copy(ctx context.Context, source, destination string, overwrite bool) error {
	src, err := fs.route(source, "copy")
	if err != nil {
		return err
	}
	dst, err := fs.route(destination, "copy")
	if err != nil {
		return err
	}

	if !overwrite {
		exists, err := dst.Exists(ctx, destination)
		if err != nil {
			return fmt.Errorf("check destination %s: %w", destination, err)
		}
		if exists {
			return fmt.Errorf("copy to %s: %w", destination, ErrDestinationExists)
		}
	}

	contents, err := src.GetContents(ctx, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}

	if err := dst.PutContents(ctx, destination, contents, 0); err != nil {
		return fmt.Errorf("write %s: %w", destination, err)
	}

	logging.Debug("file copied",
		zap.String("source", source),
		zap.String("destination", destination),
		zap.String("from", src.Type()),
		zap.String("to", dst.Type()),
		zap.Int("size", len(contents)))
	return nil
}

// Move copies source to destination and then deletes source. If the copy
// fails the source is left untouched. If only the delete fails the returned
// error matches ErrPartialMove and the destination already holds the data.
func (fs *Filesystem) Move(ctx context.Context, source, destination string, overwrite bool) error {
	if err := fs.Copy(ctx, source, destination, overwrite); err != nil {
		return err
	}

	if err := fs.Delete(ctx, source); err != nil {
		logging.Warn("move: source not removed",
			zap.String("source", source),
			zap.String("destination", destination),
			zap.Error(err))
		return multierr.Append(ErrPartialMove, fmt.Errorf("delete %s: %w", source, err))
	}
	return nil
}
