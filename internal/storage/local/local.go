// Package local provides the disk transport used for the temp namespace.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/uploadsfs/internal/storage/lines"
)

// Config holds local transport settings.
type Config struct {
	// RootPath bounds every path this transport accepts.
	RootPath   string
	CreateDirs bool
}

// LocalTransport implements storage.Transport with direct file I/O.
type LocalTransport struct {
	rootPath   string
	createDirs bool
}

// New creates a new local transport.
func New(cfg Config) (*LocalTransport, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %s: %w", cfg.RootPath, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(root, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", root, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", root, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", root)
	}

	return &LocalTransport{
		rootPath:   root,
		createDirs: cfg.CreateDirs,
	}, nil
}

// resolve cleans path and checks that it stays under the root.
func (t *LocalTransport) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	rel, err := filepath.Rel(t.rootPath, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %s", path, t.rootPath)
	}
	return clean, nil
}

// GetContents reads a file from disk.
func (t *LocalTransport) GetContents(_ context.Context, path string) ([]byte, error) {
	p, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// GetContentsArray reads a file from disk as lines.
func (t *LocalTransport) GetContentsArray(ctx context.Context, path string) ([]string, error) {
	data, err := t.GetContents(ctx, path)
	if err != nil {
		return nil, err
	}
	return lines.Split(data), nil
}

// PutContents writes a file atomically via a temp file and rename.
func (t *LocalTransport) PutContents(_ context.Context, path string, contents []byte, mode os.FileMode) error {
	p, err := t.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)

	if t.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".uploadsfs-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", path, err)
	}

	// CreateTemp uses 0600; match what a plain create would give.
	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}

// Delete removes a file. Missing files are an error.
func (t *LocalTransport) Delete(_ context.Context, path string) error {
	p, err := t.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Size returns the file size.
func (t *LocalTransport) Size(_ context.Context, path string) (int64, error) {
	info, err := t.stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Exists checks if path exists on disk.
func (t *LocalTransport) Exists(_ context.Context, path string) (bool, error) {
	_, err := t.stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *LocalTransport) IsFile(_ context.Context, path string) (bool, error) {
	info, err := t.stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (t *LocalTransport) IsDir(_ context.Context, path string) (bool, error) {
	info, err := t.stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsReadable reports whether the current process may read path.
func (t *LocalTransport) IsReadable(_ context.Context, path string) (bool, error) {
	p, err := t.resolve(path)
	if err != nil {
		return false, err
	}
	return canRead(p), nil
}

// IsWritable reports whether the current process may write path.
func (t *LocalTransport) IsWritable(_ context.Context, path string) (bool, error) {
	p, err := t.resolve(path)
	if err != nil {
		return false, err
	}
	return canWrite(p), nil
}

// Type returns "local".
func (t *LocalTransport) Type() string { return "local" }

func (t *LocalTransport) stat(path string) (os.FileInfo, error) {
	p, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}
