// Package remote exposes the files API as a storage transport for the
// uploads namespace.
package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/storage/lines"
)

// API is the subset of *apiclient.Client the transport needs.
type API interface {
	IsFile(ctx context.Context, path string) (bool, error)
	DeleteFile(ctx context.Context, path string) error
	GetFile(ctx context.Context, path string) ([]byte, error)
	UploadFile(ctx context.Context, localPath, uploadPath string) (string, error)
}

// Config holds remote transport settings.
type Config struct {
	// StripPrefix is removed from absolute paths to form API paths, so
	// /var/www/wp-content/uploads/a.jpg becomes /wp-content/uploads/a.jpg.
	StripPrefix string

	// SpoolDir holds the temporary copy of contents being uploaded.
	// Defaults to os.TempDir().
	SpoolDir string
}

// Transport implements storage.Transport over the files API.
type Transport struct {
	api         API
	stripPrefix string
	spoolDir    string
}

// New creates a remote transport.
func New(api API, cfg Config) *Transport {
	spool := cfg.SpoolDir
	if spool == "" {
		spool = os.TempDir()
	}
	return &Transport{
		api:         api,
		stripPrefix: strings.TrimRight(cfg.StripPrefix, "/"),
		spoolDir:    spool,
	}
}

func (t *Transport) apiPath(path string) string {
	p := strings.TrimPrefix(path, t.stripPrefix)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// GetContents fetches the file from the API.
func (t *Transport) GetContents(ctx context.Context, path string) ([]byte, error) {
	return t.api.GetFile(ctx, t.apiPath(path))
}

// GetContentsArray fetches the file from the API as lines.
func (t *Transport) GetContentsArray(ctx context.Context, path string) ([]string, error) {
	data, err := t.GetContents(ctx, path)
	if err != nil {
		return nil, err
	}
	return lines.Split(data), nil
}

// PutContents spools contents to disk and uploads them. mode is ignored;
// the API has no permissions.
func (t *Transport) PutContents(ctx context.Context, path string, contents []byte, _ os.FileMode) error {
	// Keep the extension so the upload gets the right Content-Type.
	spool, err := os.CreateTemp(t.spoolDir, "uploadsfs-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("create spool file for %s: %w", path, err)
	}
	spoolName := spool.Name()
	defer os.Remove(spoolName)

	if _, err := spool.Write(contents); err != nil {
		spool.Close()
		return fmt.Errorf("write spool file for %s: %w", path, err)
	}
	if err := spool.Close(); err != nil {
		return fmt.Errorf("close spool file for %s: %w", path, err)
	}

	requested := t.apiPath(path)
	stored, err := t.api.UploadFile(ctx, spoolName, requested)
	if err != nil {
		return err
	}

	if stored != requested {
		logging.Info("files api stored upload under a different name",
			zap.String("requested", requested),
			zap.String("stored", stored))
	}
	return nil
}

// Delete removes the file through the API.
func (t *Transport) Delete(ctx context.Context, path string) error {
	return t.api.DeleteFile(ctx, t.apiPath(path))
}

// Size downloads the file to measure it; the API has no stat call.
func (t *Transport) Size(ctx context.Context, path string) (int64, error) {
	data, err := t.GetContents(ctx, path)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (t *Transport) Exists(ctx context.Context, path string) (bool, error) {
	return t.api.IsFile(ctx, t.apiPath(path))
}

func (t *Transport) IsFile(ctx context.Context, path string) (bool, error) {
	return t.api.IsFile(ctx, t.apiPath(path))
}

// IsDir is always false: the API stores flat objects.
func (t *Transport) IsDir(context.Context, string) (bool, error) {
	return false, nil
}

func (t *Transport) IsReadable(ctx context.Context, path string) (bool, error) {
	return t.api.IsFile(ctx, t.apiPath(path))
}

// IsWritable is always true; quota problems only surface on upload.
func (t *Transport) IsWritable(context.Context, string) (bool, error) {
	return true, nil
}

// Type returns "api".
func (t *Transport) Type() string { return "api" }
