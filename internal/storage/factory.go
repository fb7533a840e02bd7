package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/uploadsfs/internal/apiclient"
	"github.com/fruitsalade/uploadsfs/internal/config"
	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/storage/local"
	"github.com/fruitsalade/uploadsfs/internal/storage/remote"
	s3transport "github.com/fruitsalade/uploadsfs/internal/storage/s3"
)

// NewUploadsTransport creates the transport for the uploads namespace from
// cfg.UploadsBackend.
func NewUploadsTransport(ctx context.Context, cfg *config.Config) (Transport, error) {
	switch cfg.UploadsBackend {
	case config.BackendAPI, "":
		client := apiclient.New(apiclient.Config{
			BaseURL:           cfg.FilesAPIURL,
			SiteID:            cfg.FilesSiteID,
			AccessToken:       cfg.FilesAccessToken,
			RequestsPerSecond: cfg.FilesRequestsPerSecond,
		})
		return remote.New(client, remote.Config{
			StripPrefix: cfg.RemoteStripPrefix,
			SpoolDir:    cfg.SpoolDir,
		}), nil
	case config.BackendS3:
		return s3transport.New(ctx, s3transport.Config{
			Endpoint:    cfg.S3Endpoint,
			Bucket:      cfg.S3Bucket,
			AccessKey:   cfg.S3AccessKey,
			SecretKey:   cfg.S3SecretKey,
			Region:      cfg.S3Region,
			KeyPrefix:   cfg.S3KeyPrefix,
			StripPrefix: cfg.UploadsRoot,
		})
	default:
		return nil, fmt.Errorf("unknown uploads backend type: %s", cfg.UploadsBackend)
	}
}

// NewFilesystemFromConfig wires the uploads transport and a local temp
// transport into a Filesystem.
func NewFilesystemFromConfig(ctx context.Context, cfg *config.Config) (*Filesystem, error) {
	uploads, err := NewUploadsTransport(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create uploads transport: %w", err)
	}

	temp, err := local.New(local.Config{RootPath: cfg.TempRoot, CreateDirs: cfg.CreateTempRoot})
	if err != nil {
		return nil, fmt.Errorf("create temp transport: %w", err)
	}

	logging.Info("filesystem ready",
		zap.String("uploads_root", cfg.UploadsRoot),
		zap.String("uploads_backend", uploads.Type()),
		zap.String("temp_root", cfg.TempRoot))

	return NewFilesystem(Roots{Uploads: cfg.UploadsRoot, Temp: cfg.TempRoot}, uploads, temp), nil
}
