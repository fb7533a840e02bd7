package webdav

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/metrics"
	"github.com/fruitsalade/uploadsfs/internal/storage"
)

// Prefix is the URL path the DAV tree is served under.
const Prefix = "/webdav"

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	Mounts []Mount

	// User and PasswordHash enable Basic Auth when both are set.
	User         string
	PasswordHash string
}

// NewHandler creates a WebDAV HTTP handler with logging, metrics and
// optional authentication.
func NewHandler(fs *storage.Filesystem, cfg HandlerConfig) http.Handler {
	mounts := cfg.Mounts
	if mounts == nil {
		mounts = DefaultMounts(fs.Roots())
	}

	var h http.Handler = &webdav.Handler{
		FileSystem: NewFS(fs, mounts),
		LockSystem: webdav.NewMemLS(),
		Prefix:     Prefix,
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logging.WithContext(r.Context()).Warn("webdav request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
			}
		},
	}

	if cfg.User != "" && cfg.PasswordHash != "" {
		h = BasicAuthMiddleware(cfg.User, cfg.PasswordHash)(h)
	}
	return logging.Middleware(metrics.Middleware(h))
}
