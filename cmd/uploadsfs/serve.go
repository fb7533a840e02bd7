package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/metrics"
	"github.com/fruitsalade/uploadsfs/internal/webdav"
)

const shutdownTimeout = 10 * time.Second

func runServe(e *env, args []string) error {
	listen := e.cfg.ListenAddr
	metricsAddr := e.cfg.MetricsAddr
	if _, err := parseArgs("serve", args, 0, func(f *pflag.FlagSet) {
		f.StringVar(&listen, "listen", listen, "WebDAV listen address")
		f.StringVar(&metricsAddr, "metrics", metricsAddr, "metrics listen address (empty disables)")
	}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(e.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	davServer := &http.Server{
		Addr: listen,
		Handler: webdav.NewHandler(e.fs, webdav.HandlerConfig{
			User:         e.cfg.DAVUser,
			PasswordHash: e.cfg.DAVPasswordHash,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	servers := []*http.Server{davServer}
	if metricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              metricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logging.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})

	logging.Info("uploadsfs serving WebDAV",
		zap.String("prefix", webdav.Prefix),
		zap.String("uploads_root", e.fs.Roots().Uploads),
		zap.String("temp_root", e.fs.Roots().Temp),
		zap.Bool("auth", e.cfg.DAVAuthEnabled()))

	err := g.Wait()
	if fsErr := e.fs.Err(); fsErr != nil {
		logging.Warn("filesystem recorded errors while serving", zap.Error(fsErr))
	}
	return err
}
