// uploadsfs reads and writes files across the uploads namespace, stored
// behind the remote files API, and the local temp namespace.
//
// Every Filesystem operation is available as a subcommand; `serve` exposes
// both namespaces over WebDAV with Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/fruitsalade/uploadsfs/internal/config"
	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/storage"
)

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout)
	if err == nil {
		logging.Sync()
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if storage.IsFatal(err) {
		logging.Fatal("fatal filesystem error", zap.Error(err))
	}
	logging.Error("command failed", zap.Error(err))
	logging.Sync()
	os.Exit(1)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return usageErrorf("no command given")
	}
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return usageErrorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		// Stdout carries command output.
		OutputPath: "stderr",
	}); err != nil {
		return fmt.Errorf("logging init error: %w", err)
	}

	fs, err := storage.NewFilesystemFromConfig(ctx, cfg)
	if err != nil {
		return err
	}

	return cmd.run(&env{
		ctx:    ctx,
		cfg:    cfg,
		fs:     fs,
		stdin:  stdin,
		stdout: stdout,
	}, args[1:])
}
