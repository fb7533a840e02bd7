package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/fruitsalade/uploadsfs/internal/config"
	"github.com/fruitsalade/uploadsfs/internal/storage"
)

var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

type env struct {
	ctx    context.Context
	cfg    *config.Config
	fs     *storage.Filesystem
	stdin  io.Reader
	stdout io.Writer
}

type command struct {
	run func(e *env, args []string) error
}

var commands = map[string]command{
	"cat":   {run: runCat},
	"lines": {run: runLines},
	"put":   {run: runPut},
	"rm":    {run: runRm},
	"size":  {run: runSize},
	"cp":    {run: transferCommand("cp", (*storage.Filesystem).Copy)},
	"mv":    {run: transferCommand("mv", (*storage.Filesystem).Move)},
	"serve": {run: runServe},

	"exists":   {run: predicateCommand("exists", (*storage.Filesystem).Exists)},
	"isfile":   {run: predicateCommand("isfile", (*storage.Filesystem).IsFile)},
	"isdir":    {run: predicateCommand("isdir", (*storage.Filesystem).IsDir)},
	"readable": {run: predicateCommand("readable", (*storage.Filesystem).IsReadable)},
	"writable": {run: predicateCommand("writable", (*storage.Filesystem).IsWritable)},

	"mkdir": {run: pathCommand("mkdir", func(e *env, p string) error { return e.fs.Mkdir(e.ctx, p, 0755) })},
	"rmdir": {run: pathCommand("rmdir", func(e *env, p string) error { return e.fs.Rmdir(e.ctx, p, false) })},
	"ls": {run: pathCommand("ls", func(e *env, p string) error {
		entries, err := e.fs.Dirlist(e.ctx, p, false, false)
		for _, entry := range entries {
			fmt.Fprintln(e.stdout, entry.Name)
		}
		return err
	})},
	"chmod": {run: pathCommand("chmod", func(e *env, p string) error { return e.fs.Chmod(e.ctx, p, 0644, false) })},
	"touch": {run: pathCommand("touch", func(e *env, p string) error {
		now := time.Now()
		return e.fs.Touch(e.ctx, p, now, now)
	})},
	"stat": {run: pathCommand("stat", func(e *env, p string) error {
		mode, err := e.fs.Getchmod(e.ctx, p)
		if err != nil {
			return err
		}
		mtime, err := e.fs.Mtime(e.ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s %s\n", mode, mtime.Format(time.RFC3339))
		return nil
	})},
}

const usageText = `uploadsfs - files across the uploads API and local temp storage

Usage:
  uploadsfs <command> [flags] <args>

Commands:
  cat PATH                  print file contents
  lines PATH                print file lines, one quoted line per row
  put PATH [--from FILE] [--mode 0644]
                            write stdin (or FILE) to PATH
  rm PATH                   delete a file
  size PATH                 print file size in bytes
  exists|isfile|isdir|readable|writable PATH
                            print true or false
  cp SRC DST [--overwrite]  copy, possibly across namespaces
  mv SRC DST [--overwrite]  move, possibly across namespaces
  serve                     serve both namespaces over WebDAV
  mkdir|rmdir|ls|chmod|touch|stat PATH
                            not supported; fail with a fatal error

Configuration is read from the environment (UPLOADS_ROOT, TEMP_ROOT,
FILES_API_URL, FILES_SITE_ID, FILES_ACCESS_TOKEN, ...) and optionally
from the YAML file named by UPLOADSFS_CONFIG.
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// parseArgs parses flags and checks that exactly n positional arguments
// remain.
func parseArgs(name string, args []string, n int, setup func(*pflag.FlagSet)) ([]string, error) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	if setup != nil {
		setup(flagSet)
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, usageErrorf("%s: %v", name, err)
	}
	if flagSet.NArg() != n {
		return nil, usageErrorf("%s: expected %d argument(s), got %d", name, n, flagSet.NArg())
	}
	return flagSet.Args(), nil
}

func runCat(e *env, args []string) error {
	rest, err := parseArgs("cat", args, 1, nil)
	if err != nil {
		return err
	}
	data, err := e.fs.GetContents(e.ctx, rest[0])
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(data)
	return err
}

func runLines(e *env, args []string) error {
	rest, err := parseArgs("lines", args, 1, nil)
	if err != nil {
		return err
	}
	lines, err := e.fs.GetContentsArray(e.ctx, rest[0])
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintf(e.stdout, "%q\n", line)
	}
	return nil
}

func runPut(e *env, args []string) error {
	var from, mode string
	rest, err := parseArgs("put", args, 1, func(f *pflag.FlagSet) {
		f.StringVar(&from, "from", "", "read contents from this file instead of stdin")
		f.StringVar(&mode, "mode", "", "octal permission bits for local files")
	})
	if err != nil {
		return err
	}

	var perm os.FileMode
	if mode != "" {
		m, err := strconv.ParseUint(strings.TrimPrefix(mode, "0o"), 8, 32)
		if err != nil {
			return usageErrorf("put: invalid --mode %q", mode)
		}
		perm = os.FileMode(m)
	}

	var contents []byte
	if from != "" {
		contents, err = os.ReadFile(from)
	} else {
		contents, err = io.ReadAll(e.stdin)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	return e.fs.PutContents(e.ctx, rest[0], contents, perm)
}

func runRm(e *env, args []string) error {
	rest, err := parseArgs("rm", args, 1, nil)
	if err != nil {
		return err
	}
	return e.fs.Delete(e.ctx, rest[0])
}

func runSize(e *env, args []string) error {
	rest, err := parseArgs("size", args, 1, nil)
	if err != nil {
		return err
	}
	size, err := e.fs.Size(e.ctx, rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, size)
	return nil
}

func predicateCommand(name string, fn func(*storage.Filesystem, context.Context, string) (bool, error)) func(*env, []string) error {
	return func(e *env, args []string) error {
		rest, err := parseArgs(name, args, 1, nil)
		if err != nil {
			return err
		}
		ok, err := fn(e.fs, e.ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, ok)
		return nil
	}
}

func transferCommand(name string, fn func(*storage.Filesystem, context.Context, string, string, bool) error) func(*env, []string) error {
	return func(e *env, args []string) error {
		var overwrite bool
		rest, err := parseArgs(name, args, 2, func(f *pflag.FlagSet) {
			f.BoolVarP(&overwrite, "overwrite", "f", false, "replace an existing destination")
		})
		if err != nil {
			return err
		}
		return fn(e.fs, e.ctx, rest[0], rest[1], overwrite)
	}
}

func pathCommand(name string, fn func(e *env, path string) error) func(*env, []string) error {
	return func(e *env, args []string) error {
		rest, err := parseArgs(name, args, 1, nil)
		if err != nil {
			return err
		}
		return fn(e, rest[0])
	}
}
