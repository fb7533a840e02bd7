package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/uploadsfs/internal/storage"
	"github.com/fruitsalade/uploadsfs/internal/testutil"
)

const uploadsRoot = "/var/www/wp-content/uploads"

func setupEnv(t *testing.T) (*testutil.FilesAPI, string) {
	t.Helper()
	api := testutil.NewFilesAPI(t)
	tempDir := t.TempDir()

	t.Setenv("UPLOADSFS_CONFIG", "")
	t.Setenv("UPLOADS_BACKEND", "")
	t.Setenv("UPLOADS_ROOT", uploadsRoot)
	t.Setenv("TEMP_ROOT", tempDir)
	t.Setenv("FILES_API_URL", api.URL)
	t.Setenv("FILES_SITE_ID", "200508")
	t.Setenv("FILES_ACCESS_TOKEN", api.Token)
	t.Setenv("REMOTE_STRIP_PREFIX", "/var/www")
	t.Setenv("SPOOL_DIR", t.TempDir())
	t.Setenv("DAV_USER", "")
	t.Setenv("DAV_PASSWORD_HASH", "")
	t.Setenv("LOG_LEVEL", "error")
	return api, tempDir
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRun_LocalRoundTrip(t *testing.T) {
	_, tempDir := setupEnv(t)
	path := filepath.Join(tempDir, "notes.txt")

	_, err := runCmd(t, "one\ntwo\n", "put", "--mode", "0600", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err := runCmd(t, "", "cat", path)
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", out)

	out, err = runCmd(t, "", "lines", path)
	require.NoError(t, err)
	require.Equal(t, "\"one\\n\"\n\"two\\n\"\n", out)

	out, err = runCmd(t, "", "size", path)
	require.NoError(t, err)
	require.Equal(t, "8\n", out)

	out, err = runCmd(t, "", "isfile", path)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)

	out, err = runCmd(t, "", "isdir", tempDir)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)

	_, err = runCmd(t, "", "rm", path)
	require.NoError(t, err)

	out, err = runCmd(t, "", "exists", path)
	require.NoError(t, err)
	require.Equal(t, "false\n", out)
}

func TestRun_CopyAndMoveToUploads(t *testing.T) {
	api, tempDir := setupEnv(t)
	src := filepath.Join(tempDir, "image.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0644))

	_, err := runCmd(t, "", "cp", src, uploadsRoot+"/2020/01/image.jpg")
	require.NoError(t, err)
	stored, ok := api.Get("/wp-content/uploads/2020/01/image.jpg")
	require.True(t, ok)
	require.Equal(t, "jpeg", string(stored))

	_, err = runCmd(t, "", "cp", src, uploadsRoot+"/2020/01/image.jpg")
	require.ErrorIs(t, err, storage.ErrDestinationExists)

	_, err = runCmd(t, "", "mv", "--overwrite", src, uploadsRoot+"/2020/01/image.jpg")
	require.NoError(t, err)
	require.NoFileExists(t, src)

	out, err := runCmd(t, "", "exists", uploadsRoot+"/2020/01/image.jpg")
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestRun_FatalErrors(t *testing.T) {
	setupEnv(t)

	_, err := runCmd(t, "", "cat", "/etc/passwd")
	require.True(t, storage.IsFatal(err))
	require.ErrorIs(t, err, storage.ErrPathNotSupported)

	for _, cmd := range []string{"mkdir", "rmdir", "ls", "chmod", "touch", "stat"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := runCmd(t, "", cmd, uploadsRoot+"/dir")
			require.True(t, storage.IsFatal(err))
			require.ErrorIs(t, err, storage.ErrNotImplemented)
		})
	}
}

func TestRun_Usage(t *testing.T) {
	_, err := runCmd(t, "")
	require.ErrorIs(t, err, errUsage)

	_, err = runCmd(t, "", "frobnicate")
	require.ErrorIs(t, err, errUsage)

	out, err := runCmd(t, "", "help")
	require.NoError(t, err)
	require.Contains(t, out, "Usage:")

	setupEnv(t)
	_, err = runCmd(t, "", "cat")
	require.ErrorIs(t, err, errUsage)

	_, err = runCmd(t, "", "put", "--mode", "rwx", uploadsRoot+"/a")
	require.ErrorIs(t, err, errUsage)
}

func TestRun_ConfigError(t *testing.T) {
	setupEnv(t)
	t.Setenv("UPLOADS_ROOT", "")

	_, err := runCmd(t, "", "cat", uploadsRoot+"/a.txt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "configuration error")
}
