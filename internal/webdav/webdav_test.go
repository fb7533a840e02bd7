package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/uploadsfs/internal/apiclient"
	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/storage"
	"github.com/fruitsalade/uploadsfs/internal/storage/local"
	"github.com/fruitsalade/uploadsfs/internal/storage/remote"
	"github.com/fruitsalade/uploadsfs/internal/testutil"
)

const uploadsRoot = "/var/www/wp-content/uploads"

type testEnv struct {
	fs      *storage.Filesystem
	api     *testutil.FilesAPI
	tempDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := testutil.NewFilesAPI(t)
	client := apiclient.New(apiclient.Config{BaseURL: api.URL, SiteID: api.SiteID, AccessToken: api.Token})
	uploads := remote.New(client, remote.Config{StripPrefix: "/var/www", SpoolDir: t.TempDir()})

	tempDir := t.TempDir()
	temp, err := local.New(local.Config{RootPath: tempDir, CreateDirs: true})
	require.NoError(t, err)

	fs := storage.NewFilesystem(storage.Roots{Uploads: uploadsRoot, Temp: tempDir}, uploads, temp)
	return &testEnv{fs: fs, api: api, tempDir: tempDir}
}

func newTestServer(t *testing.T, env *testEnv, cfg HandlerConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(env.fs, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestResolve(t *testing.T) {
	d := NewFS(nil, []Mount{{Name: "uploads", Root: uploadsRoot + "/"}, {Name: "tmp", Root: "/tmp"}})

	got, ok := d.resolve("/uploads/2020/a.jpg")
	require.True(t, ok)
	require.Equal(t, uploadsRoot+"/2020/a.jpg", got)

	got, ok = d.resolve("/tmp/x")
	require.True(t, ok)
	require.Equal(t, "/tmp/x", got)

	_, ok = d.resolve("/uploadsx/a.jpg")
	require.False(t, ok)
	_, ok = d.resolve("/etc/passwd")
	require.False(t, ok)

	require.NotNil(t, d.virtualInfo("/"))
	require.NotNil(t, d.virtualInfo("/uploads"))
	require.Nil(t, d.virtualInfo("/uploads/a.jpg"))
}

func TestRootReaddir(t *testing.T) {
	env := newTestEnv(t)
	d := NewFS(env.fs, DefaultMounts(env.fs.Roots()))

	f, err := d.OpenFile(context.Background(), "/", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	first, err := f.Readdir(1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "tmp", first[0].Name())

	second, err := f.Readdir(1)
	require.NoError(t, err)
	require.Equal(t, "uploads", second[0].Name())
	require.True(t, second[0].IsDir())

	_, err = f.Readdir(1)
	require.ErrorIs(t, err, io.EOF)

	_, err = d.OpenFile(context.Background(), "/", os.O_RDWR|os.O_CREATE, 0644)
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestPutGetMoveDelete(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{})

	resp, _ := do(t, http.MethodPut, srv.URL+"/webdav/tmp/a.txt", "hello\n", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.FileExists(t, filepath.Join(env.tempDir, "a.txt"))

	resp, body := do(t, http.MethodGet, srv.URL+"/webdav/tmp/a.txt", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello\n", body)

	resp, _ = do(t, "MOVE", srv.URL+"/webdav/tmp/a.txt", "", map[string]string{
		"Destination": srv.URL + "/webdav/uploads/2020/01/a.txt",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoFileExists(t, filepath.Join(env.tempDir, "a.txt"))

	stored, ok := env.api.Get("/wp-content/uploads/2020/01/a.txt")
	require.True(t, ok)
	require.Equal(t, "hello\n", string(stored))

	resp, body = do(t, http.MethodGet, srv.URL+"/webdav/uploads/2020/01/a.txt", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello\n", body)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/webdav/uploads/2020/01/a.txt", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok = env.api.Get("/wp-content/uploads/2020/01/a.txt")
	require.False(t, ok)

	resp, _ = do(t, http.MethodGet, srv.URL+"/webdav/uploads/2020/01/a.txt", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.Empty(t, env.fs.Errors())
}

func TestOutsideMounts(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{})

	resp, _ := do(t, http.MethodGet, srv.URL+"/webdav/etc/passwd", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Empty(t, env.fs.Errors(), "unmounted names never reach the router")
}

func TestMkcolUnsupported(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{})

	resp, _ := do(t, "MKCOL", srv.URL+"/webdav/tmp/newdir", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	errs := env.fs.Errors()
	require.Len(t, errs, 1)
	require.True(t, storage.IsFatal(errs[0]))
	require.ErrorIs(t, errs[0], storage.ErrNotImplemented)
}

func TestPropfindRoot(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{})

	resp, body := do(t, "PROPFIND", srv.URL+"/webdav/", "", map[string]string{"Depth": "1"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	require.Contains(t, body, "/webdav/uploads")
	require.Contains(t, body, "/webdav/tmp")
}

func TestPropfindBelowMounts_EmptyListing(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{})
	require.NoError(t, os.Mkdir(filepath.Join(env.tempDir, "sub"), 0755))

	for i := 0; i < 50; i++ {
		resp, body := do(t, "PROPFIND", srv.URL+"/webdav/uploads/", "", map[string]string{"Depth": "1"})
		require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
		require.Contains(t, body, "/webdav/uploads/")
	}

	resp, _ := do(t, "PROPFIND", srv.URL+"/webdav/tmp/sub/", "", map[string]string{"Depth": "1"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)

	require.Empty(t, env.fs.Errors(), "listing a directory is not a filesystem error")
}

func TestPropfindBelowMounts_RecordedStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.Replace(zap.New(core))
	t.Cleanup(func() { logging.Replace(nil) })

	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{})

	resp, _ := do(t, "PROPFIND", srv.URL+"/webdav/uploads/", "", map[string]string{"Depth": "1"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)

	require.Zero(t, logs.FilterMessage("webdav request failed").Len())
	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	require.EqualValues(t, http.StatusMultiStatus, completed[0].ContextMap()["status"])
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	env := newTestEnv(t)
	srv := newTestServer(t, env, HandlerConfig{User: "admin", PasswordHash: string(hash)})
	url := srv.URL + "/webdav/"

	resp, _ := do(t, "PROPFIND", url, "", map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"wrong password", "admin", "nope", http.StatusUnauthorized},
		{"wrong user", "root", "hunter2", http.StatusUnauthorized},
		{"valid", "admin", "hunter2", http.StatusMultiStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest("PROPFIND", url, nil)
			require.NoError(t, err)
			req.Header.Set("Depth", "0")
			req.SetBasicAuth(tt.user, tt.pass)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
