package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const uploadsRoot = "/var/www/wp-content/uploads"

// fakeBucket serves a single path-style bucket in memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/test-bucket/")
	switch r.Method {
	case http.MethodHead:
		data, ok := b.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := b.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(data)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		b.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestTransport(t *testing.T, keyPrefix string) (*Transport, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	tr, err := New(context.Background(), Config{
		Endpoint:    srv.URL,
		Bucket:      "test-bucket",
		AccessKey:   "access",
		SecretKey:   "secret",
		Region:      "us-east-1",
		KeyPrefix:   keyPrefix,
		StripPrefix: uploadsRoot,
	})
	require.NoError(t, err)
	return tr, bucket
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	tr := &Transport{stripPrefix: uploadsRoot}
	require.Equal(t, "2020/01/a.jpg", tr.key(uploadsRoot+"/2020/01/a.jpg"))

	tr.keyPrefix = "site-1"
	require.Equal(t, "site-1/2020/01/a.jpg", tr.key(uploadsRoot+"/2020/01/a.jpg"))
}

func TestPutGetDelete(t *testing.T) {
	tr, bucket := newTestTransport(t, "site-1")
	ctx := context.Background()
	path := uploadsRoot + "/2020/01/notes.txt"

	require.NoError(t, tr.PutContents(ctx, path, []byte("a\nb\n"), 0644))
	require.Equal(t, "a\nb\n", string(bucket.objects["site-1/2020/01/notes.txt"]))
	require.True(t, strings.HasPrefix(bucket.types["site-1/2020/01/notes.txt"], "text/plain"))

	data, err := tr.GetContents(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(data))

	got, err := tr.GetContentsArray(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []string{"a\n", "b\n"}, got)

	size, err := tr.Size(ctx, path)
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	exists, err := tr.Exists(ctx, path)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, tr.Delete(ctx, path))

	exists, err = tr.Exists(ctx, path)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMissingObject(t *testing.T) {
	tr, _ := newTestTransport(t, "")
	ctx := context.Background()
	path := uploadsRoot + "/missing.jpg"

	_, err := tr.GetContents(ctx, path)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = tr.Size(ctx, path)
	require.ErrorIs(t, err, os.ErrNotExist)

	for _, fn := range []func(context.Context, string) (bool, error){tr.Exists, tr.IsFile, tr.IsReadable} {
		ok, err := fn(ctx, path)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestFixedPredicates(t *testing.T) {
	tr, _ := newTestTransport(t, "")
	ctx := context.Background()

	isDir, err := tr.IsDir(ctx, uploadsRoot)
	require.NoError(t, err)
	require.False(t, isDir)

	writable, err := tr.IsWritable(ctx, uploadsRoot+"/x")
	require.NoError(t, err)
	require.True(t, writable)

	require.Equal(t, "s3", tr.Type())
}
