// Package testutil provides an in-memory files API server for tests.
//
// This package is intended for use in tests only.
//
//	api := testutil.NewFilesAPI(t)
//	client := apiclient.New(apiclient.Config{BaseURL: api.URL, SiteID: api.SiteID, AccessToken: api.Token})
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// FilesAPI emulates the remote files API over httptest.
type FilesAPI struct {
	URL    string
	SiteID int
	Token  string

	mu    sync.Mutex
	files map[string][]byte
	calls []string

	// QuotaReached makes uploads answer 204.
	QuotaReached bool
	// Rename, if set, maps a requested upload path to the stored one.
	Rename func(path string) string
	// FailDelete makes deletes answer 500.
	FailDelete bool
}

// NewFilesAPI starts a server that is closed when the test ends.
func NewFilesAPI(t *testing.T) *FilesAPI {
	t.Helper()
	api := &FilesAPI{
		SiteID: 200508,
		Token:  "test-token",
		files:  make(map[string][]byte),
	}
	ts := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(ts.Close)
	api.URL = ts.URL
	return api
}

// Put stores a file directly.
func (a *FilesAPI) Put(path string, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[path] = append([]byte(nil), data...)
}

// Get returns a stored file.
func (a *FilesAPI) Get(path string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.files[path]
	return data, ok
}

// Calls returns "METHOD path" for every request received.
func (a *FilesAPI) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *FilesAPI) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, r.Method+" "+r.URL.Path)

	if r.Header.Get("X-Client-Site-ID") != strconv.Itoa(a.SiteID) || r.Header.Get("X-Access-Token") != a.Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	switch r.Method {
	case http.MethodGet:
		data, ok := a.files[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Action") == "file_exists" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(data)

	case http.MethodDelete:
		if a.FailDelete {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if _, ok := a.files[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(a.files, path)
		w.WriteHeader(http.StatusOK)

	case http.MethodPut, http.MethodPost:
		if a.QuotaReached {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stored := path
		if a.Rename != nil {
			stored = a.Rename(path)
		}
		a.files[stored] = data
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"filename": stored})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
