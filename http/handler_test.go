package httpx

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"static-devserver/contentroot"
	"static-devserver/logging"
)

const indexHTML = "<!doctype html><title>dev</title><p>hello</p>\n"

func newTestHandler(t *testing.T) (*Handler, *bytes.Buffer, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte(indexHTML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("export const x = 1;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.bin123"), []byte{0, 1, 2, 3}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "index.html"), []byte("docs index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty", "B.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "secret.txt"), []byte("top secret"), 0o644))

	bfs, err := contentroot.New(root)
	require.NoError(t, err)

	var logs bytes.Buffer
	h := NewHandler(contentroot.HTTP(bfs), logging.New(logging.Options{File: &logs}))
	h.now = func() time.Time { return time.Date(2026, time.October, 18, 9, 5, 7, 0, time.UTC) }
	return h, &logs, base
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func assertFixedHeaders(t *testing.T, hdr http.Header) {
	t.Helper()
	assert.Equal(t, "*", hdr.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", hdr.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", hdr.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "no-store, no-cache, must-revalidate", hdr.Get("Cache-Control"))
}

func TestServeIndexHTML(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/index.html")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexHTML, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assertFixedHeaders(t, rec.Header())
}

func TestServeBytesIdentical(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/data.bin123")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{0, 1, 2, 3}, rec.Body.Bytes())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestContentTypeFromExtension(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/app.js")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
}

func TestHead(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodHead, "/index.html")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assertFixedHeaders(t, rec.Header())
}

func TestNotFound(t *testing.T) {
	h, logs, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/nope.html")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertFixedHeaders(t, rec.Header())
	assert.Contains(t, rec.Body.String(), "Error code: 404")
	assert.Contains(t, logs.String(), " - INFO - 192.0.2.1 - - [18/Oct/2026 09:05:07] code 404, message File not found\n")
	assert.Contains(t, logs.String(), ` - INFO - 192.0.2.1 - - [18/Oct/2026 09:05:07] "GET /nope.html HTTP/1.1" 404 -`+"\n")
}

func TestFileWithTrailingSlashIsNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/app.js/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDotDotStaysInRoot(t *testing.T) {
	h, _, _ := newTestHandler(t)

	for _, target := range []string{"/../secret.txt", "/docs/../../secret.txt", "/%2e%2e/secret.txt"} {
		rec := do(h, http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "top secret", target)
	}
}

func TestSymlinkOutsideRoot(t *testing.T) {
	h, _, base := newTestHandler(t)
	if err := os.Symlink(filepath.Join(base, "secret.txt"), filepath.Join(base, "site", "leak.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	rec := do(h, http.MethodGet, "/leak.txt")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "top secret")
	assertFixedHeaders(t, rec.Header())
}

func TestDirectoryRedirect(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/docs?x=1")

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/docs/?x=1", rec.Header().Get("Location"))
	assertFixedHeaders(t, rec.Header())
}

func TestDirectoryIndex(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/docs/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "docs index", rec.Body.String())

	rec = do(h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexHTML, rec.Body.String())
}

func TestDirectoryListing(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(h, http.MethodGet, "/empty/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Directory listing for /empty/")
	a := strings.Index(body, `href="a.txt"`)
	b := strings.Index(body, `href="B.txt"`)
	require.True(t, a >= 0 && b >= 0, body)
	assert.Less(t, a, b)
	assertFixedHeaders(t, rec.Header())
}

func TestUnsupportedMethods(t *testing.T) {
	h, _, _ := newTestHandler(t)

	for _, m := range []string{http.MethodPost, http.MethodOptions, http.MethodPut, http.MethodDelete} {
		rec := do(h, m, "/index.html")
		assert.Equal(t, http.StatusNotImplemented, rec.Code, m)
		assertFixedHeaders(t, rec.Header())
	}
}

func TestRangeNotSatisfiableKeepsHeaders(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	req.Header.Set("Range", "bytes=1000-2000")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assertFixedHeaders(t, rec.Header())
}

func TestAccessLogLine(t *testing.T) {
	h, logs, _ := newTestHandler(t)

	do(h, http.MethodGet, "/index.html?v=2")

	assert.Regexp(t,
		`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3} - INFO - 192\.0\.2\.1 - - \[18/Oct/2026 09:05:07\] "GET /index\.html\?v=2 HTTP/1\.1" 200 -\n$`,
		logs.String())
}

func TestOverRealServer(t *testing.T) {
	h, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/index.html")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, indexHTML, string(body))
		assertFixedHeaders(t, resp.Header)
	}
}

func TestDirectoryRedirectKeepsEscapes(t *testing.T) {
	h, _, base := newTestHandler(t)
	for _, name := range []string{"a?b", "sp ace"} {
		if err := os.Mkdir(filepath.Join(base, "site", name), 0o755); err != nil {
			t.Skipf("cannot create %q: %v", name, err)
		}
	}

	rec := do(h, http.MethodGet, "/a%3Fb")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/a%3Fb/", rec.Header().Get("Location"))

	rec = do(h, http.MethodGet, "/sp%20ace?x=1")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/sp%20ace/?x=1", rec.Header().Get("Location"))
}

func TestDirectoryListingEscapesNames(t *testing.T) {
	h, _, base := newTestHandler(t)
	if err := os.WriteFile(filepath.Join(base, "site", "empty", "x:y.txt"), []byte("c"), 0o644); err != nil {
		t.Skipf("cannot create x:y.txt: %v", err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(base, "site", "empty", "a b.txt"), []byte("d"), 0o644))

	rec := do(h, http.MethodGet, "/empty/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="x%3Ay.txt"`)
	assert.Contains(t, rec.Body.String(), `href="a%20b.txt"`)
	assert.NotContains(t, rec.Body.String(), `href="x:y.txt"`)
}
