// Package httpx serves a content root over HTTP for local development.
package httpx

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

var servedMethods = []string{http.MethodGet, http.MethodHead}

var indexFiles = []string{"index.html", "index.htm"}

// Handler serves files from root. Every response carries the fixed CORS and
// no-cache headers, and every request is logged as one access line.
type Handler struct {
	root   http.FileSystem
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler returns a handler serving root and logging to logger.
func NewHandler(root http.FileSystem, logger *slog.Logger) *Handler {
	return &Handler{root: root, logger: logger, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := &responseWriter{ResponseWriter: w}
	h.serve(rw, r)
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	h.logRequest(r, rw.status)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	if !lo.Contains(servedMethods, r.Method) {
		h.fail(w, r, http.StatusNotImplemented, fmt.Sprintf("Unsupported method (%q)", r.Method))
		return
	}

	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	name := path.Clean(upath)

	f, err := h.root.Open(name)
	if err != nil {
		h.failErr(w, r, err)
		return
	}
	defer f.Close()
	d, err := f.Stat()
	if err != nil {
		h.failErr(w, r, err)
		return
	}

	if d.IsDir() {
		if !strings.HasSuffix(upath, "/") {
			target := r.URL.EscapedPath() + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		for _, index := range indexFiles {
			ff, err := h.root.Open(path.Join(name, index))
			if err != nil {
				continue
			}
			dd, err := ff.Stat()
			if err != nil || dd.IsDir() {
				ff.Close()
				continue
			}
			defer ff.Close()
			h.serveContent(w, r, dd, ff)
			return
		}
		h.listDirectory(w, r, upath, f)
		return
	}

	if strings.HasSuffix(upath, "/") {
		h.fail(w, r, http.StatusNotFound, "File not found")
		return
	}
	h.serveContent(w, r, d, f)
}

func (h *Handler) serveContent(w http.ResponseWriter, r *http.Request, d fs.FileInfo, f http.File) {
	w.Header().Set("Content-Type", contentType(d.Name()))
	http.ServeContent(w, r, d.Name(), d.ModTime(), f)
}

// contentType guesses from the extension only, never from the bytes.
func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) listDirectory(w http.ResponseWriter, r *http.Request, upath string, dir http.File) {
	entries, err := dir.Readdir(-1)
	if err != nil {
		h.fail(w, r, http.StatusForbidden, "No permission to list directory")
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	title := "Directory listing for " + html.EscapeString(upath)
	var b strings.Builder
	b.WriteString("<!DOCTYPE HTML>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n</head>\n<body>\n<h1>%s</h1>\n<hr>\n<ul>\n", title, title)
	for _, e := range entries {
		display, link := e.Name(), escapeName(e.Name())
		switch {
		case e.IsDir():
			display += "/"
			link += "/"
		case e.Mode()&fs.ModeSymlink != 0:
			display += "@"
		}
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", html.EscapeString(link), html.EscapeString(display))
	}
	b.WriteString("</ul>\n<hr>\n</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", fmt.Sprint(b.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(b.String()))
	}
}

// escapeName escapes one path segment for use as a relative href. A colon is
// escaped too, so "x:y" cannot be read as a URL scheme.
func escapeName(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), ":", "%3A")
}

func (h *Handler) failErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		h.fail(w, r, http.StatusNotFound, "File not found")
	case errors.Is(err, fs.ErrPermission):
		h.fail(w, r, http.StatusForbidden, "Forbidden")
	default:
		h.fail(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

const errorPage = `<!DOCTYPE HTML>
<html lang="en">
    <head>
        <meta charset="utf-8">
        <title>Error response</title>
    </head>
    <body>
        <h1>Error response</h1>
        <p>Error code: %d</p>
        <p>Message: %s.</p>
        <p>Error code explanation: %d - %s.</p>
    </body>
</html>
`

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, code int, message string) {
	h.logger.Info(fmt.Sprintf("%s - - [%s] code %d, message %s", clientHost(r), h.now().Format(accessTimeFormat), code, message))

	body := fmt.Sprintf(errorPage, code, html.EscapeString(message), code, http.StatusText(code))
	hdr := w.Header()
	hdr.Del("Content-Encoding")
	hdr.Del("Last-Modified")
	hdr.Set("Content-Type", "text/html;charset=utf-8")
	hdr.Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(body))
	}
}

const accessTimeFormat = "02/Jan/2006 15:04:05"

func (h *Handler) logRequest(r *http.Request, status int) {
	h.logger.Info(fmt.Sprintf("%s - - [%s] \"%s %s %s\" %d -",
		clientHost(r), h.now().Format(accessTimeFormat), r.Method, r.RequestURI, r.Proto, status))
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
