// Package content implements the ResponseSource external collaborator:
// static-file lookup under a configured document root, backed by
// memory-mapped read-only regions.
package content

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/s00inx/reactorweb/internal/httpproto"
)

// suffixContentType is the fixed suffix → MIME type table; an unknown
// suffix maps to text/plain.
var suffixContentType = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
}

func contentTypeFor(path string) string {
	if ct, ok := suffixContentType[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "text/plain"
}

// cannedErrorPage is the fixed code→path table for substituted error
// bodies; a missing file for a code falls back to an inline HTML message.
var cannedErrorPage = map[httpproto.StatusCode]string{
	httpproto.StatusBadRequest: "400.html",
	httpproto.StatusForbidden:  "403.html",
	httpproto.StatusNotFound:   "404.html",
}

var inlineErrorBody = map[httpproto.StatusCode]string{
	httpproto.StatusBadRequest: "<html><body><h1>400 Bad Request</h1></body></html>",
	httpproto.StatusForbidden:  "<html><body><h1>403 Forbidden</h1></body></html>",
	httpproto.StatusNotFound:   "<html><body><h1>404 Not Found</h1></body></html>",
}

// Resolved is what a ResponseSource hands back to the core: a status, a
// content type, a body descriptor, and a release function the core must
// call when the response is fully sent or the connection closes, whichever
// comes first.
type Resolved struct {
	Status      httpproto.StatusCode
	ContentType string
	Body        httpproto.BodyDescriptor
	Release     func()
}

// StaticFileSource resolves request paths against a document root using
// memory-mapped reads, following symlinks and rejecting traversal outside
// the root after canonicalization.
type StaticFileSource struct {
	docRoot    string
	errorPages string // directory holding cannedErrorPage files; may equal docRoot
}

// New returns a StaticFileSource rooted at docRoot. errorPagesDir holds the
// canned error bodies; pass "" to use docRoot itself.
func New(docRoot, errorPagesDir string) *StaticFileSource {
	if errorPagesDir == "" {
		errorPagesDir = docRoot
	}
	return &StaticFileSource{docRoot: docRoot, errorPages: errorPagesDir}
}

// Resolve implements status selection and error-body substitution.
// overrideCode, when non-zero, short-circuits file lookup entirely (used
// for parse failures).
func (s *StaticFileSource) Resolve(reqPath []byte, overrideCode httpproto.StatusCode) Resolved {
	if overrideCode != 0 {
		return s.errorResponse(overrideCode)
	}

	cleanPath, ok := s.canonicalize(string(reqPath))
	if !ok {
		return s.errorResponse(httpproto.StatusForbidden)
	}

	fi, err := os.Stat(cleanPath) // symlinks followed
	if err != nil {
		if os.IsPermission(err) {
			return s.errorResponse(httpproto.StatusForbidden)
		}
		return s.errorResponse(httpproto.StatusNotFound)
	}
	if fi.IsDir() || !fi.Mode().IsRegular() {
		return s.errorResponse(httpproto.StatusNotFound)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		if os.IsPermission(err) {
			return s.errorResponse(httpproto.StatusForbidden)
		}
		return s.errorResponse(httpproto.StatusNotFound)
	}
	defer f.Close()

	size := fi.Size()
	if size == 0 {
		return Resolved{
			Status:      httpproto.StatusOK,
			ContentType: contentTypeFor(cleanPath),
			Body:        httpproto.BodyDescriptor{Inline: []byte{}},
			Release:     func() {},
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// A resolvable-but-unmappable file is treated as not found;
		// 403 stays reserved for permission errors.
		return s.errorResponse(httpproto.StatusNotFound)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		_ = unix.Munmap(data)
	}

	return Resolved{
		Status:      httpproto.StatusOK,
		ContentType: contentTypeFor(cleanPath),
		Body:        httpproto.BodyDescriptor{External: data},
		Release:     release,
	}
}

// canonicalize joins reqPath onto the document root and rejects any path
// containing a ".." segment, as well as any result that escapes the root;
// Resolve answers a rejected path with 403.
func (s *StaticFileSource) canonicalize(reqPath string) (string, bool) {
	if reqPath == "" || reqPath == "/" {
		reqPath = "/index.html"
	}
	for _, seg := range strings.Split(reqPath, "/") {
		if seg == ".." {
			return "", false
		}
	}
	joined := filepath.Join(s.docRoot, filepath.Clean("/"+reqPath))
	root, err := filepath.Abs(s.docRoot)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", false
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

func (s *StaticFileSource) errorResponse(code httpproto.StatusCode) Resolved {
	if page, ok := cannedErrorPage[code]; ok {
		full := filepath.Join(s.errorPages, page)
		if data, err := os.ReadFile(full); err == nil {
			return Resolved{
				Status:      code,
				ContentType: "text/html",
				Body:        httpproto.BodyDescriptor{Inline: data},
				Release:     func() {},
			}
		}
	}
	return Resolved{
		Status:      code,
		ContentType: "text/html",
		Body:        httpproto.BodyDescriptor{Inline: []byte(inlineErrorBody[code])},
		Release:     func() {},
	}
}
