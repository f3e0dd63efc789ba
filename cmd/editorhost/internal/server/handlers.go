package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/filekind"
)

type healthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Workers   []string `json:"workers"`
}

type fileStatus struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	Exists bool   `json:"exists"`
}

type debugFilesResponse struct {
	Root   string       `json:"root"`
	Prefix string       `json:"prefix"`
	Files  []fileStatus `json:"files"`
}

type errorResponse struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, p string) {
	writeJSON(w, status, errorResponse{Error: msg, Path: p})
}

// libraryURL joins the library prefix and a relative entry into a URL path.
func (s *Server) libraryURL(rel string) string {
	return path.Join("/", s.cfg.LibraryPrefix, rel)
}

// handleHealth reports liveness and the worker scripts the editor will load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	workers := []string{}
	for _, rel := range s.cfg.Required {
		if strings.Contains(path.Base(rel), "worker") {
			workers = append(workers, s.libraryURL(rel))
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Workers:   workers,
	})
}

// handleDebugFiles lists each required library entry and whether it is on disk.
func (s *Server) handleDebugFiles(w http.ResponseWriter, r *http.Request) {
	files := make([]fileStatus, 0, len(s.cfg.Required))
	for _, rel := range s.cfg.Required {
		urlPath := s.libraryURL(rel)
		_, err := os.Stat(filepath.Join(s.cfg.Root, filepath.FromSlash(urlPath)))
		files = append(files, fileStatus{Path: rel, URL: urlPath, Exists: err == nil})
	}
	writeJSON(w, http.StatusOK, debugFilesResponse{
		Root:   s.cfg.Root,
		Prefix: s.cfg.LibraryPrefix,
		Files:  files,
	})
}

// errBadPath marks request paths that could escape the root.
var errBadPath = errors.New("invalid path")

// cleanPath validates a decoded URL path and returns its cleaned form.
// Any ".." segment or NUL byte is rejected outright rather than cleaned away.
func cleanPath(p string) (string, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return "", errBadPath
	}
	segments := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
	for _, seg := range segments {
		if seg == ".." {
			return "", errBadPath
		}
	}
	return path.Clean("/" + p), nil
}

// handleStatic resolves a request against the static root.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	urlPath, err := cleanPath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	fsPath := filepath.Join(s.cfg.Root, filepath.FromSlash(urlPath))
	if rel, err := filepath.Rel(s.cfg.Root, fsPath); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		writeError(w, http.StatusBadRequest, errBadPath.Error(), "")
		return
	}

	info, err := os.Stat(fsPath)
	if err == nil && info.IsDir() {
		fsPath = filepath.Join(fsPath, "index.html")
		info, err = os.Stat(fsPath)
	}
	if err == nil && info.Mode().IsRegular() {
		s.serveFile(w, r, fsPath, info)
		return
	}

	if filekind.LooksLikeFile(urlPath) {
		writeError(w, http.StatusNotFound, "not found", urlPath)
		return
	}

	if acceptsHTML(r) {
		doc := filepath.Join(s.cfg.Root, s.cfg.DefaultDocument)
		if info, err := os.Stat(doc); err == nil && info.Mode().IsRegular() {
			s.serveFile(w, r, doc, info)
			return
		}
		s.logger.Warn("default document missing", "path", doc)
	}

	writeError(w, http.StatusNotFound, "not found", urlPath)
}

// acceptsHTML reports whether a navigation fallback is appropriate.
func acceptsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

func contentType(name string) string {
	ext := filekind.Ext(name)
	if ct, ok := filekind.ContentTypeOverrides[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// serveFile writes one file byte-for-byte with type and cache headers.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, fsPath string, info os.FileInfo) {
	f, err := os.Open(fsPath)
	if err != nil {
		s.logger.Warn("failed to open file", "path", fsPath, "error", err)
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
		return
	}
	defer func() { _ = f.Close() }()

	h := w.Header()
	if ct := contentType(fsPath); ct != "" {
		h.Set("Content-Type", ct)
	}
	switch {
	case filekind.Ext(fsPath) == ".html":
		h.Set("Cache-Control", "no-cache")
	case filekind.IsImmutable(fsPath):
		h.Set("Cache-Control", "public, max-age=31536000")
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
