package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/editorhost/internal/log"
)

const indexHTML = `<!doctype html><script type="importmap">{"imports":{"modern-monaco":"/modern-monaco/index.mjs"}}</script>`

var required = []string{"index.mjs", "lsp/typescript/worker.mjs", "onig.wasm"}

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":                              indexHTML,
		"app.mjs":                                 `import "modern-monaco";`,
		"styles.css":                              "body{}",
		"modern-monaco/index.mjs":                 "export {};",
		"modern-monaco/lsp/typescript/worker.mjs": "self.onmessage=()=>{};",
		"modern-monaco/onig.wasm":                 "\x00asm\x01\x00\x00\x00",
		"docs/index.html":                         "<p>docs</p>",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := newTestRoot(t)
	srv, err := New(Config{
		Root:          root,
		LibraryPrefix: "/modern-monaco",
		Required:      required,
		CORS:          true,
		Logger:        log.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, root
}

func do(t *testing.T, srv http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() should fail without a root")
	}
}

func TestContentTypes(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/modern-monaco/index.mjs", "application/javascript"},
		{"/modern-monaco/lsp/typescript/worker.mjs", "application/javascript"},
		{"/modern-monaco/onig.wasm", "application/wasm"},
		{"/app.mjs", "application/javascript"},
		{"/index.html", "text/html; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.want {
				t.Errorf("Content-Type = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServesBytesUnchanged(t *testing.T) {
	srv, root := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/modern-monaco/onig.wasm", "")
	want, err := os.ReadFile(filepath.Join(root, "modern-monaco", "onig.wasm"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != string(want) {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestCacheHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/modern-monaco/index.mjs", "public, max-age=31536000"},
		{"/modern-monaco/onig.wasm", "public, max-age=31536000"},
		{"/styles.css", "public, max-age=31536000"},
		{"/", "no-cache"},
		{"/editor", "no-cache"},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodGet, tt.path, "text/html")
		if got := rec.Header().Get("Cache-Control"); got != tt.want {
			t.Errorf("%s: Cache-Control = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsolationHeadersOnEveryResponse(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, target := range []string{"/health", "/index.html", "/nonexistent.mjs", "/../secret", "/debug/files"} {
		rec := do(t, srv, http.MethodGet, target, "")
		if got := rec.Header().Get("Cross-Origin-Opener-Policy"); got != "same-origin" {
			t.Errorf("%s: COOP = %q", target, got)
		}
		if got := rec.Header().Get("Cross-Origin-Embedder-Policy"); got != "require-corp" {
			t.Errorf("%s: COEP = %q", target, got)
		}
	}
}

func TestMissingDottedPathIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, target := range []string{"/nonexistent.mjs", "/modern-monaco/missing.wasm", "/favicon.ico", "/data/config.json",
		"/v1.2/app", "/missing.dir/page",
	} {
		rec := do(t, srv, http.MethodGet, target, "text/html,*/*")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
		}
		if rec.Body.String() == indexHTML {
			t.Errorf("%s: must never fall back to the default document", target)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%s: 404 body is not JSON: %v", target, err)
		}
	}
}

func TestNavigationFallback(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		accept string
		want   int
	}{
		{"root with html accept", "/", "text/html", http.StatusOK},
		{"dotless path html", "/projects/demo", "text/html,application/xhtml+xml", http.StatusOK},
		{"dotless path wildcard", "/settings", "*/*", http.StatusOK},
		{"dotless path no accept", "/settings", "", http.StatusOK},
		{"dotless path json only", "/api/thing", "application/json", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path, tt.accept)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && rec.Body.String() != indexHTML {
				t.Errorf("body = %q, want default document", rec.Body.String())
			}
		})
	}
}

func TestDirectoryIndex(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/docs/", "text/html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "<p>docs</p>" {
		t.Errorf("body = %q, want docs index", rec.Body.String())
	}
}

func TestTraversalRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, target := range []string{"/../etc/passwd", "/modern-monaco/../../secret", "/a/%2e%2e/b", "/x%00.mjs"} {
		rec := do(t, srv, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if _, err := time.Parse(time.RFC3339Nano, body.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", body.Timestamp, err)
	}
	if diff := cmp.Diff([]string{"/modern-monaco/lsp/typescript/worker.mjs"}, body.Workers); diff != "" {
		t.Errorf("workers mismatch (-want +got):\n%s", diff)
	}
}

func TestDebugFiles(t *testing.T) {
	srv, root := newTestServer(t)
	if err := os.Remove(filepath.Join(root, "modern-monaco", "onig.wasm")); err != nil {
		t.Fatal(err)
	}

	rec := do(t, srv, http.MethodGet, "/debug/files", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body debugFilesResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	want := []fileStatus{
		{Path: "index.mjs", URL: "/modern-monaco/index.mjs", Exists: true},
		{Path: "lsp/typescript/worker.mjs", URL: "/modern-monaco/lsp/typescript/worker.mjs", Exists: true},
		{Path: "onig.wasm", URL: "/modern-monaco/onig.wasm", Exists: false},
	}
	if diff := cmp.Diff(want, body.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodOptions, "/modern-monaco/index.mjs", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	rec = do(t, srv, http.MethodGet, "/app.mjs", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("GET Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCORSDisabled(t *testing.T) {
	srv, err := New(Config{Root: newTestRoot(t), Logger: log.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, srv, http.MethodGet, "/app.mjs", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want none", got)
	}
}

func TestHead(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodHead, "/modern-monaco/index.mjs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/javascript" {
		t.Errorf("HEAD Content-Type = %q", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body should be empty, got %d bytes", rec.Body.Len())
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/", "/", false},
		{"/a/./b", "/a/b", false},
		{"//a//b/", "/a/b", false},
		{"/a/../b", "", true},
		{"/a\x00b", "", true},
		{"/..", "", true},
		{`/..\secret`, "", true},
		{"/a..b/c", "/a..b/c", false},
	}
	for _, tt := range tests {
		got, err := cleanPath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("cleanPath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("cleanPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
