package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFrontendProxiesUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "page:"+r.URL.Path)
	}))
	defer upstream.Close()

	h, err := NewFrontend(upstream.URL, "")
	if err != nil {
		t.Fatalf("NewFrontend: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "page:/dashboard" {
		t.Fatalf("unexpected proxy response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewFrontendUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	h, err := NewFrontend(url, "")
	if err != nil {
		t.Fatalf("NewFrontend: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestNewFrontendStaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	h, err := NewFrontend("", dir)
	if err != nil {
		t.Fatalf("NewFrontend: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<h1>home</h1>" {
		t.Fatalf("unexpected static response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewFrontendErrors(t *testing.T) {
	if _, err := NewFrontend("not a url", ""); err == nil {
		t.Fatal("expected error for invalid url")
	}
	if _, err := NewFrontend("", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
	h, err := NewFrontend("", "")
	if err != nil || h != nil {
		t.Fatalf("expected nil handler without configuration, got %v %v", h, err)
	}
}
