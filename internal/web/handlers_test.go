package web

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/cortex/internal/capsule"
	"github.com/hpungsan/cortex/internal/store"
)

func setupTest(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	st := store.New(t.TempDir())
	srv := NewServer(st, "test", "127.0.0.1", 0)
	return st, srv.Handler
}

// seedCapsule stores a capsule and returns its ID.
func seedCapsule(t *testing.T, st *store.Store, title string) string {
	t.Helper()
	c := capsule.Capsule{
		ID:           capsule.NewID(),
		ReceivedAt:   time.Now().UTC(),
		Instructions: "The save button does nothing",
		Context: capsule.Context{
			URL:   "https://app.test/settings",
			Title: title,
		},
	}
	if err := st.Save(c); err != nil {
		t.Fatalf("seed capsule %q: %v", title, err)
	}
	return c.ID
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleListEmpty(t *testing.T) {
	_, h := setupTest(t)

	rec := get(t, h, "/capsules")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No capsules captured yet") {
		t.Error("empty state message missing")
	}
}

func TestHandleList(t *testing.T) {
	st, h := setupTest(t)
	id := seedCapsule(t, st, "Settings page")

	rec := get(t, h, "/capsules")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, id) {
		t.Errorf("body does not link capsule %s", id)
	}
	if !strings.Contains(body, "Settings page") {
		t.Error("page title missing from list")
	}
}

func TestHandleDetail(t *testing.T) {
	st, h := setupTest(t)
	id := seedCapsule(t, st, "Settings page")

	rec := get(t, h, "/capsules/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "The save button does nothing") {
		t.Error("capsule JSON missing from detail page")
	}
	if strings.Contains(body, "Diagnosis") {
		t.Error("diagnosis section rendered without a diagnosis")
	}
}

func TestHandleDetailWithDiagnosis(t *testing.T) {
	st, h := setupTest(t)
	id := seedCapsule(t, st, "Settings page")
	if err := st.SaveDiagnosis(id, "## Root cause\n\nThe handler is **never bound**."); err != nil {
		t.Fatalf("SaveDiagnosis: %v", err)
	}

	rec := get(t, h, "/capsules/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h2>Root cause</h2>") {
		t.Error("diagnosis markdown not rendered to HTML")
	}
	if !strings.Contains(body, "<strong>never bound</strong>") {
		t.Error("diagnosis emphasis not rendered")
	}
}

func TestHandleDetailNotFound(t *testing.T) {
	_, h := setupTest(t)

	rec := get(t, h, "/capsules/does-not-exist")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetailNotFoundJSON(t *testing.T) {
	_, h := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/capsules/does-not-exist", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), "NOT_FOUND") {
		t.Errorf("body = %s, want NOT_FOUND code", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, h := setupTest(t)

	rec := get(t, h, "/capsules")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options header")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestRootRedirects(t *testing.T) {
	_, h := setupTest(t)

	rec := get(t, h, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/capsules" {
		t.Errorf("Location = %q, want /capsules", loc)
	}
}

func TestRendererParsesAllTemplates(t *testing.T) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	r := NewRenderer(templateSub, "test")
	for _, name := range []string{"list", "detail", "error"} {
		if _, ok := r.templates[name]; !ok {
			t.Errorf("template %q not parsed", name)
		}
	}
}
