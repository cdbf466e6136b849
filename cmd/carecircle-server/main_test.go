package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carecircle/carecircle/internal/config"
	"github.com/carecircle/carecircle/internal/platform/db"
)

const testKey = "s3cret"

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		APIKey:         testKey,
		Store:          config.StoreMemory,
		DBSchema:       "care",
		DBMaxConns:     10,
		DBTokenRefresh: 4 * time.Minute,
		CORSOrigins:    []string{"*"},
		DocsAssetsDir:  "./does-not-exist",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	manager := db.NewManager(poolConfig(cfg), nil, zerolog.Nop())
	t.Cleanup(manager.Close)
	return newServer(cfg, zerolog.Nop(), manager)
}

func do(h http.Handler, method, target, key, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestProtectedRoutes_RequireKey(t *testing.T) {
	h := newTestServer(t, testConfig())
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/families/1"},
		{http.MethodPatch, "/api/families/1"},
		{http.MethodGet, "/api/patients/1"},
		{http.MethodGet, "/api/v1/families"},
		{http.MethodPost, "/api/v1/patients"},
		{http.MethodDelete, "/api/v1/families/1"},
		{http.MethodGet, "/api/v1/contacts"},
		{http.MethodGet, "/api/v1/patients/1/memories"},
		{http.MethodDelete, "/api/v1/reminders/1"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			rec := do(h, r.method, r.path, "", "")
			if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "API key required" {
				t.Errorf("no key: expected 401 API key required, got %d %s", rec.Code, rec.Body.String())
			}
			rec = do(h, r.method, r.path, "wrong", "")
			if rec.Code != http.StatusForbidden || errorBody(t, rec) != "Invalid API key" {
				t.Errorf("wrong key: expected 403 Invalid API key, got %d %s", rec.Code, rec.Body.String())
			}
			rec = do(h, r.method, r.path, testKey, "")
			if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusForbidden {
				t.Errorf("right key: expected handler result, got %d", rec.Code)
			}
		})
	}
}

func TestMissingAPIKeyConfig(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	h := newTestServer(t, cfg)

	rec := do(h, http.MethodGet, "/api/v1/families", "anything", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := errorBody(t, rec); msg != "Server configuration error: API key is not set" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestPublicRoutes(t *testing.T) {
	h := newTestServer(t, testConfig())
	tests := []struct {
		path string
		code int
	}{
		{"/healthz", http.StatusOK},
		{"/api/healthz", http.StatusOK},
		{"/api/openapi.json", http.StatusOK},
		{"/api/docs", http.StatusOK},
		{"/api/doc", http.StatusFound},
		{"/api/docs/assets/swagger-ui.css", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := do(h, http.MethodGet, tt.path, "", ""); rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
}

func TestDeepHealth(t *testing.T) {
	h := newTestServer(t, testConfig())

	if rec := do(h, http.MethodGet, "/healthz?deep=DB", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected deep probe to require the key, got %d", rec.Code)
	}

	rec := do(h, http.MethodGet, "/healthz?deep=db", testKey, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		OK   bool   `json:"ok"`
		Mode string `json:"mode"`
		DB   struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		} `json:"db"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.OK || body.Mode != "deep" || body.DB.Status != "down" || body.DB.Reason != db.ReasonMissingConfig {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestEndToEnd_MemoryStore(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := do(h, http.MethodPost, "/api/v1/families", testKey, `{"family_name":"Silva"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create family: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/api/v1/patients", testKey, `{"family_id":99,"first_name":"Ana","last_name":"Silva"}`)
	if rec.Code != http.StatusBadRequest || errorBody(t, rec) != "Invalid family_id: not found" {
		t.Errorf("unknown family: got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/api/v1/patients", testKey, `{"family_id":1,"first_name":"Ana","last_name":"Silva","date_of_birth":"1941-02-28"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create patient: %d %s", rec.Code, rec.Body.String())
	}
	created := rec.Body.String()

	if rec = do(h, http.MethodGet, "/api/v1/patients/1", testKey, ""); rec.Body.String() != created {
		t.Errorf("expected get to echo create\n created %s\n got     %s", created, rec.Body.String())
	}

	at := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	rec = do(h, http.MethodPost, "/api/v1/patients/1/reminders", testKey, `{"title":"Pills","remind_at_utc":"`+at+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create reminder: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/api/patients/1", testKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("patient detail: %d %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		Patient struct {
			FamilyName string `json:"family_name"`
		} `json:"patient"`
		Reminders []json.RawMessage `json:"reminders"`
		Memories  []json.RawMessage `json:"memories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if detail.Patient.FamilyName != "Silva" || len(detail.Reminders) != 1 || detail.Memories == nil {
		t.Errorf("unexpected detail: %s", rec.Body.String())
	}

	if rec = do(h, http.MethodPatch, "/api/families/1", testKey, `{}`); rec.Code != http.StatusBadRequest || errorBody(t, rec) != "Nothing to update" {
		t.Errorf("empty patch: got %d %s", rec.Code, rec.Body.String())
	}

	for i := 0; i < 2; i++ {
		code := do(h, http.MethodDelete, "/api/v1/families/1", testKey, "").Code
		want := http.StatusNotFound
		if i == 0 {
			want = http.StatusNoContent
		}
		if code != want {
			t.Errorf("delete %d: expected %d, got %d", i, want, code)
		}
	}
	if rec = do(h, http.MethodDelete, "/api/v1/families/1", testKey, ""); errorBody(t, rec) != "Family not found" {
		t.Errorf("unexpected message: %s", rec.Body.String())
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	h := newTestServer(t, testConfig())
	rec := do(h, http.MethodGet, "/api/v1/families", testKey, "")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store on API routes, got %q", rec.Header().Get("Cache-Control"))
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "debug"
	if got := newLogger(cfg).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug, got %v", got)
	}
	cfg.LogLevel = "nonsense"
	if got := newLogger(cfg).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %v", got)
	}
}

func TestPoolConfig_SSLMode(t *testing.T) {
	cfg := testConfig()
	cfg.DBEncrypt = false
	if got := poolConfig(cfg).SSLMode; got != "disable" {
		t.Errorf("expected disable, got %q", got)
	}
	cfg.DBEncrypt = true
	if got := poolConfig(cfg).SSLMode; got != "require" {
		t.Errorf("expected require, got %q", got)
	}
}
