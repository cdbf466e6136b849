package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
)

func newTestServer() *echo.Echo {
	e := echo.New()
	api := e.Group("/api")
	NewGenerator(Routes, "1.0.0").RegisterRoutes(api)
	d := &Docs{assets: fstest.MapFS{
		"swagger-ui.css":       {Data: []byte("body{}")},
		"swagger-ui-bundle.js": {Data: []byte("var SwaggerUIBundle;")},
		"index.html":           {Data: []byte("<html>")},
	}}
	d.RegisterRoutes(api)
	return e
}

func TestGenerateSpec_Structure(t *testing.T) {
	spec := NewGenerator(Routes, "1.0.0").GenerateSpec("https://care.example.org/api")

	if spec["openapi"] != "3.0.3" {
		t.Errorf("expected openapi '3.0.3', got %v", spec["openapi"])
	}
	info, ok := spec["info"].(map[string]interface{})
	if !ok {
		t.Fatal("expected info object")
	}
	if info["version"] != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %v", info["version"])
	}

	servers, ok := spec["servers"].([]map[string]string)
	if !ok || len(servers) != 1 {
		t.Fatalf("expected one server, got %v", spec["servers"])
	}
	if servers[0]["url"] != "https://care.example.org/api" {
		t.Errorf("unexpected server url %v", servers[0]["url"])
	}

	components := spec["components"].(map[string]interface{})
	schemes := components["securitySchemes"].(map[string]interface{})
	for _, name := range []string{"ApiKeyAuth", "BearerAuth"} {
		if _, ok := schemes[name]; !ok {
			t.Errorf("expected security scheme %s", name)
		}
	}
}

func TestGenerateSpec_Paths(t *testing.T) {
	spec := NewGenerator(Routes, "1.0.0").GenerateSpec("/api")
	paths := spec["paths"].(map[string]interface{})

	expected := map[string][]string{
		"/healthz":                   {"get"},
		"/families/{id}":             {"get", "put", "patch"},
		"/patients/{id}":             {"get"},
		"/v1/families":               {"get", "post"},
		"/v1/families/{id}":          {"get", "patch", "delete"},
		"/v1/patients":               {"get", "post"},
		"/v1/patients/{id}":          {"get", "patch", "delete"},
		"/v1/contacts":               {"get", "post"},
		"/v1/patients/{id}/agenda":   {"get", "post"},
		"/v1/reminders/{id}":         {"delete"},
		"/v1/patients/{id}/memories": {"get", "post"},
	}
	for p, methods := range expected {
		item, ok := paths[p].(map[string]interface{})
		if !ok {
			t.Errorf("expected path %s", p)
			continue
		}
		for _, m := range methods {
			if _, ok := item[m]; !ok {
				t.Errorf("expected %s %s", m, p)
			}
		}
	}
}

func TestGenerateSpec_ReferencedSchemasExist(t *testing.T) {
	spec := NewGenerator(Routes, "1.0.0").GenerateSpec("/api")
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	schemas := spec["components"].(map[string]interface{})["schemas"].(map[string]interface{})

	const prefix = `"#/components/schemas/`
	doc := string(raw)
	for {
		i := strings.Index(doc, prefix)
		if i < 0 {
			break
		}
		doc = doc[i+len(prefix):]
		name := doc[:strings.Index(doc, `"`)]
		if _, ok := schemas[name]; !ok {
			t.Errorf("reference to undefined schema %q", name)
		}
	}
}

func TestGenerateSpec_Security(t *testing.T) {
	spec := NewGenerator(Routes, "1.0.0").GenerateSpec("/api")
	paths := spec["paths"].(map[string]interface{})

	health := paths["/healthz"].(map[string]interface{})["get"].(map[string]interface{})
	sec, ok := health["security"].([]map[string][]string)
	if !ok || len(sec) != 0 {
		t.Errorf("expected public health route to carry empty security, got %v", health["security"])
	}

	list := paths["/v1/families"].(map[string]interface{})["get"].(map[string]interface{})
	if _, ok := list["security"]; ok {
		t.Error("expected protected route to inherit global security")
	}
	responses := list["responses"].(map[string]interface{})
	for _, code := range []string{"200", "401", "403"} {
		if _, ok := responses[code]; !ok {
			t.Errorf("expected %s response on protected route", code)
		}
	}

	del := paths["/v1/families/{id}"].(map[string]interface{})["delete"].(map[string]interface{})
	if _, ok := del["responses"].(map[string]interface{})["204"]; !ok {
		t.Error("expected 204 response on delete")
	}
}

func TestOperationID(t *testing.T) {
	tests := []struct {
		route Route
		want  string
	}{
		{Route{Method: http.MethodGet, Path: "/v1/families/{id}"}, "getV1FamiliesById"},
		{Route{Method: http.MethodPost, Path: "/v1/patients/{id}/memories"}, "postV1PatientsByIdMemories"},
		{Route{Method: http.MethodGet, Path: "/healthz"}, "getHealthz"},
	}
	for _, tt := range tests {
		if got := operationID(tt.route); got != tt.want {
			t.Errorf("operationID(%s %s) = %q, want %q", tt.route.Method, tt.route.Path, got, tt.want)
		}
	}
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		headers map[string]string
		want    string
	}{
		{"host only", "api.example.org", nil, "https://api.example.org/api"},
		{"forwarded", "internal:8000", map[string]string{"X-Forwarded-Proto": "http", "X-Forwarded-Host": "care.example.org"}, "http://care.example.org/api"},
		{"no host", "", nil, "/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil)
			req.Host = tt.host
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ServerURL(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	e := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil)
	req.Host = "care.example.org"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var spec struct {
		OpenAPI string `json:"openapi"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if spec.OpenAPI != "3.0.3" || len(spec.Servers) != 1 || spec.Servers[0].URL != "https://care.example.org/api" {
		t.Errorf("unexpected document header: %+v", spec)
	}
}

func TestDocsPage(t *testing.T) {
	e := newTestServer()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store, got %q", rec.Header().Get("Cache-Control"))
	}
	if !strings.Contains(rec.Body.String(), "/api/openapi.json") {
		t.Error("expected page to point at /api/openapi.json")
	}
}

func TestDocsAssets(t *testing.T) {
	e := newTestServer()
	tests := []struct {
		path        string
		code        int
		contentType string
	}{
		{"/api/docs/assets/swagger-ui.css", http.StatusOK, "text/css; charset=utf-8"},
		{"/api/docs/assets/swagger-ui-bundle.js", http.StatusOK, "application/javascript; charset=utf-8"},
		{"/api/docs/assets/nested/dir/swagger-ui.css", http.StatusOK, "text/css; charset=utf-8"},
		{"/api/docs/assets/index.html", http.StatusNotFound, ""},
		{"/api/docs/assets/../../go.mod", http.StatusNotFound, ""},
		{"/api/docs/assets/", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			if rec.Header().Get(echo.HeaderContentType) != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, rec.Header().Get(echo.HeaderContentType))
			}
			if rec.Header().Get("Cache-Control") != AssetCacheControl {
				t.Errorf("expected long cache, got %q", rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestDocsAsset_MissingFile(t *testing.T) {
	e := echo.New()
	(&Docs{assets: fstest.MapFS{}}).RegisterRoutes(e.Group("/api"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/assets/swagger-ui.css", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDocsRedirect(t *testing.T) {
	e := newTestServer()
	tests := []struct {
		name     string
		host     string
		headers  map[string]string
		location string
	}{
		{"host", "care.example.org", nil, "https://care.example.org/api/docs"},
		{"forwarded", "10.0.0.4", map[string]string{"X-Forwarded-Host": "care.example.org", "X-Forwarded-Proto": "http"}, "http://care.example.org/api/docs"},
		{"no host", "", nil, "/api/docs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/doc", nil)
			req.Host = tt.host
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusFound {
				t.Errorf("expected 302, got %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.location {
				t.Errorf("expected Location %q, got %q", tt.location, got)
			}
		})
	}
}
