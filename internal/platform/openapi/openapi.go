package openapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Route describes one documented operation. Path is relative to the /api
// server URL and uses OpenAPI {param} syntax.
type Route struct {
	Method      string
	Path        string
	Summary     string
	Tag         string
	Public      bool
	Query       []Param
	Body        string // component schema of the request body
	Status      int
	Response    string // component schema of the success response
	NotFound    bool
	Description string
}

// Param is a query parameter.
type Param struct {
	Name        string
	Type        string
	Description string
}

var pageParams = []Param{
	{Name: "page", Type: "integer", Description: "Page number, starting at 1"},
	{Name: "pageSize", Type: "integer", Description: "Items per page (1-100, default 10)"},
}

func withPaging(params ...Param) []Param {
	return append(params, pageParams...)
}

// Routes is the documented surface of the API.
var Routes = []Route{
	{Method: http.MethodGet, Path: "/healthz", Summary: "Health check", Tag: "Health", Public: true,
		Query:       []Param{{Name: "deep", Type: "string", Description: `Set to "db" for a database round trip (requires the API key)`}},
		Status:      http.StatusOK,
		Response:    "Health",
		Description: "Shallow or deep health check. Use ?deep=db to perform a database connectivity check."},

	{Method: http.MethodGet, Path: "/families/{id}", Summary: "Get family with patients and contacts", Tag: "Families",
		Status: http.StatusOK, Response: "FamilyDetail", NotFound: true},
	{Method: http.MethodPut, Path: "/families/{id}", Summary: "Update family", Tag: "Families",
		Body: "FamilyPatch", Status: http.StatusOK, Response: "Family", NotFound: true},
	{Method: http.MethodPatch, Path: "/families/{id}", Summary: "Update family", Tag: "Families",
		Body: "FamilyPatch", Status: http.StatusOK, Response: "Family", NotFound: true},
	{Method: http.MethodGet, Path: "/patients/{id}", Summary: "Get patient with contacts and recent journal", Tag: "Patients",
		Status: http.StatusOK, Response: "PatientDetail", NotFound: true},

	{Method: http.MethodGet, Path: "/v1/families", Summary: "List families", Tag: "Families",
		Query:  withPaging(Param{Name: "search", Type: "string", Description: "Substring of family_name"}),
		Status: http.StatusOK, Response: "FamilyPage"},
	{Method: http.MethodPost, Path: "/v1/families", Summary: "Create family", Tag: "Families",
		Body: "FamilyInput", Status: http.StatusCreated, Response: "Family"},
	{Method: http.MethodGet, Path: "/v1/families/{id}", Summary: "Get family", Tag: "Families",
		Status: http.StatusOK, Response: "Family", NotFound: true},
	{Method: http.MethodPatch, Path: "/v1/families/{id}", Summary: "Update family", Tag: "Families",
		Body: "FamilyPatch", Status: http.StatusOK, Response: "Family", NotFound: true},
	{Method: http.MethodDelete, Path: "/v1/families/{id}", Summary: "Delete family", Tag: "Families",
		Status: http.StatusNoContent, NotFound: true},

	{Method: http.MethodGet, Path: "/v1/patients", Summary: "List patients", Tag: "Patients",
		Query: withPaging(
			Param{Name: "search", Type: "string", Description: "Substring of first or last name"},
			Param{Name: "lastName", Type: "string", Description: "Substring of last name"},
			Param{Name: "familyId", Type: "integer", Description: "Restrict to one family"},
		),
		Status: http.StatusOK, Response: "PatientPage"},
	{Method: http.MethodPost, Path: "/v1/patients", Summary: "Create patient", Tag: "Patients",
		Body: "PatientInput", Status: http.StatusCreated, Response: "Patient"},
	{Method: http.MethodGet, Path: "/v1/patients/{id}", Summary: "Get patient", Tag: "Patients",
		Status: http.StatusOK, Response: "Patient", NotFound: true},
	{Method: http.MethodPatch, Path: "/v1/patients/{id}", Summary: "Update patient", Tag: "Patients",
		Body: "PatientPatch", Status: http.StatusOK, Response: "Patient", NotFound: true},
	{Method: http.MethodDelete, Path: "/v1/patients/{id}", Summary: "Delete patient", Tag: "Patients",
		Status: http.StatusNoContent, NotFound: true},

	{Method: http.MethodGet, Path: "/v1/contacts", Summary: "List contacts", Tag: "Contacts",
		Query: withPaging(
			Param{Name: "familyId", Type: "integer"},
			Param{Name: "patientId", Type: "integer"},
		),
		Status: http.StatusOK, Response: "ContactPage"},
	{Method: http.MethodPost, Path: "/v1/contacts", Summary: "Create contact", Tag: "Contacts",
		Body: "ContactInput", Status: http.StatusCreated, Response: "Contact"},
	{Method: http.MethodDelete, Path: "/v1/contacts/{id}", Summary: "Delete contact", Tag: "Contacts",
		Status: http.StatusNoContent, NotFound: true},

	{Method: http.MethodGet, Path: "/v1/patients/{id}/memories", Summary: "List memories", Tag: "Journal",
		Query: withPaging(), Status: http.StatusOK, Response: "MemoryPage", NotFound: true},
	{Method: http.MethodPost, Path: "/v1/patients/{id}/memories", Summary: "Add memory", Tag: "Journal",
		Body: "MemoryInput", Status: http.StatusCreated, Response: "Memory", NotFound: true},
	{Method: http.MethodDelete, Path: "/v1/memories/{id}", Summary: "Delete memory", Tag: "Journal",
		Status: http.StatusNoContent, NotFound: true},
	{Method: http.MethodGet, Path: "/v1/patients/{id}/agenda", Summary: "List agenda items", Tag: "Journal",
		Query: withPaging(), Status: http.StatusOK, Response: "AgendaPage", NotFound: true},
	{Method: http.MethodPost, Path: "/v1/patients/{id}/agenda", Summary: "Add agenda item", Tag: "Journal",
		Body: "AgendaInput", Status: http.StatusCreated, Response: "AgendaItem", NotFound: true},
	{Method: http.MethodDelete, Path: "/v1/agenda/{id}", Summary: "Delete agenda item", Tag: "Journal",
		Status: http.StatusNoContent, NotFound: true},
	{Method: http.MethodGet, Path: "/v1/patients/{id}/reminders", Summary: "List reminders", Tag: "Journal",
		Query: withPaging(), Status: http.StatusOK, Response: "ReminderPage", NotFound: true},
	{Method: http.MethodPost, Path: "/v1/patients/{id}/reminders", Summary: "Add reminder", Tag: "Journal",
		Body: "ReminderInput", Status: http.StatusCreated, Response: "Reminder", NotFound: true},
	{Method: http.MethodDelete, Path: "/v1/reminders/{id}", Summary: "Delete reminder", Tag: "Journal",
		Status: http.StatusNoContent, NotFound: true},
}

// Generator builds an OpenAPI 3.0 document from a route table.
type Generator struct {
	routes  []Route
	version string
}

// NewGenerator creates a generator over routes.
func NewGenerator(routes []Route, version string) *Generator {
	return &Generator{routes: routes, version: version}
}

// GenerateSpec produces the OpenAPI 3.0 document as a map.
func (g *Generator) GenerateSpec(serverURL string) map[string]interface{} {
	paths := make(map[string]interface{})
	for _, r := range g.routes {
		item, ok := paths[r.Path].(map[string]interface{})
		if !ok {
			item = make(map[string]interface{})
			paths[r.Path] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "CareCircle API",
			"version":     g.version,
			"description": "Families, patients, contacts and their care journal.",
		},
		"servers": []map[string]string{
			{"url": serverURL},
		},
		"security": []map[string][]string{
			{"ApiKeyAuth": {}},
			{"BearerAuth": {}},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"ApiKeyAuth": map[string]interface{}{"type": "apiKey", "in": "header", "name": "X-API-Key"},
				"BearerAuth": map[string]interface{}{"type": "http", "scheme": "bearer"},
			},
			"schemas": buildComponentSchemas(),
		},
	}
}

func (g *Generator) buildOperation(r Route) map[string]interface{} {
	op := map[string]interface{}{
		"summary":     r.Summary,
		"operationId": operationID(r),
		"tags":        []string{r.Tag},
	}
	if r.Description != "" {
		op["description"] = r.Description
	}
	if r.Public {
		op["security"] = []map[string][]string{}
	}

	var params []map[string]interface{}
	if strings.Contains(r.Path, "{id}") {
		params = append(params, map[string]interface{}{
			"name": "id", "in": "path", "required": true,
			"schema": map[string]interface{}{"type": "integer", "format": "int64", "minimum": 1},
		})
	}
	for _, q := range r.Query {
		p := map[string]interface{}{
			"name": q.Name, "in": "query", "required": false,
			"schema": map[string]interface{}{"type": q.Type},
		}
		if q.Description != "" {
			p["description"] = q.Description
		}
		params = append(params, p)
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	if r.Body != "" {
		op["requestBody"] = buildRequestBody(r.Body)
	}

	responses := map[string]interface{}{}
	if r.Response != "" {
		responses[strconv.Itoa(r.Status)] = buildResponseWithSchema(http.StatusText(r.Status), "#/components/schemas/"+r.Response)
	} else {
		responses[strconv.Itoa(r.Status)] = map[string]interface{}{"description": http.StatusText(r.Status)}
	}
	if r.Path == "/healthz" {
		responses["503"] = buildResponseWithSchema("Database unreachable", "#/components/schemas/Health")
	} else {
		responses["400"] = buildResponseWithSchema("Invalid request", "#/components/schemas/Error")
	}
	if r.NotFound {
		responses["404"] = buildResponseWithSchema("Not found", "#/components/schemas/Error")
	}
	if !r.Public {
		responses["401"] = buildResponseWithSchema("API key required", "#/components/schemas/Error")
		responses["403"] = buildResponseWithSchema("Invalid API key", "#/components/schemas/Error")
	}
	op["responses"] = responses
	return op
}

// operationID derives e.g. "getV1FamiliesById" from a route.
func operationID(r Route) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(r.Method))
	for _, seg := range strings.Split(r.Path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			seg = "by-" + strings.Trim(seg, "{}")
		}
		for _, part := range strings.Split(seg, "-") {
			if part != "" {
				b.WriteString(strings.ToUpper(part[:1]) + part[1:])
			}
		}
	}
	return b.String()
}

func buildRequestBody(schema string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": "#/components/schemas/" + schema},
			},
		},
	}
}

func buildResponseWithSchema(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": schemaRef},
			},
		},
	}
}

// RegisterRoutes serves the document at /openapi.json on the /api group.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(http.StatusOK, g.GenerateSpec(ServerURL(c.Request())))
	})
}

// ServerURL infers the public base URL of the /api prefix from forwarding
// headers, falling back to a relative "/api".
func ServerURL(r *http.Request) string {
	if base := baseURL(r); base != "" {
		return base + "/api"
	}
	return "/api"
}

func baseURL(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return ""
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + host
}
