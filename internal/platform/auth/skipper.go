package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass the API key gate: the API
// description and its UI.
var publicPaths = map[string]bool{
	"/api/openapi.json": true,
	"/api/docs":         true,
	"/api/doc":          true,
}

const docsAssetsPrefix = "/api/docs/assets/"

// healthPaths are public unless the caller asks for the database probe.
var healthPaths = map[string]bool{
	"/healthz":     true,
	"/api/healthz": true,
}

// AuthSkipper returns true for requests that do not need an API key.
func AuthSkipper(c echo.Context) bool {
	path := c.Request().URL.Path
	if healthPaths[path] {
		return !strings.EqualFold(c.QueryParam("deep"), "db")
	}
	return IsPublicPath(path)
}

// IsPublicPath reports whether the given path is documentation that is
// always served without credentials.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, docsAssetsPrefix)
}
