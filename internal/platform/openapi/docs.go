package openapi

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// AssetCacheControl is sent with the Swagger UI assets.
const AssetCacheControl = "public, max-age=86400"

// assetTypes lists the only files served from the asset directory.
var assetTypes = map[string]string{
	"swagger-ui.css":       "text/css; charset=utf-8",
	"swagger-ui-bundle.js": "application/javascript; charset=utf-8",
}

const swaggerUIHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>CareCircle API Docs</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <link rel="stylesheet" href="/api/docs/assets/swagger-ui.css" />
  <style>
    body { margin: 0; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="/api/docs/assets/swagger-ui-bundle.js"></script>
  <script>
    window.addEventListener('load', () => {
      window.ui = SwaggerUIBundle({
        url: '/api/openapi.json',
        dom_id: '#swagger-ui',
        presets: [SwaggerUIBundle.presets.apis],
        layout: 'BaseLayout'
      });
    });
  </script>
</body>
</html>`

// Docs serves the Swagger UI page, its allow-listed assets and the /api/doc
// shortcut.
type Docs struct {
	assets fs.FS
}

// NewDocs serves assets from dir.
func NewDocs(dir string) *Docs {
	return &Docs{assets: os.DirFS(filepath.Clean(dir))}
}

// RegisterRoutes mounts the documentation pages on the /api group.
func (d *Docs) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/docs", d.Page)
	apiGroup.GET("/docs/assets/*", d.Asset)
	apiGroup.GET("/doc", d.Redirect)
}

func (d *Docs) Page(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.HTML(http.StatusOK, swaggerUIHTML)
}

// Asset serves a Swagger UI file by base name. Anything outside the
// allow-list is a 404, whatever directory the request names.
func (d *Docs) Asset(c echo.Context) error {
	name := path.Base(path.Clean("/" + c.Param("*")))
	contentType, ok := assetTypes[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	data, err := fs.ReadFile(d.assets, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "Not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	c.Response().Header().Set("Cache-Control", AssetCacheControl)
	return c.Blob(http.StatusOK, contentType, data)
}

// Redirect sends /api/doc to the Swagger UI page, preferring the forwarded
// host so the browser stays on the public origin.
func (d *Docs) Redirect(c echo.Context) error {
	location := "/api/docs"
	if base := baseURL(c.Request()); base != "" {
		location = strings.TrimSuffix(base, "/") + location
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Redirect(http.StatusFound, location)
}
