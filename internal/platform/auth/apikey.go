package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Header names checked for the API key, in order of precedence.
const (
	HeaderAPIKey        = "X-API-Key"
	HeaderAuthorization = "Authorization"
)

// Error messages rendered by the gate.
const (
	MsgKeyNotConfigured = "Server configuration error: API key is not set"
	MsgKeyRequired      = "API key required"
	MsgKeyInvalid       = "Invalid API key"
)

// APIKeyConfig configures the API key gate.
type APIKeyConfig struct {
	// Key is the shared secret. An empty key rejects every protected request
	// with 500.
	Key string

	// Skipper bypasses the gate. Defaults to AuthSkipper.
	Skipper middleware.Skipper
}

// APIKey returns a gate that checks every request against a single shared
// secret. The credential is read from X-API-Key first and then from an
// Authorization: Bearer header.
func APIKey(key string) echo.MiddlewareFunc {
	return APIKeyWithConfig(APIKeyConfig{Key: key})
}

// APIKeyWithConfig returns the gate with a custom configuration.
func APIKeyWithConfig(cfg APIKeyConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = AuthSkipper
	}
	expected := []byte(cfg.Key)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			if len(expected) == 0 {
				return echo.NewHTTPError(http.StatusInternalServerError, MsgKeyNotConfigured)
			}

			provided := extractAPIKey(c)
			if provided == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgKeyRequired)
			}

			if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, MsgKeyInvalid)
			}

			return next(c)
		}
	}
}

// extractAPIKey returns the raw API key from the request, checking X-API-Key
// header first and then the Authorization: Bearer header.
func extractAPIKey(c echo.Context) string {
	if apiKey := c.Request().Header.Get(HeaderAPIKey); apiKey != "" {
		return apiKey
	}

	authHeader := c.Request().Header.Get(HeaderAuthorization)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
