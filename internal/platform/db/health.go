package db

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Reasons reported by a failed deep probe.
const (
	ReasonMissingConfig = "missing_config"
	ReasonNoToken       = "no_token"
	ReasonAborted       = "aborted"
	ReasonQueryFailed   = "query_failed"
)

// DeepCheckTimeout bounds a deep health probe.
const DeepCheckTimeout = 5 * time.Second

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// ProbeResult is the outcome of one database round trip.
type ProbeResult struct {
	OK       bool
	Reason   string
	Duration time.Duration
}

// Prober performs a single database round trip.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}

// TokenSource supplies the access token used when no SQL login is set.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ConnProber checks the database over a dedicated connection that is closed
// after every probe, independent of the shared pool.
type ConnProber struct {
	cfg     PoolConfig
	tokens  TokenSource
	connect func(ctx context.Context, cc *pgx.ConnConfig) (*pgx.Conn, error)
}

// NewConnProber creates a prober that reuses the manager's configuration and
// credentials.
func NewConnProber(m *Manager) *ConnProber {
	return &ConnProber{cfg: m.Config(), tokens: m, connect: pgx.ConnectConfig}
}

// Probe implements Prober.
func (p *ConnProber) Probe(ctx context.Context) ProbeResult {
	if !p.cfg.HasTarget() {
		return ProbeResult{Reason: ReasonMissingConfig}
	}

	cc, err := pgx.ParseConfig(p.cfg.ConnString())
	if err != nil {
		return ProbeResult{Reason: ReasonQueryFailed}
	}
	if p.cfg.Schema != "" {
		cc.RuntimeParams["search_path"] = p.cfg.Schema
	}

	if !p.cfg.UsesSQLLogin() {
		tok, err := p.tokens.AccessToken(ctx)
		if err != nil {
			return ProbeResult{Reason: ReasonNoToken}
		}
		cc.Password = tok
	}

	start := time.Now()
	conn, err := p.connect(ctx, cc)
	if err != nil {
		return ProbeResult{Reason: ReasonQueryFailed}
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	// aborted means the deadline passed after the server accepted us.
	if ctx.Err() != nil {
		return ProbeResult{Reason: ReasonAborted}
	}

	var n int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&n); err != nil || n != 1 {
		return ProbeResult{Reason: ReasonQueryFailed}
	}
	return ProbeResult{OK: true, Duration: time.Since(start)}
}

type healthResponse struct {
	OK        bool      `json:"ok"`
	Mode      string    `json:"mode"`
	Timestamp string    `json:"timestamp"`
	DB        *dbHealth `json:"db,omitempty"`
}

type dbHealth struct {
	Status     string     `json:"status"`
	DurationMs *int64     `json:"durationMs,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Pool       *PoolStats `json:"pool,omitempty"`
}

// HealthHandler serves the liveness probe. The shallow mode only proves the
// process is serving requests; ?deep=db adds a database round trip.
type HealthHandler struct {
	prober  Prober
	stats   func() *PoolStats
	timeout time.Duration
	now     func() time.Time
}

// NewHealthHandler creates a health handler. stats may be nil.
func NewHealthHandler(prober Prober, stats func() *PoolStats) *HealthHandler {
	return &HealthHandler{
		prober:  prober,
		stats:   stats,
		timeout: DeepCheckTimeout,
		now:     time.Now,
	}
}

// RegisterRoutes mounts the probe at /healthz and /api/healthz.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Check)
	e.GET("/api/healthz", h.Check)
}

// IsDeep reports whether the request asks for the database probe.
func IsDeep(c echo.Context) bool {
	return strings.EqualFold(c.QueryParam("deep"), "db")
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(c echo.Context) error {
	if !IsDeep(c) {
		return c.JSON(http.StatusOK, healthResponse{
			OK:        true,
			Mode:      "shallow",
			Timestamp: h.timestamp(),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	res := h.prober.Probe(ctx)

	if !res.OK {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{
			OK:        false,
			Mode:      "deep",
			Timestamp: h.timestamp(),
			DB:        &dbHealth{Status: "down", Reason: res.Reason},
		})
	}

	ms := res.Duration.Milliseconds()
	body := healthResponse{
		OK:        true,
		Mode:      "deep",
		Timestamp: h.timestamp(),
		DB:        &dbHealth{Status: "up", DurationMs: &ms},
	}
	if h.stats != nil {
		body.DB.Pool = h.stats()
	}
	return c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ProbeOnce runs a deep probe outside of HTTP, for the healthcheck command.
func ProbeOnce(ctx context.Context, p Prober) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, DeepCheckTimeout)
	defer cancel()
	return p.Probe(ctx)
}

var _ TokenSource = (*Manager)(nil)
