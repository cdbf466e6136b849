package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/carecircle/carecircle/internal/platform/credential"
)

var (
	// ErrConnection wraps every failure to produce a usable pool.
	ErrConnection = errors.New("database connection failed")

	// ErrMissingConfig indicates the database host or name is not configured.
	ErrMissingConfig = errors.New("database host and name are not configured")

	// ErrClosed is returned once the manager has been shut down.
	ErrClosed = errors.New("connection manager closed")
)

const tokenRefreshTimeout = 30 * time.Second

// OpenTimeout bounds opening the pool. Callers wait on the manager's mutex
// meanwhile, so the open never runs on an unbounded context.
const OpenTimeout = 15 * time.Second

// PoolConfig describes how to reach the database.
type PoolConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	Schema          string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	TokenRefresh    time.Duration
	LogLevel        string
}

// HasTarget reports whether host and database name are set.
func (c PoolConfig) HasTarget() bool {
	return c.Host != "" && c.Database != ""
}

// UsesSQLLogin reports whether a static login is configured, in which case
// no access token is ever requested.
func (c PoolConfig) UsesSQLLogin() bool {
	return c.User != "" && c.Password != ""
}

// ConnString renders the configuration as a postgres URL. The password is
// only included for SQL logins; token authentication injects it per
// connection.
func (c PoolConfig) ConnString() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	switch {
	case c.UsesSQLLogin():
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}
	q := url.Values{}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// PoolSource hands out the shared pool, opening it on first use.
type PoolSource interface {
	Pool(ctx context.Context) (*pgxpool.Pool, error)
}

// Manager owns the process-wide connection pool. The pool is opened lazily
// on the first Pool call and reused afterwards. When the database is reached
// with an access token, a background loop refreshes the token and new
// physical connections pick it up through the BeforeConnect hook, so the
// pool is never torn down for a token change.
type Manager struct {
	cfg    PoolConfig
	creds  credential.Provider
	logger zerolog.Logger

	mu          sync.Mutex
	pool        *pgxpool.Pool
	closed      bool
	openTimeout time.Duration

	token atomic.Pointer[oauth2.Token]

	stopRefresh context.CancelFunc
	refreshDone chan struct{}
}

// NewManager creates a manager. creds may be nil when cfg uses a SQL login.
func NewManager(cfg PoolConfig, creds credential.Provider, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		creds:       creds,
		logger:      logger.With().Str("component", "db").Logger(),
		openTimeout: OpenTimeout,
	}
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() PoolConfig {
	return m.cfg
}

// Pool returns the shared pool, opening it if necessary.
func (m *Manager) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: %w", ErrConnection, ErrClosed)
	}
	if m.pool != nil {
		return m.pool, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, m.openTimeout)
	defer cancel()
	pool, err := m.open(openCtx)
	if err != nil {
		return nil, err
	}
	m.pool = pool
	if !m.cfg.UsesSQLLogin() {
		m.startRefresher()
	}
	return pool, nil
}

// Stats returns statistics for the open pool, or nil if the pool has not
// been opened yet.
func (m *Manager) Stats() *PoolStats {
	m.mu.Lock()
	pool := m.pool
	m.mu.Unlock()
	if pool == nil {
		return nil
	}
	return GetPoolStats(pool)
}

// AccessToken returns the cached token if it is still valid, otherwise it
// asks the credential provider for a new one.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if tok := m.token.Load(); tok != nil && tok.Valid() {
		return tok.AccessToken, nil
	}
	tok, err := m.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// RefreshToken unconditionally fetches a new token and swaps it in.
func (m *Manager) RefreshToken(ctx context.Context) error {
	_, err := m.fetchToken(ctx)
	return err
}

// Close stops the refresher and closes the pool. It is safe to call more
// than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stop, done, pool := m.stopRefresh, m.refreshDone, m.pool
	m.pool = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	if pool != nil {
		pool.Close()
		m.logger.Info().Msg("connection pool closed")
	}
}

func (m *Manager) open(ctx context.Context) (*pgxpool.Pool, error) {
	if !m.cfg.HasTarget() {
		return nil, fmt.Errorf("%w: %w", ErrConnection, ErrMissingConfig)
	}

	pcfg, err := m.poolConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if !m.cfg.UsesSQLLogin() {
		if _, err := m.fetchToken(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		pcfg.BeforeConnect = m.beforeConnect
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create connection pool: %w", ErrConnection, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrConnection, err)
	}

	m.logger.Info().
		Str("host", m.cfg.Host).
		Str("database", m.cfg.Database).
		Int32("max_conns", pcfg.MaxConns).
		Bool("token_auth", !m.cfg.UsesSQLLogin()).
		Msg("connection pool opened")
	return pool, nil
}

func (m *Manager) poolConfig() (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(m.cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if m.cfg.MaxConns > 0 {
		pcfg.MaxConns = m.cfg.MaxConns
	}
	pcfg.MinConns = m.cfg.MinConns
	if m.cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = m.cfg.MaxConnIdleTime
	}
	if m.cfg.Schema != "" {
		pcfg.ConnConfig.RuntimeParams["search_path"] = m.cfg.Schema
	}

	level := tracelog.LogLevelWarn
	if m.cfg.LogLevel != "" {
		if l, err := tracelog.LogLevelFromString(m.cfg.LogLevel); err == nil {
			level = l
		}
	}
	pcfg.ConnConfig.Tracer = &tracelog.TraceLog{Logger: NewTraceLogger(m.logger), LogLevel: level}

	return pcfg, nil
}

func (m *Manager) beforeConnect(ctx context.Context, cc *pgx.ConnConfig) error {
	tok, err := m.AccessToken(ctx)
	if err != nil {
		return err
	}
	cc.Password = tok
	return nil
}

func (m *Manager) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	if m.creds == nil {
		return nil, fmt.Errorf("%w: no credential provider configured", credential.ErrNoToken)
	}
	tok, err := m.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", credential.ErrNoToken, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned an empty token", credential.ErrNoToken)
	}
	m.token.Store(tok)
	return tok, nil
}

// startRefresher must be called with m.mu held.
func (m *Manager) startRefresher() {
	if m.stopRefresh != nil {
		return
	}
	every := m.cfg.TokenRefresh
	if every <= 0 {
		every = 4 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopRefresh = cancel
	m.refreshDone = make(chan struct{})
	go m.refreshLoop(ctx, every, m.refreshDone)
}

func (m *Manager) refreshLoop(ctx context.Context, every time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, tokenRefreshTimeout)
			if err := m.RefreshToken(rctx); err != nil {
				m.logger.Error().Err(err).Msg("token refresh failed")
			} else {
				m.logger.Debug().Msg("access token refreshed")
			}
			cancel()
		}
	}
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
