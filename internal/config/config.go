package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	APIKey   string `mapstructure:"API_KEY"`
	Store    string `mapstructure:"STORE"`

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBEncrypt         bool          `mapstructure:"DB_ENCRYPT"`
	DBSchema          string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	DBMaxConnIdleTime time.Duration `mapstructure:"DB_MAX_CONN_IDLE_TIME"`
	DBTokenScope      string        `mapstructure:"DB_TOKEN_SCOPE"`
	DBTokenRefresh    time.Duration `mapstructure:"DB_TOKEN_REFRESH"`
	DBLogLevel        string        `mapstructure:"DB_LOG_LEVEL"`
	AzureClientID     string        `mapstructure:"AZURE_CLIENT_ID"`

	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	DocsAssetsDir string   `mapstructure:"DOCS_ASSETS_DIR"`
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// hostAliases are the variable names earlier deployments used for the
// database host and name. They are consulted only when the canonical
// variable is unset.
var (
	hostAliases = []string{"SQL_SERVER", "DB_FQDN"}
	nameAliases = []string{"SQL_DATABASE"}
	userAliases = []string{"DB_LOGIN"}
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_ENCRYPT", true)
	v.SetDefault("DB_SCHEMA", "care")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "30s")
	v.SetDefault("DB_TOKEN_SCOPE", "https://ossrdbms-aad.database.windows.net/.default")
	v.SetDefault("DB_TOKEN_REFRESH", "4m")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DOCS_ASSETS_DIR", "./docs/assets")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "API_KEY", "STORE",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_ENCRYPT",
		"DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_MAX_CONN_IDLE_TIME",
		"DB_TOKEN_SCOPE", "DB_TOKEN_REFRESH", "DB_LOG_LEVEL", "AZURE_CLIENT_ID",
		"CORS_ORIGINS", "DOCS_ASSETS_DIR",
	} {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv(append([]string{"DB_HOST", "DB_HOST"}, hostAliases...)...)
	_ = v.BindEnv(append([]string{"DB_NAME", "DB_NAME"}, nameAliases...)...)
	_ = v.BindEnv(append([]string{"DB_USER", "DB_USER"}, userAliases...)...)
	// SQL_ENCRYPT is the legacy toggle name.
	_ = v.BindEnv("DB_ENCRYPT", "DB_ENCRYPT", "SQL_ENCRYPT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
			for i := range cfg.CORSOrigins {
				cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
			}
		}
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		log.Println("WARNING: API_KEY is not set; every protected route will answer 500 until it is configured.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SSLMode maps the encryption toggle onto a libpq sslmode value.
func (c *Config) SSLMode() string {
	if c.DBEncrypt {
		return "require"
	}
	return "disable"
}

// Validate rejects settings that can never work. Missing database settings
// are not an error here: the pool opens lazily and the deep health probe
// reports them as missing_config.
func (c *Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
	}
	if c.DBTokenRefresh <= 0 {
		return fmt.Errorf("DB_TOKEN_REFRESH must be positive, got %s", c.DBTokenRefresh)
	}
	if c.IsProduction() && c.Store == StoreMemory {
		return fmt.Errorf("STORE=memory is not allowed when ENV=production")
	}
	return nil
}
