package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carecircle/carecircle/internal/config"
	"github.com/carecircle/carecircle/internal/domain/household"
	"github.com/carecircle/carecircle/internal/domain/journal"
	"github.com/carecircle/carecircle/internal/platform/auth"
	"github.com/carecircle/carecircle/internal/platform/credential"
	"github.com/carecircle/carecircle/internal/platform/db"
	"github.com/carecircle/carecircle/internal/platform/middleware"
	"github.com/carecircle/carecircle/internal/platform/openapi"
)

const apiVersion = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "carecircle-server",
		Short:        "CareCircle API Server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(healthcheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens the configured database and runs fn against the
// embedded migrations.
func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator, string) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	pool, err := manager.Pool(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, db.NewMigrator(pool, db.Migrations()), cfg.DBSchema)
}

func healthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Run one deep database probe and exit non-zero on failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			manager, err := newManager(cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer manager.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res := db.ProbeOnce(ctx, db.NewConnProber(manager))
			if !res.OK {
				return fmt.Errorf("database down: %s", res.Reason)
			}
			fmt.Printf("database up (%dms)\n", res.Duration.Milliseconds())
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Database:        cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.SSLMode(),
		Schema:          cfg.DBSchema,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		TokenRefresh:    cfg.DBTokenRefresh,
		LogLevel:        cfg.DBLogLevel,
	}
}

// newManager builds the pool manager. A credential chain is only created
// when a database is configured and no SQL login is set.
func newManager(cfg *config.Config, logger zerolog.Logger) (*db.Manager, error) {
	pc := poolConfig(cfg)
	var creds credential.Provider
	if pc.HasTarget() && !pc.UsesSQLLogin() {
		azure, err := credential.NewDefault(cfg.AzureClientID, cfg.DBTokenScope)
		if err != nil {
			return nil, fmt.Errorf("credential provider: %w", err)
		}
		creds = azure
	}
	return db.NewManager(pc, creds, logger), nil
}

// repositories groups the storage backends chosen by STORE.
type repositories struct {
	families  household.FamilyRepository
	patients  household.PatientRepository
	contacts  household.ContactRepository
	memories  journal.MemoryRepository
	agenda    journal.AgendaRepository
	reminders journal.ReminderRepository
}

func newRepositories(store string, src db.PoolSource) repositories {
	if store == config.StoreMemory {
		hs := household.NewMemoryStore()
		js := journal.NewMemoryStore()
		return repositories{
			families:  hs.Families(),
			patients:  hs.Patients(),
			contacts:  hs.Contacts(),
			memories:  js.Memories(),
			agenda:    js.Agenda(),
			reminders: js.Reminders(),
		}
	}
	return repositories{
		families:  household.NewFamilyRepoPG(src),
		patients:  household.NewPatientRepoPG(src),
		contacts:  household.NewContactRepoPG(src),
		memories:  journal.NewMemoryRepoPG(src),
		agenda:    journal.NewAgendaRepoPG(src),
		reminders: journal.NewReminderRepoPG(src),
	}
}

// newServer wires middleware and every route onto a new echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, manager *db.Manager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, auth.HeaderAPIKey, middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(auth.APIKey(cfg.APIKey))

	repos := newRepositories(cfg.Store, manager)
	journalSvc := journal.NewService(repos.memories, repos.agenda, repos.reminders, repos.patients)
	householdSvc := household.NewService(repos.families, repos.patients, repos.contacts, journalSvc)

	api := e.Group("/api")
	v1 := api.Group("/v1")

	db.NewHealthHandler(db.NewConnProber(manager), manager.Stats).RegisterRoutes(e)
	openapi.NewGenerator(openapi.Routes, apiVersion).RegisterRoutes(api)
	openapi.NewDocs(cfg.DocsAssetsDir).RegisterRoutes(api)
	household.NewHandler(householdSvc).RegisterRoutes(api, v1)
	journal.NewHandler(journalSvc).RegisterRoutes(v1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	manager, err := newManager(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up database access")
	}
	defer manager.Close()

	if cfg.Store == config.StoreMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	} else if !poolConfig(cfg).HasTarget() {
		logger.Warn().Msg("DB_HOST or DB_NAME is not set; database routes will fail until configured")
	}

	e := newServer(cfg, logger, manager)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.Store).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
