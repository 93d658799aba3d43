package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinrec/clinrec/internal/config"
	"github.com/clinrec/clinrec/internal/domain/archive"
	"github.com/clinrec/clinrec/internal/domain/audit"
	"github.com/clinrec/clinrec/internal/domain/notes"
	"github.com/clinrec/clinrec/internal/domain/timeline"
	"github.com/clinrec/clinrec/internal/domain/vitals"
	"github.com/clinrec/clinrec/internal/platform/db"
	"github.com/clinrec/clinrec/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinrec-server",
		Short: "Clinic record keeper API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(archiveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
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

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	// Platform pieces shared across domains.
	inspector := db.NewInspector(pool, logger)
	auditRec := audit.NewRecorder(pool, logger)

	// Repositories and services.
	pendingRepo := notes.NewPendingRepoPG(pool)
	vitalsRepo := vitals.NewRepoPG(pool)
	notesRepo := notes.NewRepoPG(pool, inspector)

	vitalsSvc := vitals.NewService(vitalsRepo, pendingRepo, logger)
	notesSvc := notes.NewService(notesRepo, pendingRepo)
	timelineSvc := timeline.NewService(vitalsRepo, notesRepo, timeline.Config{
		MatchPolicy:    timeline.MatchPolicy(cfg.TimelineMatchPolicy),
		PrintWrapWords: cfg.PrintWrapWords,
		PrintWrapChars: cfg.PrintWrapChars,
	}, logger)
	archiveEngine := archive.NewEngine(pool, inspector, auditRec, logger)

	// Routes.
	apiV1 := e.Group("/api/v1")
	vitals.NewHandler(vitalsSvc).RegisterRoutes(apiV1)
	notes.NewHandler(notesSvc).RegisterRoutes(apiV1)
	timeline.NewHandler(timelineSvc).RegisterRoutes(apiV1)
	archive.NewHandler(archiveEngine).RegisterRoutes(apiV1)
	e.GET("/healthz", db.HealthHandler(pool))

	// Graceful shutdown.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func connect(ctx context.Context) (*config.Config, *db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db.NewMigrator(pool, cfg.MigrationsDir), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := context.Background()

			_, migrator, closePool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("applied", count).Msg("migrations complete")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, migrator, closePool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd)
	cmd.AddCommand(statusCmd)
	return cmd
}

func archiveCmd() *cobra.Command {
	var (
		sourceTable  string
		archiveTable string
		idColumn     string
		idValue      string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move one row from a live table to its archive counterpart",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := context.Background()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			inspector := db.NewInspector(pool, logger)
			auditRec := audit.NewRecorder(pool, logger)
			engine := archive.NewEngine(pool, inspector, auditRec, logger)

			result, err := engine.Archive(ctx, archive.Request{
				SourceTable:  sourceTable,
				ArchiveTable: archiveTable,
				IDColumn:     idColumn,
				IDValue:      idValue,
				DryRun:       dryRun,
				ActorID:      "cli",
			})
			if err != nil {
				return err
			}
			fmt.Printf("existed=%t moved=%t\n", result.Existed, result.Moved)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceTable, "source", "", "live table name")
	cmd.Flags().StringVar(&archiveTable, "archive", "", "archive table name")
	cmd.Flags().StringVar(&idColumn, "id-column", "id", "identifier column")
	cmd.Flags().StringVar(&idValue, "id", "", "identifier value of the row to move")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report existence without moving")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("archive")
	cmd.MarkFlagRequired("id")

	return cmd
}
