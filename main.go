package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/adapters/tableau"
	"github.com/lookbridge-io/lookbridge-engine/pkg/config"
	"github.com/lookbridge-io/lookbridge-engine/pkg/database"
	"github.com/lookbridge-io/lookbridge-engine/pkg/handlers"
	"github.com/lookbridge-io/lookbridge-engine/pkg/logging"
	"github.com/lookbridge-io/lookbridge-engine/pkg/lookml"
	"github.com/lookbridge-io/lookbridge-engine/pkg/middleware"
	"github.com/lookbridge-io/lookbridge-engine/pkg/repositories"
	"github.com/lookbridge-io/lookbridge-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("upload_dir", cfg.Upload.Dir),
		zap.String("output_dir", cfg.Output.Dir),
		zap.Bool("database_enabled", cfg.Database.Enabled))

	// Run history persistence is optional; the engine runs fully without
	// a database.
	var runs repositories.RunRepository
	if cfg.Database.Enabled {
		connString := cfg.Database.ConnectionString()
		if err := database.RunMigrations(connString, cfg.Output.MigrationsDir, logger); err != nil {
			logger.Fatal("Failed to run database migrations", zap.Error(err))
		}

		db, err := database.NewConnection(context.Background(), &database.Config{
			URL:            connString,
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		runs = repositories.NewRunRepository(db)
	}

	parser := tableau.NewParser(logger)
	generator := lookml.NewGenerator(logger)
	migrationService := services.NewMigrationService(parser, generator, runs, cfg.Output.Dir, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	migrationHandler := handlers.NewMigrationHandler(migrationService, cfg, logger)
	migrationHandler.RegisterRoutes(mux)

	if runs != nil {
		runsHandler := handlers.NewRunsHandler(runs, logger)
		runsHandler.RegisterRoutes(mux)
	}

	// Serve generated artifacts (consolidation report, LookML project).
	mux.Handle("/output/", http.StripPrefix("/output/", http.FileServer(http.Dir(cfg.Output.Dir))))

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting lookbridge-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
