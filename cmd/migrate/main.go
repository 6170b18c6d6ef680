package main

// Apply the jobs, audit_entries and documents schema:
//   go run ./cmd/migrate
// Print the applied version only:
//   go run ./cmd/migrate -status

import (
	"context"
	"flag"
	"os"
	"strings"

	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/storage/db"
	"wasteops-backend/internal/shared/telemetry"
)

func main() {
	statusOnly := flag.Bool("status", false, "print the schema version without migrating")
	flag.Parse()

	cfg := config.Load()
	telemetry.Configure(os.Stdout, cfg.LogLevel)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Error("migrate.config", map[string]any{"error": "DATABASE_URL is required"})
		os.Exit(2)
	}

	ctx := context.Background()
	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if *statusOnly {
		version, err := db.SchemaVersion(ctx, sqlDB)
		if err != nil {
			telemetry.Error("migrate.status", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		telemetry.Info("migrate.status", map[string]any{"version": version})
		return
	}

	version, err := db.RunMigrations(ctx, sqlDB)
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"version": version})
}
