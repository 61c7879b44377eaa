//cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/logger"
)

// Applied in order. The schema is idempotent, the seed data is not.
var defaultFiles = []string{
	"migrations/001_schema.sql",
	"seed/contacts.sql",
	"seed/campaigns.sql",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.AppEnv).With().Str("component", "seeder").Logger()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	files := defaultFiles
	if len(os.Args) > 1 {
		files = os.Args[1:]
	}
	if err := applyFiles(ctx, conn, files, log); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Msg("database seeding completed successfully")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applyFiles(ctx context.Context, conn execer, files []string, log zerolog.Logger) error {
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute %s: %w", file, err)
		}
		log.Info().Str("file", file).Msg("applied")
	}
	return nil
}
