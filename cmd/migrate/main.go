package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"server/internal/db/migrations"
	"server/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	conn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: open database failed")
	}
	defer conn.Close()

	if err := conn.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("migrate: database unreachable")
	}

	applied, err := run(conn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: failed")
	}
	logger.Info().Int("applied", applied).Msg("migrate: done")
}

func run(conn *sql.DB, logger infra.Logger) (int, error) {
	if _, err := conn.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		done, err := apply(conn, name)
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		if done {
			logger.Info().Str("migration", name).Msg("migrate: applied")
			applied++
		} else {
			logger.Debug().Str("migration", name).Msg("migrate: already applied")
		}
	}
	return applied, nil
}

func apply(conn *sql.DB, name string) (bool, error) {
	script, err := migrations.Files.ReadFile(name)
	if err != nil {
		return false, err
	}

	tx, err := conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(string(script)); err != nil {
		return false, err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
