package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"quoteline/internal/config"
	"quoteline/internal/db"
	"quoteline/internal/domain"
	"quoteline/internal/engine"
	"quoteline/internal/migrate"
)

// DatabaseURLEnv selects a postgres store regardless of quoteline.yml.
const DatabaseURLEnv = "QUOTELINE_DATABASE_URL"

// Env is an opened workspace: config, migrated store and engine.
type Env struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Dialect   db.Dialect
	Engine    engine.Engine
}

// LoadDotEnv loads workspace/.env into the process environment when present.
// Variables already set win.
func LoadDotEnv(workspace string) error {
	path := filepath.Join(workspace, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// StoreConfig derives the database settings from cfg and the environment.
func StoreConfig(workspace string, cfg *config.Config) db.Config {
	out := db.Config{
		Workspace: workspace,
		Driver:    db.Dialect(cfg.Storage.Driver),
		DSN:       cfg.Storage.DSN,
	}
	if url := strings.TrimSpace(os.Getenv(DatabaseURLEnv)); url != "" {
		out.Driver = db.Postgres
		out.DSN = url
	}
	return out
}

// Open loads config, opens and migrates the store and builds the engine.
func Open(ctx context.Context, workspace string) (*Env, error) {
	if err := LoadDotEnv(workspace); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, dialect, err := db.Open(StoreConfig(workspace, cfg))
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Env{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Dialect:   dialect,
		Engine:    engine.New(conn, dialect, cfg),
	}, nil
}

func (e *Env) Close() error {
	return e.DB.Close()
}

// Actor resolves the acting user for local commands by login email.
func (e *Env) Actor(ctx context.Context, email string) (domain.Principal, error) {
	if strings.TrimSpace(email) == "" {
		return domain.Principal{}, fmt.Errorf("%w: --actor is required", domain.ErrUnauthenticated)
	}
	return e.Engine.ResolvePrincipalByEmail(ctx, email)
}
