package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quoteline/internal/app"
	"quoteline/internal/config"
	"quoteline/internal/db"
	"quoteline/internal/domain"
	"quoteline/internal/engine"
)

func TestOpenDefaultWorkspace(t *testing.T) {
	t.Setenv(app.DatabaseURLEnv, "")
	dir := t.TempDir()
	env, err := app.Open(context.Background(), dir)
	require.NoError(t, err)
	defer env.Close()

	require.Equal(t, db.SQLite, env.Dialect)
	require.FileExists(t, db.Path(dir))
	require.Equal(t, "/v1", env.Config.Server.BasePath)
}

func TestActorResolvesByEmail(t *testing.T) {
	t.Setenv(app.DatabaseURLEnv, "")
	ctx := context.Background()
	env, err := app.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Actor(ctx, "")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = env.Actor(ctx, "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	u, err := env.Engine.Register(ctx, nil, engine.RegisterOptions{
		Email: "boss@example.com", Password: "secret1", FirstName: "Mia", LastName: "Grant", Role: domain.RoleManager,
	})
	require.NoError(t, err)
	p, err := env.Actor(ctx, "Boss@Example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, p.ID)
	require.Equal(t, domain.RoleManager, p.Role)
}

func TestStoreConfigPrefersDatabaseURL(t *testing.T) {
	cfg := config.Default()
	t.Setenv(app.DatabaseURLEnv, "")
	require.Equal(t, db.Dialect("sqlite"), app.StoreConfig("ws", cfg).Driver)

	t.Setenv(app.DatabaseURLEnv, "postgres://u:p@localhost/quoteline?sslmode=disable")
	got := app.StoreConfig("ws", cfg)
	require.Equal(t, db.Postgres, got.Driver)
	require.Equal(t, "postgres://u:p@localhost/quoteline?sslmode=disable", got.DSN)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, app.LoadDotEnv(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("QUOTELINE_TEST_FLAG=from-file\n"), 0o644))
	t.Setenv("QUOTELINE_TEST_FLAG", "")
	os.Unsetenv("QUOTELINE_TEST_FLAG")
	require.NoError(t, app.LoadDotEnv(dir))
	require.Equal(t, "from-file", os.Getenv("QUOTELINE_TEST_FLAG"))
}
