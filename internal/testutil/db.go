// README: Shared helpers for DB- and Redis-backed tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"velo/internal/infra"
	"velo/internal/logger"
)

// DB connects to VELO_TEST_DSN, applies migrations and empties every pricing
// table. It skips the test when the variable is not set.
func DB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("VELO_TEST_DSN")
	if dsn == "" {
		t.Skip("VELO_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	root, err := repoRoot()
	if err != nil {
		t.Fatalf("find repo root: %v", err)
	}
	if err := infra.Migrate(dsn, filepath.Join(root, "migrations"), logger.NewNop()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Exec(ctx, "TRUNCATE TABLE promotion_plans, promotions, plan_overrides, pricing_rules, pricing_plans"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// Redis connects to VELO_REDIS_ADDR and flushes the selected database. It
// skips the test when the variable is not set.
func Redis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("VELO_REDIS_ADDR")
	if addr == "" {
		t.Skip("VELO_REDIS_ADDR not set; skipping Redis-backed tests")
	}

	ctx := context.Background()
	rdb, err := infra.NewRedis(ctx, addr, "", 15)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return rdb
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}
