package postgres

import (
	"context"
	"os"
	"strings"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testDB is one migrated Postgres shared by every test in the package.
type testDB struct {
	pool *pgxpool.Pool
	url  string
}

var sharedDB = sync.OnceValues(startTestDB)

// dbRequested is set once a test asks for the database. TestMain only touches
// sharedDB when it is set, so skipped runs never start Docker.
var dbRequested atomic.Bool

// mutableTables hold rows written by tests; seeded lookup tables are kept.
var mutableTables = []string{"comments", "attendances", "events", "users"}

func TestMain(m *testing.M) {
	code := m.Run()
	if dbRequested.Load() {
		if db, err := sharedDB(); err == nil && db.pool != nil {
			db.pool.Close()
		}
	}
	os.Exit(code)
}

func startTestDB() (db *testDB, err error) {
	// testcontainers panics when no Docker host can be found.
	defer func() {
		if r := recover(); r != nil {
			db, err = nil, fmt.Errorf("start postgres container: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Keep the reaper from removing a container other packages reuse by name.
	_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("eventplus"),
		postgres.WithUsername("eventplus"),
		postgres.WithPassword("eventplus_dev"),
		testcontainers.WithReuseByName("eventplus-storage-db"),
	)
	if err != nil {
		return nil, err
	}
	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	// The container may accept connections a moment before it accepts DDL.
	if _, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, MigrateUp(url, "")
	}, backoff.WithBackOff(backoff.NewConstantBackOff(500*time.Millisecond)), backoff.WithMaxElapsedTime(10*time.Second)); err != nil {
		return nil, err
	}

	pool, err := OpenPool(ctx, url, PoolOptions{MaxConns: 20})
	if err != nil {
		return nil, err
	}
	if _, err := MigrateRiver(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &testDB{pool: pool, url: url}, nil
}

// setupPostgres returns an emptied shared database.
func setupPostgres(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	dbRequested.Store(true)
	db, err := sharedDB()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = db.pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(mutableTables, ", ")+" CASCADE")
	require.NoError(t, err)

	return db.pool, db.url
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pool, _ := setupPostgres(t)
	store, err := NewStore(pool, WithTxRetry(5, 10*time.Millisecond))
	require.NoError(t, err)
	return store
}

// insertUser writes a user row directly; the password hash is irrelevant here.
func insertUser(t *testing.T, pool *pgxpool.Pool, role auth.Role) auth.Principal {
	t.Helper()
	id := ids.MustNewULID()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, username, email, password_hash, user_type) VALUES ($1, $2, $3, 'x', $4)`,
		id, "user-"+strings.ToLower(id), strings.ToLower(id)+"@example.com", string(role),
	)
	require.NoError(t, err)
	return auth.Principal{UserID: id, Role: role}
}

func TestShortModeNeverRequestsDatabase(t *testing.T) {
	if !testing.Short() {
		t.Skip("only meaningful with -short")
	}
	t.Run("setup skips", func(t *testing.T) {
		setupPostgres(t)
	})
	require.False(t, dbRequested.Load(), "short runs must not start a container")
}
