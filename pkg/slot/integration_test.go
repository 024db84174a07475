//go:build integration

package slot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// setupPostgres starts a Postgres container for testing.
func setupPostgres(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "beatflow",
			"POSTGRES_PASSWORD": "beatflow",
			"POSTGRES_DB":       "beatflow",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	})

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://beatflow:beatflow@%s:%s/beatflow?sslmode=disable", host, port.Port())
}

func TestRedisBackend_Integration(t *testing.T) {
	url := setupRedis(t)
	runBackendContract(t, func(t *testing.T) Backend {
		b, err := Open(context.Background(), Options{Driver: DriverRedis, RedisURL: url})
		require.NoError(t, err)
		// Each subtest gets a clean server.
		require.NoError(t, b.(*Redis).rdb.FlushAll(context.Background()).Err())
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestPostgresBackend_Integration(t *testing.T) {
	dsn := setupPostgres(t)
	runBackendContract(t, func(t *testing.T) Backend {
		b, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		_, err = b.db.Exec("TRUNCATE " + slotTable)
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}
