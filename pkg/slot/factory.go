package slot

import (
	"context"
	"fmt"
)

// Driver identifies a slot backend.
type Driver string

const (
	// DriverSQLite is the embedded default.
	DriverSQLite Driver = "sqlite"
	// DriverRedis stores slots in a Redis server.
	DriverRedis Driver = "redis"
	// DriverPostgres stores slots in a Postgres table.
	DriverPostgres Driver = "postgres"
	// DriverMemory keeps slots in process memory; nothing survives a restart.
	DriverMemory Driver = "memory"
)

// Validate checks if the Driver is a known value.
func (d Driver) Validate() error {
	switch d {
	case DriverSQLite, DriverRedis, DriverPostgres, DriverMemory:
		return nil
	default:
		return fmt.Errorf("unknown storage driver: %q", d)
	}
}

// Options selects and configures a backend.
type Options struct {
	Driver      Driver
	SQLitePath  string
	RedisURL    string
	PostgresDSN string
}

// Open constructs the backend named by opts.Driver (default sqlite).
// For redis the connection is verified with a ping before returning.
func Open(ctx context.Context, opts Options) (Backend, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.PostgresDSN)
	case DriverRedis:
		r, err := NewRedisFromURL(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("could not connect to Redis at %s: %w", opts.RedisURL, err)
		}
		return r, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, driver.Validate()
	}
}
