package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Dialect captures the few differences between the SQL engines a slot table can
// live in.
type Dialect struct {
	Name       string
	DriverName string
	BlobType   string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	// SQLiteDialect targets modernc.org/sqlite.
	SQLiteDialect = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite",
		BlobType:    "BLOB",
		Placeholder: func(int) string { return "?" },
	}

	// PostgresDialect targets Postgres through pgx's database/sql adapter.
	PostgresDialect = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		BlobType:    "BYTEA",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

const slotTable = "beatflow_slots"

// SQL keeps slots in a single table. Every row carries a revision that is bumped
// on each write; Update only commits when the revision it read is still current.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

var sqlOpen = sql.Open

// OpenSQLite opens (creating if necessary) the sqlite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		path = "beatflow.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlOpen(SQLiteDialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY inside a process.
	db.SetMaxOpenConns(1)
	return newSQL(ctx, db, SQLiteDialect)
}

// OpenPostgres connects to the Postgres server at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sqlOpen(PostgresDialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQL(ctx, db, PostgresDialect)
}

func newSQL(ctx context.Context, db *sql.DB, d Dialect) (*SQL, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		slot_key TEXT PRIMARY KEY,
		payload %s NOT NULL,
		revision BIGINT NOT NULL
	)`, slotTable, d.BlobType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s table: %w", slotTable, err)
	}
	return &SQL{db: db, dialect: d}, nil
}

// Dialect reports which engine the backend talks to.
func (s *SQL) Dialect() Dialect { return s.dialect }

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	payload, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (s *SQL) Put(ctx context.Context, key string, data []byte) error {
	q := s.bind(`INSERT INTO %[1]s (slot_key, payload, revision) VALUES (?, ?, 1)
		ON CONFLICT (slot_key) DO UPDATE SET payload = excluded.payload, revision = %[1]s.revision + 1`)
	if _, err := s.db.ExecContext(ctx, q, key, nonNil(data)); err != nil {
		return fmt.Errorf("upsert slot %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Update(ctx context.Context, key string, fn UpdateFunc) error {
	current, revision, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}

	var res sql.Result
	if current == nil {
		q := s.bind(`INSERT INTO %[1]s (slot_key, payload, revision) VALUES (?, ?, 1)
			ON CONFLICT (slot_key) DO NOTHING`)
		res, err = s.db.ExecContext(ctx, q, key, nonNil(next))
	} else {
		q := s.bind(`UPDATE %[1]s SET payload = ?, revision = revision + 1 WHERE slot_key = ? AND revision = ?`)
		res, err = s.db.ExecContext(ctx, q, nonNil(next), key, revision)
	}
	if err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// load returns a nil payload when the row is missing.
func (s *SQL) load(ctx context.Context, key string) ([]byte, int64, error) {
	q := s.bind(`SELECT payload, revision FROM %[1]s WHERE slot_key = ?`)
	var (
		payload  []byte
		revision int64
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&payload, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("select slot %s: %w", key, err)
	}
	return nonNil(payload), revision, nil
}

// bind substitutes the table name and rewrites `?` markers for the dialect.
func (s *SQL) bind(tmpl string) string {
	q := fmt.Sprintf(tmpl, slotTable)
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// An empty blob is still a present slot, so keep it distinguishable from nil.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
