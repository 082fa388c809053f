package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	codeUndefinedTable        = "42P01"
	codeInsufficientPrivilege = "42501"

	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/arksync?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const provisionDDL = `CREATE TABLE IF NOT EXISTS arksync_records (
	collection TEXT NOT NULL,
	record_key TEXT NOT NULL,
	payload JSONB NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, record_key)
)`

const upsertSQL = `INSERT INTO arksync_records (collection, record_key, payload, is_deleted, updated_at)
VALUES ($1, $2, $3::jsonb, COALESCE($4, FALSE), now())
ON CONFLICT (collection, record_key) DO UPDATE SET
	payload = arksync_records.payload || EXCLUDED.payload,
	is_deleted = COALESCE($4, arksync_records.is_deleted),
	updated_at = now()`

const softDeleteSQL = `UPDATE arksync_records
SET is_deleted = TRUE, payload = payload || '{"is_deleted": true}'::jsonb, updated_at = now()
WHERE collection = $1 AND record_key = $2`

// PostgresStore keeps every row in one arksync_records table with the row
// itself as a JSONB payload.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn (falls back to defaultDSN) and pings it. The
// table is not created here; see Provision.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", pgError(err))
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Provision(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, provisionDDL); err != nil {
		return fmt.Errorf("provision: %w", pgError(err))
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, collection string, rows []Row) (int, error) {
	field, err := KeyField(collection)
	if err != nil {
		return 0, err
	}
	type prepared struct {
		key     string
		payload []byte
		deleted sql.NullBool
	}
	batch := make([]prepared, 0, len(rows))
	for i, row := range rows {
		key, err := keyOf(row, field)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		payload, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("encode row %d: %w", i, err)
		}
		p := prepared{key: key, payload: payload}
		if v, ok := deletedFlag(row); ok {
			p.deleted = sql.NullBool{Bool: v, Valid: true}
		}
		batch = append(batch, p)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", pgError(err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, p := range batch {
		if _, err := tx.ExecContext(ctx, upsertSQL, collection, p.key, p.payload, p.deleted); err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", collection, p.key, pgError(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", pgError(err))
	}
	committed = true
	return len(batch), nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, collection, key string) error {
	if _, err := KeyField(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, softDeleteSQL, collection, key)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, key, pgError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, collection, key)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Row, error) {
	if _, err := KeyField(collection); err != nil {
		return nil, err
	}
	all, err := s.query(ctx, `SELECT collection, payload, is_deleted FROM arksync_records WHERE collection = $1 ORDER BY record_key`, collection)
	if err != nil {
		return nil, err
	}
	out := all[collection]
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (map[string][]Row, error) {
	out, err := s.query(ctx, `SELECT collection, payload, is_deleted FROM arksync_records ORDER BY collection, record_key`)
	if err != nil {
		return nil, err
	}
	for _, c := range Collections {
		if out[c] == nil {
			out[c] = []Row{}
		}
	}
	return out, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) (map[string][]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", pgError(err))
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]Row)
	for rows.Next() {
		var (
			collection string
			payload    []byte
			deleted    bool
		)
		if err := rows.Scan(&collection, &payload, &deleted); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		row := Row{}
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		row[DeletedColumn] = deleted
		out[collection] = append(out[collection], row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", pgError(err))
	}
	return out, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// pgError marks missing-table (42P01) and missing-grant (42501) failures with
// ErrNotProvisioned. The pgx message already carries the SQLSTATE.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeUndefinedTable || pgErr.Code == codeInsufficientPrivilege) {
		return fmt.Errorf("%w: %w", ErrNotProvisioned, err)
	}
	return err
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
