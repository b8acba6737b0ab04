package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"burrow/internal/dict"
	"burrow/internal/slogutil"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

// SQLiteStore keeps sessions in a SQLite database as JSON documents.
type SQLiteStore struct {
	conn   *sql.DB
	opts   options
	logger *slog.Logger
	path   string
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string, logger *slog.Logger, opts ...Option) (*SQLiteStore, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if inMemory {
		// every pooled connection would otherwise get its own database
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Debug("Session database ready", "path", path)
	return &SQLiteStore{conn: conn, opts: buildOptions(opts), logger: logger, path: path}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*dict.Dict, error) {
	var (
		data    string
		expires int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE id = ?`, id).Scan(&data, &expires)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if s.opts.expired(fromUnix(expires)) {
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			s.logger.Warn("Failed to delete expired session", "id", id, "error", err.Error())
		}
		return nil, notFound(id)
	}

	d, err := dict.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decode session %q: %w", id, err)
	}
	return d, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, id string, d *dict.Dict) error {
	data, err := d.ToJSON(false)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, data, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		id, string(data), toUnix(s.opts.expiry()), s.opts.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at != 0 AND expires_at <= ?`, s.opts.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("Purged expired sessions", "count", n)
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
