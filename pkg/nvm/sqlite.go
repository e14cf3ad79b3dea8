package nvm

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pion/logging"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// migrations is an ordered list of SQL statements applied on open.
// Each entry is idempotent (IF NOT EXISTS) so re-running is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cells (
		addr  INTEGER PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value BETWEEN 0 AND 255)
	)`,
}

// SQLiteConfig configures a SQLite-backed memory image.
type SQLiteConfig struct {
	// Path is the database file. Use ":memory:" for a throwaway database.
	Path string

	// Size is the number of addressable bytes.
	Size int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// SQLite is a Memory that keeps one row per written cell.
// Cells without a row read as zero. Each Write is one committed transaction
// with synchronous=FULL, so it is on disk when Write returns.
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	size   int
	closed bool
	log    logging.LeveledLogger
}

// OpenSQLite opens (or creates) the database and runs migrations.
func OpenSQLite(config SQLiteConfig) (*SQLite, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, config.Size)
	}

	dsn := config.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("nvm: open database: %w", err)
	}
	db.SetMaxOpenConns(1) // One writer; also keeps ":memory:" on a single connection.

	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("nvm: ping database: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, fmt.Errorf("nvm: migration: %w", err)
		}
	}

	m := &SQLite{db: db, size: config.Size}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("nvm")
		m.log.Infof("sqlite image %s ready (%d bytes)", config.Path, config.Size)
	}
	return m, nil
}

// Len implements Memory.
func (m *SQLite) Len() int { return m.size }

// Read implements Memory.
func (m *SQLite) Read(addr int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkBounds(addr, len(p), m.size); err != nil {
		return err
	}

	for i := range p {
		p[i] = 0
	}

	rows, err := m.db.QueryContext(context.Background(),
		`SELECT addr, value FROM cells WHERE addr >= ? AND addr < ?`, addr, addr+len(p))
	if err != nil {
		return fmt.Errorf("nvm: read cells: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var a, v int
		if err := rows.Scan(&a, &v); err != nil {
			return fmt.Errorf("nvm: scan cell: %w", err)
		}
		p[a-addr] = byte(v)
	}
	return rows.Err()
}

// Write implements Memory.
func (m *SQLite) Write(addr int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkBounds(addr, len(p), m.size); err != nil {
		return err
	}

	ctx := context.Background()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("nvm: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, b := range p {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cells (addr, value) VALUES (?, ?)
			 ON CONFLICT(addr) DO UPDATE SET value = excluded.value`,
			addr+i, int(b)); err != nil {
			return fmt.Errorf("nvm: write cell %d: %w", addr+i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("nvm: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (m *SQLite) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Verify SQLite implements Memory.
var _ Memory = (*SQLite)(nil)
