package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"sms-support-server/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder syntax and error classification
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Database wraps the connection pool together with the clock that stamps rows
type Database struct {
	db      *sql.DB
	dialect Dialect
	clock   *monotonicClock
}

// NewDatabase opens dsn and creates the schema. postgres:// and postgresql://
// DSNs use the pgx driver; anything else is treated as a SQLite DSN.
func NewDatabase(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	driver, dialect, dsn := driverFor(dsn)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		// SQLite serializes writers; a single connection also keeps in-memory databases alive.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	if err := createTables(conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return &Database{db: conn, dialect: dialect, clock: &monotonicClock{}}, nil
}

func driverFor(dsn string) (string, Dialect, string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", DialectPostgres, dsn
	}

	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=1"
	}
	return "sqlite3", DialectSQLite, dsn
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		email TEXT,
		company TEXT,
		notes TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		customer_id TEXT REFERENCES customers(id) ON DELETE SET NULL,
		customer_phone TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL DEFAULT '',
		sender_type TEXT NOT NULL,
		recipient_phone TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		media_urls TEXT NOT NULL DEFAULT '[]',
		message_type TEXT NOT NULL DEFAULT 'sms',
		carrier_delivery_id TEXT UNIQUE,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		status TEXT NOT NULL DEFAULT 'online',
		role TEXT NOT NULL DEFAULT 'agent',
		password_hash TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_phone ON conversations(customer_phone, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status)`,
}

func createTables(conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// GetDB returns the underlying connection pool
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Dialect returns the SQL dialect in use
func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) Close() error {
	if d == nil {
		return errors.New("database is nil")
	}

	if d.db == nil {
		return errors.New("database already closed")
	}

	err := d.db.Close()
	d.db = nil
	return err
}

// Rebind rewrites ? placeholders for the active dialect
func (d *Database) Rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Now returns a timestamp strictly later than any previously returned one
func (d *Database) Now() time.Time {
	return d.clock.now()
}

type monotonicClock struct {
	mu   sync.Mutex
	last int64
}

func (c *monotonicClock) now() time.Time {
	n := time.Now().UnixNano()

	c.mu.Lock()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	c.mu.Unlock()

	return time.Unix(0, n).UTC()
}

func toTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// classifyWriteError maps constraint violations onto the error taxonomy
func classifyWriteError(err error, action, conflictMsg, missingMsg string) error {
	switch {
	case isUniqueViolation(err):
		return apperrors.Conflict(conflictMsg, err)
	case isForeignKeyViolation(err) && missingMsg != "":
		return apperrors.NotFound(missingMsg)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}
