package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects placeholder style and error codes of the SQL backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const createProjectsTable = `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		document   TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

// SQLBackend stores project documents as rows of the projects table. Every save is a
// single-row upsert, so readers see the previous or the new document.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLBackend(db *sql.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect}
}

// EnsureSchema creates the projects table if it does not exist.
func (b *SQLBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createProjectsTable); err != nil {
		return fmt.Errorf("%w: create projects table: %w", ErrStorageIO, err)
	}
	return nil
}

// rebind converts $N placeholders to ? for sqlite. Every query uses its placeholders in order.
func (b *SQLBackend) rebind(query string) string {
	if b.dialect != DialectSQLite {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

func (b *SQLBackend) Load(ctx context.Context, id string) ([]byte, error) {
	query := b.rebind(`SELECT document FROM projects WHERE id = $1`)

	var doc string
	err := b.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("%w: load project %s: %w", ErrStorageIO, id, err)
	}
	return []byte(doc), nil
}

func (b *SQLBackend) Save(ctx context.Context, id, ownerID string, doc []byte) error {
	query := b.rebind(`
		INSERT INTO projects (id, owner_id, document, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`)

	if _, err := b.db.ExecContext(ctx, query, id, ownerID, string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: save project %s: %w", ErrStorageIO, id, err)
	}
	return nil
}

func (b *SQLBackend) Create(ctx context.Context, id, ownerID string, doc []byte) error {
	query := b.rebind(`INSERT INTO projects (id, owner_id, document, updated_at) VALUES ($1, $2, $3, $4)`)

	_, err := b.db.ExecContext(ctx, query, id, ownerID, string(doc), time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProjectExists
		}
		return fmt.Errorf("%w: create project %s: %w", ErrStorageIO, id, err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, id string) error {
	query := b.rebind(`DELETE FROM projects WHERE id = $1`)

	result, err := b.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: delete project %s: %w", ErrStorageIO, id, err)
	}
	return checkAffectedRows(result, ErrProjectNotFound)
}

func (b *SQLBackend) List(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %w", ErrStorageIO, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan project id: %w", ErrStorageIO, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate projects: %w", ErrStorageIO, err)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
