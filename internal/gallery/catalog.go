package gallery

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"image-stitcher/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// CatalogFileName is the catalog database inside the config directory.
const CatalogFileName = "gallery.db"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var (
	// ErrSchemaMismatch indicates the catalog was written by another version.
	ErrSchemaMismatch = errors.New("gallery catalog schema version mismatch")
	// ErrNotFound is returned when no saved item matches.
	ErrNotFound = errors.New("gallery item not found")
)

// Catalog records every asset saved to the gallery.
type Catalog struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenCatalog initializes or connects to the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &Catalog{db: db, path: path, now: time.Now}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Path returns the database location.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Catalog) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return c.createSchema(ctx)
	}

	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, c.path)
	}
	return nil
}

func (c *Catalog) createSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Insert records a saved asset. ID and CreatedAt are filled when empty.
// Saving over an existing path replaces its row.
func (c *Catalog) Insert(ctx context.Context, item domain.GalleryItem) (domain.GalleryItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = c.now().UTC()
	}
	err := retryOnBusy(ctx, func() error {
		_, execErr := c.db.ExecContext(ctx, `
			INSERT INTO gallery_items (id, display_name, path, mime_type, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				id = excluded.id,
				display_name = excluded.display_name,
				mime_type = excluded.mime_type,
				size_bytes = excluded.size_bytes,
				created_at = excluded.created_at`,
			item.ID, item.DisplayName, item.Path, item.MimeType, item.SizeBytes,
			item.CreatedAt.Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return domain.GalleryItem{}, fmt.Errorf("insert gallery item: %w", err)
	}
	return item, nil
}

// List returns saved items, newest first.
func (c *Catalog) List(ctx context.Context) ([]domain.GalleryItem, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, display_name, path, mime_type, size_bytes, created_at
		FROM gallery_items
		ORDER BY created_at DESC, display_name DESC`)
	if err != nil {
		return nil, fmt.Errorf("list gallery items: %w", err)
	}
	defer rows.Close()

	var items []domain.GalleryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery items: %w", err)
	}
	return items, nil
}

// FindByName returns the most recent item saved under displayName.
func (c *Catalog) FindByName(ctx context.Context, displayName string) (domain.GalleryItem, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, display_name, path, mime_type, size_bytes, created_at
		FROM gallery_items
		WHERE display_name = ?
		ORDER BY created_at DESC
		LIMIT 1`, displayName)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GalleryItem{}, fmt.Errorf("%w: %s", ErrNotFound, displayName)
	}
	return item, err
}

// Remove deletes the row for path, if any.
func (c *Catalog) Remove(ctx context.Context, path string) error {
	return retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx, "DELETE FROM gallery_items WHERE path = ?", path)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.GalleryItem, error) {
	var (
		item      domain.GalleryItem
		createdAt string
	)
	if err := row.Scan(&item.ID, &item.DisplayName, &item.Path, &item.MimeType, &item.SizeBytes, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GalleryItem{}, err
		}
		return domain.GalleryItem{}, fmt.Errorf("scan gallery item: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.GalleryItem{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	item.CreatedAt = ts
	return item, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
