/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage keeps the save catalog and the dialogue search index.
// The catalog is a secondary index next to the .save files: it can always be
// rebuilt from them and from the script, so failures here never fail a save.
// Local catalogs are embedded SQLite files (WAL, FTS5); a postgres:// DSN
// selects a shared Postgres catalog through pgx.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "vnengine/internal/log"
	"vnengine/internal/version"

	// Postgres driver registered as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// CatalogFileName is the default catalog file inside the saves directory.
	CatalogFileName = "catalog.sqlite"

	// schemaVersion tracks the catalog schema. Bump it and add a migration step
	// on breaking changes.
	schemaVersion = 2
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Catalog is safe for concurrent use (database/sql pools connections).
type Catalog struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
}

// IsPostgresDSN reports whether dsn addresses a Postgres server.
func IsPostgresDSN(dsn string) bool {
	d := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://")
}

// DefaultPath returns the catalog file used when no DSN is configured.
func DefaultPath(savesDir string) string {
	return filepath.Join(savesDir, CatalogFileName)
}

// OpenCatalog opens (creating when needed) the catalog behind dsn: a
// postgres:// URL, or a SQLite file path.
func OpenCatalog(ctx context.Context, dsn string) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "catalog_open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("catalog dsn is required")
	}
	c := &Catalog{log: applog.WithComponent("storage")}
	if IsPostgresDSN(dsn) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		c.db, c.dialect = db, dialectPostgres
	} else {
		db, err := openSQLite(ctx, dsn)
		if err != nil {
			l.Error("sqlite open failed", slog.String("path", dsn), slog.Any("err", err))
			return nil, err
		}
		c.db, c.dialect = db, dialectSQLite
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.ensureVersion(sctx); err != nil {
		_ = c.db.Close()
		return nil, err
	}
	if err := c.ensureSchema(sctx); err != nil {
		_ = c.db.Close()
		return nil, err
	}
	if err := c.runMigrations(sctx); err != nil {
		_ = c.db.Close()
		return nil, err
	}
	l.Info("catalog ready", slog.String("backend", c.backend()))
	return c, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	return db, nil
}

func (c *Catalog) backend() string {
	if c.dialect == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Close releases the underlying pool.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SchemaVersion reads the schema version recorded in the catalog.
func (c *Catalog) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := c.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (c *Catalog) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, rebind(c.dialect, q), args...)
}

func (c *Catalog) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, rebind(c.dialect, q), args...)
}

// rebind rewrites ? placeholders to $n for Postgres. Queries in this package
// never carry a literal question mark.
func rebind(d dialect, q string) string {
	if d != dialectPostgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
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

func (c *Catalog) ensureVersion(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := c.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := c.exec(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for runMigrations
		if _, err := c.exec(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func (c *Catalog) ensureSchema(ctx context.Context) error {
	var ddl []string
	if c.dialect == dialectPostgres {
		ddl = []string{
			`CREATE TABLE IF NOT EXISTS saves (
				name       TEXT PRIMARY KEY,
				script     TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				depth      INTEGER NOT NULL,
				top_path   TEXT NOT NULL,
				preview    TEXT NOT NULL DEFAULT ''
			);`,
			`CREATE TABLE IF NOT EXISTS documents (
				doc_id     BIGSERIAL PRIMARY KEY,
				script     TEXT NOT NULL,
				kind       TEXT NOT NULL,
				path       TEXT NOT NULL,
				line_index INTEGER NOT NULL,
				speaker    TEXT NOT NULL DEFAULT '',
				text       TEXT NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_documents_script ON documents(script);`,
			`CREATE INDEX IF NOT EXISTS idx_documents_speaker ON documents(speaker);`,
			`CREATE INDEX IF NOT EXISTS idx_saves_created ON saves(created_at);`,
		}
	} else {
		ddl = []string{
			`CREATE TABLE IF NOT EXISTS saves (
				name       TEXT PRIMARY KEY,
				script     TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				depth      INTEGER NOT NULL,
				top_path   TEXT NOT NULL,
				preview    TEXT NOT NULL DEFAULT ''
			);`,
			`CREATE TABLE IF NOT EXISTS documents (
				doc_id     INTEGER PRIMARY KEY,
				script     TEXT    NOT NULL,
				kind       TEXT    NOT NULL,
				path       TEXT    NOT NULL,
				line_index INTEGER NOT NULL,
				speaker    TEXT    NOT NULL DEFAULT '',
				text       TEXT    NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_documents_script ON documents(script);`,
			`CREATE INDEX IF NOT EXISTS idx_documents_speaker ON documents(speaker);`,
			`CREATE INDEX IF NOT EXISTS idx_saves_created ON saves(created_at);`,
			// External-content FTS5 index over documents.text, kept in sync by triggers.
			`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
				text,
				content='documents',
				content_rowid='doc_id',
				tokenize = 'unicode61'
			);`,
			`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
			END;`,
			`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			END;`,
			`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
				INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
				INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
			END;`,
		}
	}
	for _, q := range ddl {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func (c *Catalog) runMigrations(ctx context.Context) error {
	cur, err := c.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if cur > schemaVersion {
		c.log.Warn("catalog schema is newer than this build", slog.Int("schema", cur), slog.Int("supported", schemaVersion))
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 catalogs lack the lookup indexes
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_saves_created ON saves(created_at);`,
				`CREATE INDEX IF NOT EXISTS idx_documents_speaker ON documents(speaker);`,
			}
		}
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, rebind(c.dialect, `UPDATE version SET schema=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		c.log.Info("catalog migrated", slog.Int("schema", next))
		cur = next
	}
	return nil
}
