/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"vnengine/internal/ast"
	applog "vnengine/internal/log"
)

// Document kinds stored in the search index.
const (
	KindDialogue = "dialogue"
	KindChoice   = "choice"
)

// SearchQuery describes a dialogue search.
// Text is matched as a phrase (FTS5 on SQLite, ILIKE on Postgres); empty Text
// lists everything that passes the filters.
// Limit/Offset implement pagination; Limit defaults to 100.
type SearchQuery struct {
	Text    string
	Script  string
	Speaker string
	Kinds   []string
	Limit   int
	Offset  int
}

// SearchResult is one indexed line. Snippet highlights the match with [ ]
// markers on SQLite and is the plain text on Postgres.
type SearchResult struct {
	DocID     int64
	Script    string
	Kind      string
	Path      string
	LineIndex int
	Speaker   string
	Text      string
	Snippet   string
}

type document struct {
	kind    string
	path    string
	index   int
	speaker string
	text    string
}

// collectDocuments flattens prog into searchable rows in depth-first order.
// Dialogue rows carry the per-scope line index, choice rows the option index.
func collectDocuments(prog *ast.Program) []document {
	var out []document
	var body func(scope string, stmts []ast.Stmt)
	body = func(scope string, stmts []ast.Stmt) {
		for _, st := range stmts {
			switch s := st.(type) {
			case *ast.Dialogue:
				out = append(out, document{kind: KindDialogue, path: scope, index: int(s.Index), speaker: s.Speaker, text: s.Text})
			case *ast.IfStatement:
				for _, br := range s.Branches {
					body(br.Key(), br.Body)
				}
				if s.Else != nil {
					body(s.Else.Key(), s.Else.Body)
				}
			case *ast.ChoiceStatement:
				for i, o := range s.Options {
					out = append(out, document{kind: KindChoice, path: o.Key(), index: i, text: o.Label})
					body(o.Key(), o.Body)
				}
			}
		}
	}
	var block func(b *ast.Block)
	block = func(b *ast.Block) {
		body(b.Key(), b.Body)
		for _, name := range b.SortedNames() {
			block(b.Blocks[name])
		}
	}
	for _, name := range prog.SortedNames() {
		block(prog.Blocks[name])
	}
	return out
}

// IndexScript replaces the indexed lines of script with the content of prog,
// which must be indexed. It returns the number of rows written.
func (c *Catalog) IndexScript(ctx context.Context, script string, prog *ast.Program) (int, error) {
	l := applog.WithOperation(c.log, "index_script").With(slog.String("script", script))
	docs := collectDocuments(prog)
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, rebind(c.dialect, `DELETE FROM documents WHERE script = ?`), script); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, rebind(c.dialect, `INSERT INTO documents (script, kind, path, line_index, speaker, text) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, script, d.kind, d.path, d.index, d.speaker, d.text); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert document %s#%d: %w", d.path, d.index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.Info("script indexed", slog.Int("documents", len(docs)))
	return len(docs), nil
}

// Search runs q against the indexed lines.
func (c *Catalog) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	text := strings.TrimSpace(q.Text)
	switch {
	case text != "" && c.dialect == dialectSQLite:
		sb.WriteString("SELECT d.doc_id, d.script, d.kind, d.path, d.line_index, d.speaker, d.text, snippet(fts_documents, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, ftsPhrase(text))
	case text != "":
		sb.WriteString("SELECT d.doc_id, d.script, d.kind, d.path, d.line_index, d.speaker, d.text, d.text\n")
		sb.WriteString("FROM documents d\nWHERE d.text ILIKE ?\n")
		args = append(args, likeContains(escapeLike(text)))
	default:
		sb.WriteString("SELECT d.doc_id, d.script, d.kind, d.path, d.line_index, d.speaker, d.text, ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.Script); s != "" {
		sb.WriteString(" AND d.script = ?\n")
		args = append(args, s)
	}
	if s := strings.TrimSpace(q.Speaker); s != "" {
		sb.WriteString(" AND lower(d.speaker) = ?\n")
		args = append(args, strings.ToLower(s))
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND d.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	sb.WriteString("ORDER BY d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := c.query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Script, &r.Kind, &r.Path, &r.LineIndex, &r.Speaker, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsPhrase quotes user text as a single FTS5 phrase so punctuation and
// operator words are matched literally.
func ftsPhrase(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func likeContains(s string) string { return "%" + s + "%" }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
