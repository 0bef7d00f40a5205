/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// createdLayout is fixed width so the TEXT column sorts chronologically.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// SaveRecord is the catalog entry describing one save file.
// TopPath is the path id of the innermost frame, Preview the dialogue line
// on screen when the save was taken (empty at a choice).
type SaveRecord struct {
	Name      string
	Script    string
	CreatedAt time.Time
	Depth     int
	TopPath   string
	Preview   string
}

// RecordSave inserts or replaces the entry for rec.Name.
func (c *Catalog) RecordSave(ctx context.Context, rec SaveRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return errors.New("save name is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := c.exec(ctx, `INSERT INTO saves (name, script, created_at, depth, top_path, preview)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			script = excluded.script,
			created_at = excluded.created_at,
			depth = excluded.depth,
			top_path = excluded.top_path,
			preview = excluded.preview`,
		rec.Name, rec.Script, rec.CreatedAt.UTC().Format(createdLayout), rec.Depth, rec.TopPath, rec.Preview)
	if err != nil {
		return fmt.Errorf("record save %q: %w", rec.Name, err)
	}
	return nil
}

// ListSaves returns the catalog entries, newest first.
func (c *Catalog) ListSaves(ctx context.Context) ([]SaveRecord, error) {
	rows, err := c.query(ctx, `SELECT name, script, created_at, depth, top_path, preview
		FROM saves ORDER BY created_at DESC, name DESC`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()
	var out []SaveRecord
	for rows.Next() {
		var r SaveRecord
		var ts string
		if err := rows.Scan(&r.Name, &r.Script, &ts, &r.Depth, &r.TopPath, &r.Preview); err != nil {
			return nil, fmt.Errorf("scan save row: %w", err)
		}
		if t, err := time.Parse(createdLayout, ts); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSave removes the entry for name. Missing entries are not an error.
func (c *Catalog) DeleteSave(ctx context.Context, name string) error {
	if _, err := c.exec(ctx, `DELETE FROM saves WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete save %q: %w", name, err)
	}
	return nil
}
