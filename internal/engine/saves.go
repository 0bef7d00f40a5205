/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	applog "vnengine/internal/log"
	"vnengine/internal/persistence"
	"vnengine/internal/storage"
)

// ErrNoSavesDir is returned by save operations when no saves directory is configured.
var ErrNoSavesDir = errors.New("no saves directory configured")

// Save writes the session under name (a timestamp when empty) and returns the
// final name. The persistent tables are flushed as well. A catalog failure is
// logged and does not fail the save.
func (e *Engine) Save(ctx context.Context, name string) (string, error) {
	if e.in == nil {
		return "", ErrNotStarted
	}
	if e.saves == nil {
		return "", ErrNoSavesDir
	}
	l := applog.WithOperation(e.log, "save")
	sv := e.snapshotSave()
	final, err := e.saves.Write(name, sv)
	if err != nil {
		l.ErrorContext(e.ctx, "save failed", slog.String("name", name), slog.Any("err", err))
		return "", err
	}
	if e.store != nil {
		if err := e.flushStore(); err != nil {
			return final, fmt.Errorf("save %q written, persistent tables not: %w", final, err)
		}
	}
	if e.opt.Catalog != nil {
		rec := storage.SaveRecord{Name: final, Script: e.opt.Script, CreatedAt: time.Now(), Depth: len(sv.Stack)}
		if n := len(sv.Stack); n > 0 {
			rec.TopPath = sv.Stack[n-1].Path
		}
		if d, ok := e.current.(Dialogue); ok {
			rec.Preview = d.Text
		}
		if err := e.opt.Catalog.RecordSave(ctx, rec); err != nil {
			l.WarnContext(e.ctx, "catalog update failed", slog.String("name", final), slog.Any("err", err))
		}
	}
	return final, nil
}

// Load replaces the running session with the save called name. On any error
// the running session is left untouched.
func (e *Engine) Load(ctx context.Context, name string) error {
	if e.in == nil {
		return ErrNotStarted
	}
	sv, err := e.readSave(name)
	if err != nil {
		return err
	}
	if err := e.restore(sv); err != nil {
		applog.WithOperation(e.log, "load").WarnContext(e.ctx, "save does not fit the script", slog.String("name", name), slog.Any("err", err))
		return err
	}
	e.hist.Clear()
	e.ctx = applog.ContextWithSession(ctx, name)
	e.log.InfoContext(e.ctx, "save loaded", slog.Int("frames", len(sv.Stack)))
	return nil
}

// ListSaves lists the save files, newest first.
func (e *Engine) ListSaves(ctx context.Context) ([]persistence.SaveInfo, error) {
	if e.saves == nil {
		return nil, ErrNoSavesDir
	}
	return e.saves.List()
}

func (e *Engine) readSave(name string) (persistence.Save, error) {
	if e.saves == nil {
		return persistence.Save{}, ErrNoSavesDir
	}
	return e.saves.Read(name)
}
