/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine runs one play session of a compiled script for a host (the
// console player, tests, a future UI). It owns the interpreter and wires it to
// save files, the cross-playthrough tables, the rollback trail and the save
// catalog. Each Step returns the next visible state; there are no callbacks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vnengine/internal/ast"
	"vnengine/internal/history"
	"vnengine/internal/interp"
	applog "vnengine/internal/log"
	"vnengine/internal/persistence"
	"vnengine/internal/storage"
)

var (
	// ErrNotStarted is returned by calls that need a running session.
	ErrNotStarted = errors.New("session not started")
	// ErrNoHistory is returned by Rollback when there is no earlier line.
	ErrNoHistory = errors.New("nothing to roll back to")
)

// Catalog records save metadata. *storage.Catalog implements it.
type Catalog interface {
	RecordSave(ctx context.Context, rec storage.SaveRecord) error
}

// Options configure a session. Empty directories keep everything in memory
// for that concern (no save files, no persistent tables).
type Options struct {
	// Script names the script in catalog records.
	Script         string
	SavesDir       string
	PersistenceDir string
	Catalog        Catalog
	History        history.Config
}

// State is the visible result of Step: Dialogue, Choice or Finished.
type State interface {
	state()
}

// Dialogue is a line to show. Seen is true when the line was passed in this
// or an earlier playthrough.
type Dialogue struct {
	Speaker string
	Text    string
	Seen    bool
	Path    string
	Index   int16
}

// ChoiceOption is a selectable option; Index is what SelectChoice expects.
type ChoiceOption struct {
	Index int
	Label string
}

// Choice lists the options whose guard passed.
type Choice struct {
	Options []ChoiceOption
}

// Finished means the script ran to its end.
type Finished struct{}

func (Dialogue) state() {}
func (Choice) state()   {}
func (Finished) state() {}

// Engine is driven by one goroutine at a time.
type Engine struct {
	prog    *ast.Program
	opt     Options
	in      *interp.Interpreter
	saves   *persistence.SaveStore
	store   *persistence.Store
	hist    *history.Stack
	ctx     context.Context
	log     *slog.Logger
	current State
	// showing is true while the newest history snapshot is the line on screen.
	showing bool
}

// New prepares a session for prog. Start must be called before Step.
func New(prog *ast.Program, opt Options) *Engine {
	e := &Engine{
		prog: prog,
		opt:  opt,
		hist: history.New(opt.History),
		ctx:  context.Background(),
		log:  applog.WithComponent("engine"),
	}
	if opt.SavesDir != "" {
		e.saves = persistence.NewSaveStore(opt.SavesDir)
	}
	if opt.PersistenceDir != "" {
		e.store = persistence.NewStore(opt.PersistenceDir)
	}
	return e
}

// Start begins a session: fresh when saveName is empty, otherwise resumed from
// that save. The persistent tables are loaded first and never make Start fail.
func (e *Engine) Start(ctx context.Context, saveName string) error {
	session := saveName
	if session == "" {
		session = "new"
	}
	e.ctx = applog.ContextWithSession(ctx, session)

	st := interp.RunState{}
	if e.store != nil {
		st.Persistent = e.store.LoadVariables()
		st.Seen = e.store.LoadSeen()
	}
	if saveName != "" {
		sv, err := e.readSave(saveName)
		if err != nil {
			return err
		}
		st.Stack, st.Variables = sv.Stack, sv.Variables
	}
	in := interp.New()
	if err := in.Run(e.prog, st); err != nil {
		return err
	}
	e.in = in
	e.current = nil
	e.showing = false
	e.hist.Clear()
	e.log.InfoContext(e.ctx, "session started", slog.String("script", e.opt.Script), slog.Bool("resumed", saveName != ""))
	return nil
}

// Step advances to the next visible state.
func (e *Engine) Step() (State, error) {
	if e.in == nil {
		return nil, ErrNotStarted
	}
	st, err := e.in.Advance()
	if err != nil {
		e.log.ErrorContext(e.ctx, "advance failed", slog.Any("err", err))
		return nil, err
	}
	e.showing = false
	switch s := st.(type) {
	case interp.ShowDialogue:
		d := Dialogue{
			Speaker: s.Node.Speaker,
			Text:    s.Node.Text,
			Seen:    e.in.IsDialogueSeen(s),
			Path:    s.Path,
			Index:   s.Node.Index,
		}
		e.snapshot(d.Text)
		e.current = d
		return d, nil
	case interp.ShowChoice:
		c := Choice{Options: make([]ChoiceOption, 0, len(s.Available))}
		for _, i := range s.Available {
			c.Options = append(c.Options, ChoiceOption{Index: i, Label: s.Node.Options[i].Label})
		}
		e.current = c
		return c, nil
	default:
		e.current = Finished{}
		e.log.InfoContext(e.ctx, "script finished")
		return Finished{}, nil
	}
}

// Current returns the state returned by the last Step (nil before the first).
func (e *Engine) Current() State { return e.current }

// SavesDir is the configured saves directory ("" when saving is disabled).
func (e *Engine) SavesDir() string { return e.opt.SavesDir }

// SelectChoice resolves the pending choice with an option index from Choice.Options.
func (e *Engine) SelectChoice(index int) error {
	if e.in == nil {
		return ErrNotStarted
	}
	if err := e.in.SelectChoice(index); err != nil {
		return err
	}
	e.log.DebugContext(e.ctx, "choice selected", slog.Int("index", index))
	e.current = nil
	return nil
}

// SetPersistent stores a variable that survives playthroughs.
func (e *Engine) SetPersistent(name string, v ast.Value) error {
	if e.in == nil {
		return ErrNotStarted
	}
	e.in.Context().SetPersistent(name, v)
	return nil
}

// Variable reads a run or persistent variable.
func (e *Engine) Variable(name string) (ast.Value, bool) {
	if e.in == nil {
		return ast.Value{}, false
	}
	return e.in.Context().Lookup(name)
}

func (e *Engine) snapshotSave() persistence.Save {
	c := e.in.Context()
	return persistence.Save{Variables: c.Variables(), Stack: c.Stack()}
}

func (e *Engine) snapshot(label string) {
	blob, err := persistence.EncodeSave(e.snapshotSave())
	if err != nil {
		e.log.WarnContext(e.ctx, "rollback snapshot skipped", slog.Any("err", err))
		return
	}
	e.hist.Push(history.Snapshot{Label: label, Blob: blob})
	e.showing = true
}

// Rollback returns to the previous dialogue line; the next Step shows it
// again. At a choice it returns to the line shown before the choice.
func (e *Engine) Rollback() error {
	if e.in == nil {
		return ErrNotStarted
	}
	need := 1
	if e.showing {
		need = 2
	}
	if e.hist.Len() < need {
		return ErrNoHistory
	}
	if e.showing {
		e.hist.Pop()
	}
	prev, _ := e.hist.Pop()
	sv, err := persistence.DecodeSave(prev.Blob)
	if err != nil {
		return fmt.Errorf("decode rollback snapshot: %w", err)
	}
	if err := e.restore(sv); err != nil {
		return err
	}
	e.log.InfoContext(e.ctx, "rolled back", slog.String("line", prev.Label))
	return nil
}

// restore swaps in a new interpreter positioned at sv, carrying over the
// persistent and seen tables. The running interpreter is kept on failure.
func (e *Engine) restore(sv persistence.Save) error {
	c := e.in.Context()
	in := interp.New()
	if err := in.Run(e.prog, interp.RunState{
		Stack:      sv.Stack,
		Variables:  sv.Variables,
		Persistent: c.Persistent(),
		Seen:       c.Seen(),
	}); err != nil {
		return err
	}
	e.in = in
	e.current = nil
	e.showing = false
	return nil
}

// Close persists the cross-playthrough tables.
func (e *Engine) Close() error {
	if e.in == nil || e.store == nil {
		return nil
	}
	return e.flushStore()
}

func (e *Engine) flushStore() error {
	c := e.in.Context()
	var errs []error
	if err := e.store.SaveVariables(c.Persistent()); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.SaveSeen(c.Seen()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
