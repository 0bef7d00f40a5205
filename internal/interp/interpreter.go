/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interp executes an indexed program one visible step at a time.
//
// Advance runs silent statements (execute, assignment, if, ignored literals) in
// a loop and returns at the first dialogue line or choice, or Finished when the
// stack empties. A dialogue's frame only moves past the line on the following
// Advance, so a save taken while a line is showing resumes on that same line.
// Seen-dialogue watermarks are raised at that moment too.
//
// An Interpreter is driven by a single goroutine; it does no locking.
package interp

import (
	"errors"
	"log/slog"

	"vnengine/internal/ast"
	vlog "vnengine/internal/log"
	"vnengine/internal/parser"
	"vnengine/internal/vnerr"
)

var (
	// ErrChoicePending is wrapped by the error Advance returns while a choice
	// awaits SelectChoice.
	ErrChoicePending = errors.New("a choice is waiting for a selection")
	// ErrNotRunning is wrapped by errors from calls made before Run.
	ErrNotRunning = errors.New("interpreter is not running")
)

// RunState seeds a run. An empty Stack starts a fresh run at the "start" block.
type RunState struct {
	Stack      []SavedFrame
	Variables  map[string]ast.Value
	Persistent map[string]ast.Value
	Seen       map[string]int16
}

type Interpreter struct {
	ctx      *Context
	dialogue *ast.Dialogue
	choice   *ast.ChoiceStatement
	log      *slog.Logger
}

func New() *Interpreter {
	return &Interpreter{log: vlog.WithComponent("interpreter")}
}

// Run replaces any previous run. Programs that were not indexed yet are indexed
// first. Fails when the program has no start block (fresh run) or when a saved
// frame does not resolve against prog.
func (in *Interpreter) Run(prog *ast.Program, st RunState) error {
	if prog == nil {
		return vnerr.Runtimef("no program loaded")
	}
	if !indexed(prog) {
		prog = parser.Index(prog)
	}
	ctx := NewContext(prog, st.Variables, st.Persistent, st.Seen)
	if len(st.Stack) == 0 {
		start, ok := prog.Blocks["start"]
		if !ok {
			return vnerr.Runtimef("program must contain a \"start\" block")
		}
		s, _ := ctx.Scope(start.Key())
		if err := ctx.Push(s); err != nil {
			return err
		}
	} else if err := ctx.Restore(st.Stack); err != nil {
		return err
	}
	in.ctx = ctx
	in.dialogue = nil
	in.choice = nil
	in.log.Debug("run started", slog.Int("frames", ctx.Depth()), slog.Int("vars", len(ctx.vars)))
	return nil
}

func indexed(prog *ast.Program) bool {
	for _, b := range prog.Blocks {
		if b.Path == "" && b.AssignedID == "" {
			return false
		}
	}
	return true
}

// Context exposes the execution context of the current run (nil before Run).
func (in *Interpreter) Context() *Context { return in.ctx }

// PendingChoice returns the choice awaiting selection, if any.
func (in *Interpreter) PendingChoice() (*ast.ChoiceStatement, bool) {
	return in.choice, in.choice != nil
}

// Advance performs one visible step.
func (in *Interpreter) Advance() (State, error) {
	if in.ctx == nil {
		return nil, &vnerr.RuntimeError{Msg: "advance", Err: ErrNotRunning}
	}
	if in.choice != nil {
		return nil, &vnerr.RuntimeError{Msg: "advance", Err: ErrChoicePending}
	}
	if d := in.dialogue; d != nil {
		in.dialogue = nil
		if top := in.ctx.Top(); top != nil {
			in.ctx.MarkSeen(top.Scope.Path, d.Index)
		}
		in.ctx.Next()
	}

	for {
		top := in.ctx.Top()
		if top == nil {
			return Finished{}, nil
		}
		if top.Cursor >= len(top.Scope.Body) {
			in.ctx.Complete()
			continue
		}

		switch s := top.Scope.Body[top.Cursor].(type) {
		case *ast.Dialogue:
			in.dialogue = s
			return ShowDialogue{Node: s, Path: top.Scope.Path}, nil

		case *ast.ChoiceStatement:
			avail, err := in.available(s)
			if err != nil {
				return nil, err
			}
			if len(avail) == 0 {
				in.log.Warn("choice has no available options; skipping", slog.String("path", top.Scope.Path),
					slog.Int("line", s.Pos.Line), slog.Int("col", s.Pos.Col))
				in.ctx.Next()
				continue
			}
			in.choice = s
			return ShowChoice{Node: s, Available: avail, Path: top.Scope.Path}, nil

		case *ast.ExecuteStatement:
			b, ok := in.ctx.FindBlock(s.Target)
			if !ok {
				return nil, &vnerr.RuntimeError{Line: s.Pos.Line, Col: s.Pos.Col, Msg: "block \"" + s.Target + "\" not found"}
			}
			scope, _ := in.ctx.Scope(b.Key())
			if err := in.ctx.Push(scope); err != nil {
				return nil, err
			}

		case *ast.AssignStatement:
			v, err := in.eval(s.Value)
			if err != nil {
				return nil, at(s.Pos, err)
			}
			in.ctx.Assign(s.Variable, v)
			in.ctx.Next()

		case *ast.IfStatement:
			scope, err := in.branch(s)
			if err != nil {
				return nil, at(s.Pos, err)
			}
			if scope == nil {
				in.ctx.Next()
				continue
			}
			if err := in.ctx.Push(scope); err != nil {
				return nil, err
			}

		case *ast.IgnoredStatement:
			in.log.Warn("literal ignored", slog.String("value", s.Value),
				slog.Int("line", s.Pos.Line), slog.Int("col", s.Pos.Col))
			in.ctx.Next()

		default:
			return nil, vnerr.Runtimef("unexpected statement %T", s)
		}
	}
}

// branch picks the scope to run for an if statement, or nil when no branch
// matches and there is no else.
func (in *Interpreter) branch(s *ast.IfStatement) (*Scope, error) {
	for _, br := range s.Branches {
		ok, err := in.truthy(br.Condition)
		if err != nil {
			return nil, err
		}
		if ok {
			scope, _ := in.ctx.Scope(br.Key())
			return scope, nil
		}
	}
	if s.Else != nil {
		scope, _ := in.ctx.Scope(s.Else.Key())
		return scope, nil
	}
	return nil, nil
}

func (in *Interpreter) available(s *ast.ChoiceStatement) ([]int, error) {
	var out []int
	for i, o := range s.Options {
		if o.Guard == nil {
			out = append(out, i)
			continue
		}
		ok, err := in.truthy(o.Guard)
		if err != nil {
			return nil, at(o.Pos, err)
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// SelectChoice resolves the pending choice with the option at index (an index
// into the statement's Options, not into the available list). The option's
// guard is checked again.
func (in *Interpreter) SelectChoice(index int) error {
	if in.ctx == nil {
		return &vnerr.RuntimeError{Msg: "select choice", Err: ErrNotRunning}
	}
	ch := in.choice
	if ch == nil {
		return vnerr.Runtimef("no choice is pending")
	}
	if index < 0 || index >= len(ch.Options) {
		return vnerr.Runtimef("choice index %d out of range (0..%d)", index, len(ch.Options)-1)
	}
	opt := ch.Options[index]
	if opt.Guard != nil {
		ok, err := in.truthy(opt.Guard)
		if err != nil {
			return at(opt.Pos, err)
		}
		if !ok {
			return &vnerr.RuntimeError{Line: opt.Pos.Line, Col: opt.Pos.Col, Msg: "option \"" + opt.Label + "\" is not available"}
		}
	}
	scope, _ := in.ctx.Scope(opt.Key())
	if err := in.ctx.Push(scope); err != nil {
		return err
	}
	in.choice = nil
	return nil
}

// EvaluateExpression evaluates e against the current variables. Hosts use it to
// preview choice guards.
func (in *Interpreter) EvaluateExpression(e ast.Expr) (ast.Value, error) {
	if in.ctx == nil {
		return ast.Value{}, &vnerr.RuntimeError{Msg: "evaluate", Err: ErrNotRunning}
	}
	return in.eval(e)
}

// IsDialogueSeen reports whether the line shown by d was passed before.
func (in *Interpreter) IsDialogueSeen(d ShowDialogue) bool {
	if in.ctx == nil || d.Node == nil {
		return false
	}
	return in.ctx.IsDialogueSeen(d.Path, d.Node.Index)
}

func (in *Interpreter) truthy(e ast.Expr) (bool, error) {
	v, err := in.eval(e)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func (in *Interpreter) eval(e ast.Expr) (ast.Value, error) {
	switch x := e.(type) {
	case *ast.StringLiteral:
		return ast.Str(x.Value), nil
	case *ast.NumberLiteral:
		return ast.Num(x.Value), nil
	case *ast.BooleanLiteral:
		return ast.Bool(x.Value), nil
	case *ast.Variable:
		v, ok := in.ctx.Lookup(x.Name)
		if !ok {
			return ast.Value{}, &vnerr.RuntimeError{Line: x.Pos.Line, Col: x.Pos.Col, Msg: "undefined variable \"" + x.Name + "\""}
		}
		return v, nil
	case *ast.BinaryOperator:
		l, err := in.eval(x.Left)
		if err != nil {
			return ast.Value{}, err
		}
		r, err := in.eval(x.Right)
		if err != nil {
			return ast.Value{}, err
		}
		return x.Op.Apply(l, r)
	case *ast.UnaryOperator:
		v, err := in.eval(x.Operand)
		if err != nil {
			return ast.Value{}, err
		}
		return x.Op.Apply(v)
	}
	return ast.Value{}, vnerr.Runtimef("unexpected expression %T", e)
}

// at attaches a source position to evaluation errors that lack one. The
// original error stays reachable through errors.As.
func at(pos ast.Pos, err error) error {
	var re *vnerr.RuntimeError
	if errors.As(err, &re) {
		return err
	}
	return &vnerr.RuntimeError{Line: pos.Line, Col: pos.Col, Msg: "cannot evaluate expression", Err: err}
}
