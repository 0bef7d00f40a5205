/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interp

import (
	"maps"
	"sort"

	"vnengine/internal/ast"
	"vnengine/internal/vnerr"
)

// MaxDepth bounds the frame stack so runaway recursion (a block executing
// itself) fails with a RuntimeError instead of exhausting memory.
const MaxDepth = 10000

// Scope is something a frame can execute: a block, or the transient wrapper
// around an if branch, else branch or choice option. Wrappers have no Name and
// see the nested blocks of the block that owns them.
type Scope struct {
	Path   string
	Name   string
	Body   []ast.Stmt
	Blocks map[string]*ast.Block
	Pos    ast.Pos
}

// Frame is one activation on the stack.
type Frame struct {
	Scope  *Scope
	Cursor int
}

// SavedFrame is the persisted form of a Frame.
type SavedFrame struct {
	Path   string
	Cursor int
}

// Context owns the frame stack, the variable table, the persistent variable
// table and the seen-dialogue table of one run.
type Context struct {
	prog       *ast.Program
	scopes     map[string]*Scope
	stack      []Frame
	vars       map[string]ast.Value
	persistent map[string]ast.Value
	seen       map[string]int16
}

// NewContext prepares an empty stack over an indexed program. Nil maps are
// replaced by empty ones; the given maps are owned by the context afterwards.
func NewContext(prog *ast.Program, vars, persistent map[string]ast.Value, seen map[string]int16) *Context {
	if vars == nil {
		vars = map[string]ast.Value{}
	}
	if persistent == nil {
		persistent = map[string]ast.Value{}
	}
	if seen == nil {
		seen = map[string]int16{}
	}
	return &Context{
		prog:       prog,
		scopes:     BuildScopes(prog),
		vars:       vars,
		persistent: persistent,
		seen:       seen,
	}
}

// BuildScopes walks the program and materializes every addressable scope,
// including the wrappers for if, else and choice bodies, keyed by path id.
func BuildScopes(prog *ast.Program) map[string]*Scope {
	out := map[string]*Scope{}
	var body func(stmts []ast.Stmt, owner map[string]*ast.Block)
	body = func(stmts []ast.Stmt, owner map[string]*ast.Block) {
		for _, st := range stmts {
			switch s := st.(type) {
			case *ast.IfStatement:
				for _, br := range s.Branches {
					out[br.Key()] = &Scope{Path: br.Key(), Body: br.Body, Blocks: owner, Pos: s.Pos}
					body(br.Body, owner)
				}
				if s.Else != nil {
					out[s.Else.Key()] = &Scope{Path: s.Else.Key(), Body: s.Else.Body, Blocks: owner, Pos: s.Pos}
					body(s.Else.Body, owner)
				}
			case *ast.ChoiceStatement:
				for _, o := range s.Options {
					out[o.Key()] = &Scope{Path: o.Key(), Body: o.Body, Blocks: owner, Pos: o.Pos}
					body(o.Body, owner)
				}
			}
		}
	}
	var block func(b *ast.Block)
	block = func(b *ast.Block) {
		out[b.Key()] = &Scope{Path: b.Key(), Name: b.Name, Body: b.Body, Blocks: b.Blocks, Pos: b.Pos}
		body(b.Body, b.Blocks)
		for _, child := range b.Blocks {
			block(child)
		}
	}
	for _, b := range prog.Blocks {
		block(b)
	}
	return out
}

// Scopes lists every addressable scope sorted by path.
func Scopes(prog *ast.Program) []*Scope {
	idx := BuildScopes(prog)
	out := make([]*Scope, 0, len(idx))
	for _, s := range idx {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Scope returns the scope registered under path.
func (c *Context) Scope(path string) (*Scope, bool) {
	s, ok := c.scopes[path]
	return s, ok
}

// Top returns the executing frame, or nil when the stack is empty.
func (c *Context) Top() *Frame {
	if len(c.stack) == 0 {
		return nil
	}
	return &c.stack[len(c.stack)-1]
}

// Depth is the number of frames on the stack.
func (c *Context) Depth() int { return len(c.stack) }

// Push starts s at cursor 0.
func (c *Context) Push(s *Scope) error {
	if len(c.stack) >= MaxDepth {
		return vnerr.Runtimef("execution stack exceeded %d frames (recursive execute of %q?)", MaxDepth, s.Path)
	}
	c.stack = append(c.stack, Frame{Scope: s})
	return nil
}

// Next moves the top frame past its current statement, completing it (and any
// exhausted parents) when that was the last one.
func (c *Context) Next() {
	top := c.Top()
	if top == nil {
		return
	}
	if top.Cursor+1 < len(top.Scope.Body) {
		top.Cursor++
		return
	}
	c.Complete()
}

// Complete pops the top frame, then every parent that has nothing left after
// its current statement, and finally advances the first parent that does.
func (c *Context) Complete() {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if top.Cursor+1 < len(top.Scope.Body) {
			top.Cursor++
			return
		}
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// FindBlock resolves an execute target: the nested blocks visible from the
// executing scope first, then the top-level blocks.
func (c *Context) FindBlock(name string) (*ast.Block, bool) {
	if top := c.Top(); top != nil {
		if b, ok := top.Scope.Blocks[name]; ok {
			return b, true
		}
	}
	b, ok := c.prog.Blocks[name]
	return b, ok
}

// Lookup reads a variable. Run variables shadow persistent ones.
func (c *Context) Lookup(name string) (ast.Value, bool) {
	if v, ok := c.vars[name]; ok {
		return v, true
	}
	v, ok := c.persistent[name]
	return v, ok
}

// Assign stores v. A name that only exists in the persistent table is updated
// there; anything else becomes a run variable.
func (c *Context) Assign(name string, v ast.Value) {
	if _, ok := c.vars[name]; !ok {
		if _, ok := c.persistent[name]; ok {
			c.persistent[name] = v
			return
		}
	}
	c.vars[name] = v
}

// SetPersistent stores a cross-playthrough variable.
func (c *Context) SetPersistent(name string, v ast.Value) { c.persistent[name] = v }

// MarkSeen raises the seen watermark for path to idx.
func (c *Context) MarkSeen(path string, idx int16) {
	if cur, ok := c.seen[path]; !ok || idx > cur {
		c.seen[path] = idx
	}
}

// IsDialogueSeen reports whether line idx of the scope at path was passed in
// this or an earlier playthrough.
func (c *Context) IsDialogueSeen(path string, idx int16) bool {
	cur, ok := c.seen[path]
	return ok && idx <= cur
}

// Stack returns the frames root first.
func (c *Context) Stack() []SavedFrame {
	out := make([]SavedFrame, len(c.stack))
	for i, f := range c.stack {
		out[i] = SavedFrame{Path: f.Scope.Path, Cursor: f.Cursor}
	}
	return out
}

// Restore replaces the stack with saved frames, resolving each path against the
// current program.
func (c *Context) Restore(saved []SavedFrame) error {
	if len(saved) > MaxDepth {
		return vnerr.Runtimef("saved stack has %d frames, limit is %d", len(saved), MaxDepth)
	}
	stack := make([]Frame, 0, len(saved))
	for _, sf := range saved {
		s, ok := c.scopes[sf.Path]
		if !ok {
			return vnerr.Runtimef("save references %q, which does not exist in the current script", sf.Path)
		}
		if sf.Cursor < 0 || sf.Cursor > len(s.Body) {
			return vnerr.Runtimef("save cursor %d is out of range for %q (%d statements)", sf.Cursor, sf.Path, len(s.Body))
		}
		stack = append(stack, Frame{Scope: s, Cursor: sf.Cursor})
	}
	c.stack = stack
	return nil
}

// Variables returns a copy of the run variables.
func (c *Context) Variables() map[string]ast.Value { return maps.Clone(c.vars) }

// Persistent returns a copy of the persistent variables.
func (c *Context) Persistent() map[string]ast.Value { return maps.Clone(c.persistent) }

// Seen returns a copy of the seen-dialogue table.
func (c *Context) Seen() map[string]int16 { return maps.Clone(c.seen) }
