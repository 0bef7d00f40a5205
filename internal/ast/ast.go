/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ast holds the script syntax tree, the runtime Value model and the
// operator table.
//
// A parsed Program is read-only. Path ids are empty until the indexer produces
// an indexed copy (see parser.Index).
package ast

import (
	"sort"
	"strconv"
	"strings"
)

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Program maps top-level block names to blocks.
type Program struct {
	Blocks map[string]*Block
}

// Block is a named scope: an ordered body plus nested block definitions.
type Block struct {
	Path       string // structural id, set by the indexer
	AssignedID string // optional user-assigned id; wins over Path when set
	Name       string
	Body       []Stmt
	Blocks     map[string]*Block
	Pos        Pos
}

// Key is the id used for save frames and seen-dialogue tracking.
func (b *Block) Key() string { return key(b.AssignedID, b.Path) }

// SortedNames returns the nested block names in lexical order.
func (b *Block) SortedNames() []string { return sortedNames(b.Blocks) }

// SortedNames returns the top-level block names in lexical order.
func (p *Program) SortedNames() []string { return sortedNames(p.Blocks) }

func sortedNames(m map[string]*Block) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func key(assigned, path string) string {
	if assigned != "" {
		return assigned
	}
	return path
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Position() Pos
	stmtNode()
}

// Dialogue is a line of text, optionally tagged with a speaker. Index is the
// 0-based position among the dialogue lines of its immediate body.
type Dialogue struct {
	Speaker string
	Text    string
	Index   int16
	Pos     Pos
}

type ExecuteStatement struct {
	Target string
	Pos    Pos
}

type AssignStatement struct {
	Variable string
	Value    Expr
	Pos      Pos
}

type IfStatement struct {
	Branches []*IfBranch
	Else     *ElseBranch // nil when absent
	Pos      Pos
}

type IfBranch struct {
	Path       string
	AssignedID string
	Condition  Expr
	Body       []Stmt
}

func (b *IfBranch) Key() string { return key(b.AssignedID, b.Path) }

type ElseBranch struct {
	Path       string
	AssignedID string
	Body       []Stmt
}

func (b *ElseBranch) Key() string { return key(b.AssignedID, b.Path) }

type ChoiceStatement struct {
	Options []*ChoiceOption
	Pos     Pos
}

// ChoiceOption is one selectable entry. A nil Guard means always available.
type ChoiceOption struct {
	Path       string
	AssignedID string
	Guard      Expr
	Label      string
	Body       []Stmt
	Pos        Pos
}

func (o *ChoiceOption) Key() string { return key(o.AssignedID, o.Path) }

// IgnoredStatement records a stray literal in a body. It only produces a warning.
type IgnoredStatement struct {
	Value string
	Pos   Pos
}

func (s *Dialogue) Position() Pos         { return s.Pos }
func (s *ExecuteStatement) Position() Pos { return s.Pos }
func (s *AssignStatement) Position() Pos  { return s.Pos }
func (s *IfStatement) Position() Pos      { return s.Pos }
func (s *ChoiceStatement) Position() Pos  { return s.Pos }
func (s *IgnoredStatement) Position() Pos { return s.Pos }

func (*Dialogue) stmtNode()         {}
func (*ExecuteStatement) stmtNode() {}
func (*AssignStatement) stmtNode()  {}
func (*IfStatement) stmtNode()      {}
func (*ChoiceStatement) stmtNode()  {}
func (*IgnoredStatement) stmtNode() {}

// Expr is implemented by every expression node. String renders source syntax.
type Expr interface {
	Position() Pos
	String() string
	exprNode()
}

type StringLiteral struct {
	Value string
	Pos   Pos
}

type NumberLiteral struct {
	Value float64
	Pos   Pos
}

type BooleanLiteral struct {
	Value bool
	Pos   Pos
}

type Variable struct {
	Name string
	Pos  Pos
}

type BinaryOperator struct {
	Left  Expr
	Right Expr
	Op    BinaryOp
	Pos   Pos
}

type UnaryOperator struct {
	Operand Expr
	Op      UnaryOp
	Pos     Pos
}

func (e *StringLiteral) Position() Pos  { return e.Pos }
func (e *NumberLiteral) Position() Pos  { return e.Pos }
func (e *BooleanLiteral) Position() Pos { return e.Pos }
func (e *Variable) Position() Pos       { return e.Pos }
func (e *BinaryOperator) Position() Pos { return e.Pos }
func (e *UnaryOperator) Position() Pos  { return e.Pos }

func (*StringLiteral) exprNode()  {}
func (*NumberLiteral) exprNode()  {}
func (*BooleanLiteral) exprNode() {}
func (*Variable) exprNode()       {}
func (*BinaryOperator) exprNode() {}
func (*UnaryOperator) exprNode()  {}

func (e *StringLiteral) String() string { return QuoteString(e.Value) }

func (e *NumberLiteral) String() string { return strconv.FormatFloat(e.Value, 'f', -1, 64) }

func (e *BooleanLiteral) String() string { return strconv.FormatBool(e.Value) }

func (e *Variable) String() string { return e.Name }

func (e *BinaryOperator) String() string {
	return operand(e.Left) + " " + e.Op.String() + " " + operand(e.Right)
}

func (e *UnaryOperator) String() string { return e.Op.String() + " " + operand(e.Operand) }

// operand parenthesizes compound sub-expressions so the rendering re-parses to
// the same tree.
func operand(e Expr) string {
	switch e.(type) {
	case *BinaryOperator, *UnaryOperator:
		return "(" + e.String() + ")"
	}
	return e.String()
}

// QuoteString renders s as a string literal, switching to the doubled-quote
// form when s contains a quote.
func QuoteString(s string) string {
	if strings.Contains(s, `"`) {
		return `""` + s + `""`
	}
	return `"` + s + `"`
}
