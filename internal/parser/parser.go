/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package parser builds the syntax tree from tokens and assigns structural path ids.
//
// Grammar (informal):
//
//	Program   := Block*
//	Block     := "block" Identifier Body
//	Body      := "{" Stmt* "}"
//	Stmt      := Dialogue | Execute | Assign | If | Choice | Block | Number | Boolean
//	Dialogue  := String | Identifier String
//	Assign    := Identifier "=" Expr
//	Execute   := "execute" Identifier
//	If        := "if" Expr Body ("else" "if" Expr Body)* ("else" Body)?
//	Choice    := "choice" "{" (String Expr? Body)+ "}"
//
// Blocks may only be declared directly inside another block's body. Stray number
// and boolean literals become IgnoredStatement nodes.
package parser

import (
	"fmt"

	"vnengine/internal/ast"
	"vnengine/internal/lexer"
	"vnengine/internal/vnerr"
)

var binaryOps = map[lexer.Kind]ast.BinaryOp{
	lexer.Equal:        ast.OpEqual,
	lexer.Greater:      ast.OpGreater,
	lexer.GreaterEqual: ast.OpGreaterEqual,
	lexer.Less:         ast.OpLess,
	lexer.LessEqual:    ast.OpLessEqual,
	lexer.And:          ast.OpAnd,
	lexer.Or:           ast.OpOr,
	lexer.Plus:         ast.OpPlus,
	lexer.Minus:        ast.OpMinus,
	lexer.Mul:          ast.OpMul,
	lexer.Div:          ast.OpDiv,
	lexer.Rem:          ast.OpRem,
	lexer.Pow:          ast.OpPow,
}

type parser struct {
	toks []lexer.Token
	pos  int
}

// Parse builds an unindexed Program. The token slice must end with EOF, as
// returned by lexer.Tokenize.
func Parse(toks []lexer.Token) (*ast.Program, error) {
	if len(toks) == 0 || toks[len(toks)-1].Kind != lexer.EOF {
		toks = append(append([]lexer.Token(nil), toks...), lexer.Token{Kind: lexer.EOF})
	}
	p := &parser{toks: toks}
	prog := &ast.Program{Blocks: map[string]*ast.Block{}}
	for p.peek(0).Kind != lexer.EOF {
		start := p.peek(0)
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if _, dup := prog.Blocks[b.Name]; dup {
			return nil, p.errorf(start, "duplicate block %q", b.Name)
		}
		prog.Blocks[b.Name] = b
	}
	return prog, nil
}

// ParseSource tokenizes and parses src without indexing.
func ParseSource(src string) (*ast.Program, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(toks)
}

// Compile tokenizes, parses and indexes src: the form the interpreter runs.
func Compile(src string) (*ast.Program, error) {
	prog, err := ParseSource(src)
	if err != nil {
		return nil, err
	}
	return Index(prog), nil
}

func (p *parser) peek(offset int) lexer.Token {
	if i := p.pos + offset; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() lexer.Token {
	t := p.peek(0)
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errorf(at lexer.Token, format string, args ...any) error {
	return &vnerr.ParseError{Line: at.Line, Col: at.Col, Msg: fmt.Sprintf(format, args...)}
}

func posOf(t lexer.Token) ast.Pos { return ast.Pos{Line: t.Line, Col: t.Col} }

func (p *parser) parseBlock() (*ast.Block, error) {
	kw := p.advance()
	if !kw.Is("block") {
		return nil, p.errorf(kw, "expected \"block\" keyword, found %s", kw)
	}
	name := p.advance()
	if name.Kind != lexer.Identifier {
		return nil, p.errorf(name, "\"block\" must be followed by a block name, found %s", name)
	}
	body, nested, err := p.parseBody(true)
	if err != nil {
		return nil, err
	}
	return &ast.Block{Name: name.Text, Body: body, Blocks: nested, Pos: posOf(name)}, nil
}

// parseBody reads "{" Stmt* "}". Nested block declarations are collected into
// the returned map when allowed.
func (p *parser) parseBody(allowBlocks bool) ([]ast.Stmt, map[string]*ast.Block, error) {
	open := p.advance()
	if open.Kind != lexer.LBrace {
		return nil, nil, p.errorf(open, "expected \"{\", found %s", open)
	}
	var body []ast.Stmt
	nested := map[string]*ast.Block{}

	for {
		tok := p.peek(0)
		switch tok.Kind {
		case lexer.RBrace:
			p.advance()
			return body, nested, nil
		case lexer.EOF:
			return nil, nil, p.errorf(open, "unclosed block: missing \"}\"")
		case lexer.Number, lexer.Boolean:
			p.advance()
			body = append(body, &ast.IgnoredStatement{Value: tok.String(), Pos: posOf(tok)})
			continue
		}

		if tok.Is("block") {
			if !allowBlocks {
				return nil, nil, p.errorf(tok, "blocks can't be defined inside if, else or choice bodies")
			}
			b, err := p.parseBlock()
			if err != nil {
				return nil, nil, err
			}
			if _, dup := nested[b.Name]; dup {
				return nil, nil, p.errorf(tok, "duplicate block %q", b.Name)
			}
			nested[b.Name] = b
			continue
		}

		st, err := p.parseStatement()
		if err != nil {
			return nil, nil, err
		}
		body = append(body, st)
	}
}

func (p *parser) parseStatement() (ast.Stmt, error) {
	tok := p.peek(0)
	switch tok.Kind {
	case lexer.String:
		p.advance()
		return &ast.Dialogue{Text: tok.Text, Pos: posOf(tok)}, nil
	case lexer.Identifier:
		switch next := p.peek(1); next.Kind {
		case lexer.Assign:
			return p.parseAssign()
		case lexer.String:
			p.advance()
			p.advance()
			return &ast.Dialogue{Speaker: tok.Text, Text: next.Text, Pos: posOf(tok)}, nil
		default:
			return nil, p.errorf(next, "identifier %q followed by unexpected %s", tok.Text, next)
		}
	case lexer.Keyword:
		p.advance()
		switch tok.Text {
		case "execute":
			target := p.advance()
			if target.Kind != lexer.Identifier {
				return nil, p.errorf(target, "\"execute\" must be followed by a block name, found %s", target)
			}
			return &ast.ExecuteStatement{Target: target.Text, Pos: posOf(target)}, nil
		case "if":
			return p.parseIf(tok)
		case "choice":
			return p.parseChoice(tok)
		case "else":
			return nil, p.errorf(tok, "\"else\" without a preceding \"if\"")
		}
	case lexer.LBrace:
		return nil, p.errorf(tok, "unexpected \"{\"")
	}
	return nil, p.errorf(tok, "unexpected %s", tok)
}

func (p *parser) parseAssign() (ast.Stmt, error) {
	name := p.advance()
	p.advance() // =
	value, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	return &ast.AssignStatement{Variable: name.Text, Value: value, Pos: posOf(name)}, nil
}

func (p *parser) parseIf(kw lexer.Token) (ast.Stmt, error) {
	st := &ast.IfStatement{Pos: posOf(kw)}
	branch := func() error {
		cond, err := p.parseExpression(0)
		if err != nil {
			return err
		}
		body, _, err := p.parseBody(false)
		if err != nil {
			return err
		}
		st.Branches = append(st.Branches, &ast.IfBranch{Condition: cond, Body: body})
		return nil
	}

	if err := branch(); err != nil {
		return nil, err
	}
	for p.peek(0).Is("else") {
		p.advance()
		if p.peek(0).Is("if") {
			p.advance()
			if err := branch(); err != nil {
				return nil, err
			}
			continue
		}
		body, _, err := p.parseBody(false)
		if err != nil {
			return nil, err
		}
		st.Else = &ast.ElseBranch{Body: body}
		break
	}
	return st, nil
}

func (p *parser) parseChoice(kw lexer.Token) (ast.Stmt, error) {
	open := p.advance()
	if open.Kind != lexer.LBrace {
		return nil, p.errorf(open, "\"choice\" must be followed by \"{\", found %s", open)
	}
	st := &ast.ChoiceStatement{Pos: posOf(kw)}
	for p.peek(0).Kind == lexer.String {
		label := p.advance()
		var guard ast.Expr
		if p.peek(0).Kind != lexer.LBrace {
			g, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			guard = g
		}
		body, _, err := p.parseBody(false)
		if err != nil {
			return nil, err
		}
		st.Options = append(st.Options, &ast.ChoiceOption{Guard: guard, Label: label.Text, Body: body, Pos: posOf(label)})
	}

	closing := p.advance()
	switch {
	case closing.Kind == lexer.EOF:
		return nil, p.errorf(open, "unclosed choice: missing \"}\"")
	case closing.Kind != lexer.RBrace:
		return nil, p.errorf(closing, "choice options must start with a string label, found %s", closing)
	case len(st.Options) == 0:
		return nil, p.errorf(kw, "choice must have at least one option")
	}
	return st, nil
}

// parseExpression is a precedence climber: operators whose left binding power
// is below minBP end the current operand. The right operand is parsed at the
// operator's right binding power, except for the right-associative ** which
// re-enters at its own level.
func (p *parser) parseExpression(minBP int) (ast.Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binaryOps[p.peek(0).Kind]
		if !ok || op.LBP() < minBP {
			return left, nil
		}
		p.advance()
		next := op.RBP()
		if op.RightAssoc() {
			next = op.LBP()
		}
		right, err := p.parseExpression(next)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperator{Left: left, Right: right, Op: op, Pos: left.Position()}
	}
}

func (p *parser) parseOperand() (ast.Expr, error) {
	tok := p.advance()
	switch tok.Kind {
	case lexer.LParen:
		e, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.Kind != lexer.RParen {
			return nil, p.errorf(tok, "unclosed parenthesis")
		}
		return e, nil
	case lexer.Not:
		e, err := p.parseExpression(ast.OpNot.BP())
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOperator{Operand: e, Op: ast.OpNot, Pos: posOf(tok)}, nil
	case lexer.Identifier:
		return &ast.Variable{Name: tok.Text, Pos: posOf(tok)}, nil
	case lexer.String:
		return &ast.StringLiteral{Value: tok.Text, Pos: posOf(tok)}, nil
	case lexer.Number:
		return &ast.NumberLiteral{Value: tok.Num, Pos: posOf(tok)}, nil
	case lexer.Boolean:
		return &ast.BooleanLiteral{Value: tok.Bool, Pos: posOf(tok)}, nil
	}
	return nil, p.errorf(tok, "unexpected %s in expression", tok)
}
