/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package lexer turns script source into tokens.
//
// Syntax handled:
//   - whitespace and // line comments are skipped
//   - "text" strings, plus the ""text with "quotes" inside"" form
//   - numbers: digits with an optional fractional part (no sign, no exponent)
//   - identifiers: letters and underscores; keywords block, execute, choice, if, else;
//     and/or/not fold into the same tokens as & | !
//   - operators = == > >= < <= + - * ** / % ( ) { }
package lexer

import (
	"strconv"

	"vnengine/internal/vnerr"
)

type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
	out  []Token
}

// Tokenize scans src in a single forward pass. The returned slice always ends with
// an EOF token.
func Tokenize(src string) ([]Token, error) {
	l := &lexer{src: []rune(src), line: 1, col: 1}
	for {
		l.skipTrivia()
		if l.pos >= len(l.src) {
			break
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.out = append(l.out, tok)
	}
	l.out = append(l.out, Token{Kind: EOF, Line: l.line, Col: l.col})
	return l.out, nil
}

func (l *lexer) peek(offset int) rune {
	if i := l.pos + offset; i < len(l.src) {
		return l.src[i]
	}
	return 0
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) errorf(line, col int, msg string) error {
	return &vnerr.LexError{Line: line, Col: col, Msg: msg}
}

func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		switch r := l.peek(0); {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			l.advance()
		case r == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.peek(0) != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (Token, error) {
	line, col := l.line, l.col
	r := l.peek(0)
	switch {
	case r == '"':
		return l.lexString()
	case isDigit(r):
		return l.lexNumber(), nil
	case isIdentStart(r):
		return l.lexWord(), nil
	}

	single := func(k Kind) (Token, error) {
		l.advance()
		return Token{Kind: k, Line: line, Col: col}, nil
	}
	// one character of lookahead picks the two-character forms
	double := func(k1, k2 Kind, second rune) (Token, error) {
		l.advance()
		if l.peek(0) == second {
			l.advance()
			return Token{Kind: k2, Line: line, Col: col}, nil
		}
		return Token{Kind: k1, Line: line, Col: col}, nil
	}

	switch r {
	case '(':
		return single(LParen)
	case ')':
		return single(RParen)
	case '{':
		return single(LBrace)
	case '}':
		return single(RBrace)
	case '+':
		return single(Plus)
	case '-':
		return single(Minus)
	case '/':
		return single(Div)
	case '%':
		return single(Rem)
	case '&':
		return single(And)
	case '|':
		return single(Or)
	case '!':
		return single(Not)
	case '=':
		return double(Assign, Equal, '=')
	case '>':
		return double(Greater, GreaterEqual, '=')
	case '<':
		return double(Less, LessEqual, '=')
	case '*':
		return double(Mul, Pow, '*')
	}
	return Token{}, l.errorf(line, col, "unexpected symbol "+strconv.QuoteRune(r))
}

func (l *lexer) lexString() (Token, error) {
	line, col := l.line, l.col
	l.advance() // opening quote

	if l.peek(0) == '"' {
		// ""...."" form: terminated by two consecutive quotes
		l.advance()
		start := l.pos
		for l.pos < len(l.src) {
			if l.peek(0) == '"' && l.peek(1) == '"' {
				text := string(l.src[start:l.pos])
				l.advance()
				l.advance()
				return Token{Kind: String, Text: text, Line: line, Col: col}, nil
			}
			l.advance()
		}
		return Token{}, l.errorf(line, col, "unterminated string")
	}

	start := l.pos
	for l.pos < len(l.src) {
		if l.peek(0) == '"' {
			text := string(l.src[start:l.pos])
			l.advance()
			return Token{Kind: String, Text: text, Line: line, Col: col}, nil
		}
		l.advance()
	}
	return Token{}, l.errorf(line, col, "unterminated string")
}

func (l *lexer) lexNumber() Token {
	line, col := l.line, l.col
	start := l.pos
	for isDigit(l.peek(0)) {
		l.advance()
	}
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		l.advance()
		for isDigit(l.peek(0)) {
			l.advance()
		}
	}
	// digits with at most one dot always parse
	n, _ := strconv.ParseFloat(string(l.src[start:l.pos]), 64)
	return Token{Kind: Number, Num: n, Line: line, Col: col}
}

func (l *lexer) lexWord() Token {
	line, col := l.line, l.col
	start := l.pos
	for isIdentStart(l.peek(0)) {
		l.advance()
	}
	word := string(l.src[start:l.pos])
	if k, ok := wordOperators[word]; ok {
		return Token{Kind: k, Line: line, Col: col}
	}
	if keywords[word] {
		return Token{Kind: Keyword, Text: word, Line: line, Col: col}
	}
	if b, ok := booleans[word]; ok {
		return Token{Kind: Boolean, Bool: b, Text: word, Line: line, Col: col}
	}
	return Token{Kind: Identifier, Text: word, Line: line, Col: col}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
