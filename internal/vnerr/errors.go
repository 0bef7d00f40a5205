/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package vnerr defines the error taxonomy shared by the script pipeline:
//   - LexError: unterminated string, unrecognized symbol
//   - ParseError: grammar violations (missing keyword, duplicate block, block inside a
//     conditional, unclosed block/choice, empty choice)
//   - RuntimeError: unresolved block, missing start block, undefined variable,
//     invalid choice selection, unreadable or incompatible save file
//   - TypeError: unsupported operand kinds or a failed coercion while evaluating
//
// Callers classify with errors.As. Positions are 1-based; zero means "no position".
package vnerr

import (
	"errors"
	"fmt"
	"strings"
)

// LexError is produced by the lexer.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ParseError is produced by the parser.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// RuntimeError aborts the current session (or, for save files, the requested load).
type RuntimeError struct {
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("runtime error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at %d:%d", e.Line, e.Col)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Runtimef builds a position-less RuntimeError.
func Runtimef(format string, args ...any) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}

// TypeError reports an operator applied to operand kinds it cannot combine, or a
// coercion (string to number, string to boolean) that failed.
type TypeError struct {
	Op    string
	Left  string
	Right string
	Msg   string
}

func (e *TypeError) Error() string {
	if e.Msg != "" {
		return "type error: " + e.Msg
	}
	if e.Right == "" {
		return fmt.Sprintf("type error: invalid operand for %s: %s", e.Op, e.Left)
	}
	return fmt.Sprintf("type error: invalid operands for %s: %s and %s", e.Op, e.Left, e.Right)
}

// Position extracts the 1-based source position carried by err, if any.
func Position(err error) (line, col int, ok bool) {
	var le *LexError
	if errors.As(err, &le) {
		return le.Line, le.Col, true
	}
	var pe *ParseError
	if errors.As(err, &pe) && pe.Line > 0 {
		return pe.Line, pe.Col, true
	}
	var re *RuntimeError
	if errors.As(err, &re) && re.Line > 0 {
		return re.Line, re.Col, true
	}
	return 0, 0, false
}

// WrapWithSource returns an error whose message carries a caret snippet of src
// pointing at the failing position. Errors without a position are returned unchanged.
func WrapWithSource(err error, name, src string) error {
	if err == nil {
		return nil
	}
	line, col, ok := Position(err)
	if !ok {
		return err
	}
	return &snippetError{err: err, text: snippet(src, name, line, col, err.Error())}
}

type snippetError struct {
	err  error
	text string
}

func (e *snippetError) Error() string { return e.text }
func (e *snippetError) Unwrap() error { return e.err }

// snippet shows at most one line of context on each side of the failing line.
func snippet(src, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if line > len(lines) {
		line = len(lines)
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s: %s\n\n", name, msg)
	} else {
		fmt.Fprintf(&b, "%s\n\n", msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
