/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package lexer

import (
	"fmt"
	"strconv"
)

// Kind identifies the token variant.
type Kind int

const (
	EOF Kind = iota

	// Literals & identifiers
	String
	Number
	Boolean
	Identifier
	Keyword

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace

	// Operators
	Assign       // =
	Equal        // ==
	Greater      // >
	GreaterEqual // >=
	Less         // <
	LessEqual    // <=
	And          // & or "and"
	Or           // | or "or"
	Not          // ! or "not"
	Plus
	Minus
	Mul
	Div
	Rem
	Pow // **
)

var kindNames = map[Kind]string{
	EOF:          "EOF",
	String:       "string",
	Number:       "number",
	Boolean:      "boolean",
	Identifier:   "identifier",
	Keyword:      "keyword",
	LParen:       "(",
	RParen:       ")",
	LBrace:       "{",
	RBrace:       "}",
	Assign:       "=",
	Equal:        "==",
	Greater:      ">",
	GreaterEqual: ">=",
	Less:         "<",
	LessEqual:    "<=",
	And:          "and",
	Or:           "or",
	Not:          "not",
	Plus:         "+",
	Minus:        "-",
	Mul:          "*",
	Div:          "/",
	Rem:          "%",
	Pow:          "**",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Keywords that are not folded into operator tokens.
var keywords = map[string]bool{
	"block":   true,
	"execute": true,
	"choice":  true,
	"if":      true,
	"else":    true,
}

// Word spellings of the logical operators resolve to the same kinds as & | !.
var wordOperators = map[string]Kind{
	"and": And,
	"or":  Or,
	"not": Not,
}

var booleans = map[string]bool{
	"true":  true,
	"false": false,
}

// Token is one lexeme. Text holds the string, identifier or keyword spelling;
// Num and Bool hold literal payloads. Line and Col are 1-based.
type Token struct {
	Kind Kind
	Text string
	Num  float64
	Bool bool
	Line int
	Col  int
}

// Is reports whether t is the given keyword.
func (t Token) Is(keyword string) bool {
	return t.Kind == Keyword && t.Text == keyword
}

func (t Token) String() string {
	switch t.Kind {
	case String:
		return strconv.Quote(t.Text)
	case Number:
		return strconv.FormatFloat(t.Num, 'g', -1, 64)
	case Boolean:
		return strconv.FormatBool(t.Bool)
	case Identifier, Keyword:
		return t.Text
	default:
		return t.Kind.String()
	}
}

// GoString keeps test failure output readable.
func (t Token) GoString() string {
	return fmt.Sprintf("%s@%d:%d", t.String(), t.Line, t.Col)
}
