/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"vnengine/internal/ast"
	"vnengine/internal/vnerr"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := ParseSource(src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	return prog
}

func TestParseBlocksAndStatements(t *testing.T) {
	prog := mustParse(t, `
block start {
  "hi"
  alice "hello"
  met = true
  execute other
  42
}
block other { "bye" }`)

	if len(prog.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(prog.Blocks))
	}
	start := prog.Blocks["start"]
	if start == nil || len(start.Body) != 5 {
		t.Fatalf("start body = %+v", start)
	}
	if d, ok := start.Body[0].(*ast.Dialogue); !ok || d.Text != "hi" || d.Speaker != "" {
		t.Fatalf("body[0] = %#v, want narration", start.Body[0])
	}
	if d, ok := start.Body[1].(*ast.Dialogue); !ok || d.Speaker != "alice" || d.Text != "hello" {
		t.Fatalf("body[1] = %#v, want alice dialogue", start.Body[1])
	}
	if a, ok := start.Body[2].(*ast.AssignStatement); !ok || a.Variable != "met" || a.Value.String() != "true" {
		t.Fatalf("body[2] = %#v, want assignment", start.Body[2])
	}
	if e, ok := start.Body[3].(*ast.ExecuteStatement); !ok || e.Target != "other" {
		t.Fatalf("body[3] = %#v, want execute other", start.Body[3])
	}
	if ig, ok := start.Body[4].(*ast.IgnoredStatement); !ok || ig.Value != "42" || ig.Pos.Line != 7 {
		t.Fatalf("body[4] = %#v, want ignored literal at line 7", start.Body[4])
	}
	if start.Path != "" {
		t.Fatalf("parser must not assign paths, got %q", start.Path)
	}
}

func TestParseIfElseChain(t *testing.T) {
	prog := mustParse(t, `block start {
  if n == 1 { "one" } else if n == 2 { "two" } else { "many" }
  if flag { "flag" }
}`)
	body := prog.Blocks["start"].Body
	st, ok := body[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("body[0] = %#v, want if", body[0])
	}
	if len(st.Branches) != 2 || st.Else == nil {
		t.Fatalf("if has %d branches, else=%v", len(st.Branches), st.Else != nil)
	}
	if got := st.Branches[1].Condition.String(); got != "n == 2" {
		t.Fatalf("second condition = %q", got)
	}
	if plain := body[1].(*ast.IfStatement); plain.Else != nil || len(plain.Branches) != 1 {
		t.Fatalf("plain if = %#v", plain)
	}
}

func TestParseChoiceWithGuard(t *testing.T) {
	prog := mustParse(t, `block start { choice { "A" { "wentA" } "B" 1==2 { "wentB" } } }`)
	ch := prog.Blocks["start"].Body[0].(*ast.ChoiceStatement)
	if len(ch.Options) != 2 {
		t.Fatalf("options = %d, want 2", len(ch.Options))
	}
	if ch.Options[0].Guard != nil || ch.Options[0].Label != "A" {
		t.Fatalf("option A = %#v", ch.Options[0])
	}
	if ch.Options[1].Guard == nil || ch.Options[1].Guard.String() != "1 == 2" {
		t.Fatalf("option B guard = %v", ch.Options[1].Guard)
	}
}

func TestNestedBlocks(t *testing.T) {
	prog := mustParse(t, `block start { block inner { "x" } execute inner }`)
	start := prog.Blocks["start"]
	if _, ok := start.Blocks["inner"]; !ok {
		t.Fatalf("nested block missing: %+v", start.Blocks)
	}
	if len(start.Body) != 1 {
		t.Fatalf("nested block leaked into body: %#v", start.Body)
	}
}

func TestExpressionPrecedence(t *testing.T) {
	cases := []struct{ src, want string }{
		{"1 + 2 * 3", "1 + (2 * 3)"},
		{"1 - 2 - 3", "(1 - 2) - 3"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"2 ** 3 ** 2", "2 ** (3 ** 2)"},
		{"2 * 3 ** 2", "2 * (3 ** 2)"},
		{"a == b > c", "a == (b > c)"},
		{"flag and n + 1", "(flag and n) + 1"},
		{"a or b and c", "(a or b) and c"},
		{"not a == b", "(not a) == b"},
		{"not a + b", "(not a) + b"},
		{"not a * b", "(not a) * b"},
		{"not a ** b", "not (a ** b)"},
		{"not (a and b)", "not (a and b)"},
		{`"5" + 3`, `"5" + 3`},
	}
	for _, tc := range cases {
		prog := mustParse(t, "block start { x = "+tc.src+" }")
		got := prog.Blocks["start"].Body[0].(*ast.AssignStatement).Value.String()
		if got != tc.want {
			t.Fatalf("parse(%q) = %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestWordAndSymbolOperatorsProduceSameTree(t *testing.T) {
	words := mustParse(t, `block start { if a and not b or c { "x" } }`)
	symbols := mustParse(t, `block start { if a & !b | c { "x" } }`)
	if diff := cmp.Diff(words, symbols, cmpopts.IgnoreTypes(ast.Pos{})); diff != "" {
		t.Fatalf("trees differ (-words +symbols):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"duplicate top-level", `block a {} block a {}`, "duplicate block"},
		{"duplicate nested", `block a { block b {} block b {} }`, "duplicate block"},
		{"block in if", `block a { if true { block b {} } }`, "can't be defined"},
		{"block in choice", `block a { choice { "x" { block b {} } } }`, "can't be defined"},
		{"unclosed block", `block a { "hi"`, "unclosed block"},
		{"unclosed choice", `block a { choice { "x" {} `, "unclosed choice"},
		{"empty choice", `block a { choice { } }`, "at least one option"},
		{"unclosed parenthesis", `block a { x = (1 + 2 }`, "unclosed parenthesis"},
		{"missing block keyword", `start { }`, "expected \"block\""},
		{"missing block name", `block { }`, "block name"},
		{"identifier without assign", `block a { x y }`, "unexpected"},
		{"dangling else", `block a { else { } }`, "without a preceding"},
		{"execute without target", `block a { execute "x" }`, "block name"},
		{"missing brace after if", `block a { if true "x" }`, "expected \"{\""},
		{"bad operand", `block a { x = * 2 }`, "in expression"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSource(tc.src)
			var pe *vnerr.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want ParseError", err)
			}
			if !strings.Contains(pe.Msg, tc.msg) {
				t.Fatalf("message = %q, want it to contain %q", pe.Msg, tc.msg)
			}
			if pe.Line == 0 {
				t.Fatalf("parse error carries no position: %v", pe)
			}
		})
	}
}

func TestLexErrorsSurfaceFromParseSource(t *testing.T) {
	_, err := ParseSource(`block a { "open }`)
	var le *vnerr.LexError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want LexError", err)
	}
}

func TestEmptySourceIsEmptyProgram(t *testing.T) {
	prog := mustParse(t, "// nothing here\n")
	if len(prog.Blocks) != 0 {
		t.Fatalf("blocks = %v", prog.Blocks)
	}
}
