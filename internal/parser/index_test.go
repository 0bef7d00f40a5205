/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parser

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"vnengine/internal/ast"
)

const indexedSource = `
block start {
  "zero"
  alice "one"
  if a == 1 { "in if" "second" } else if a == 2 { "two" } else { "else" }
  choice {
    "A" { "wentA" }
    "B" 1 == 2 { "wentB" }
  }
  if true { }
  "two"
  block inner {
    "inner"
    choice { "only" { if x { "deep" } } }
  }
}
block other { "bye" }`

// collectPaths walks every addressable scope and returns its ids, sorted.
func collectPaths(prog *ast.Program) []string {
	var out []string
	var body func([]ast.Stmt)
	body = func(stmts []ast.Stmt) {
		for _, st := range stmts {
			switch s := st.(type) {
			case *ast.IfStatement:
				for _, br := range s.Branches {
					out = append(out, br.Path)
					body(br.Body)
				}
				if s.Else != nil {
					out = append(out, s.Else.Path)
					body(s.Else.Body)
				}
			case *ast.ChoiceStatement:
				for _, o := range s.Options {
					out = append(out, o.Path)
					body(o.Body)
				}
			}
		}
	}
	var block func(*ast.Block)
	block = func(b *ast.Block) {
		out = append(out, b.Path)
		body(b.Body)
		for _, child := range b.Blocks {
			block(child)
		}
	}
	for _, b := range prog.Blocks {
		block(b)
	}
	sort.Strings(out)
	return out
}

func TestIndexAssignsStructuralPaths(t *testing.T) {
	prog, err := Compile(indexedSource)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []string{
		"other",
		"start",
		"start/choice1-option0",
		"start/choice1-option1",
		"start/if1-branch0",
		"start/if1-branch1",
		"start/if1-else",
		"start/if2-branch0",
		"start/inner",
		"start/inner/choice1-option0",
		"start/inner/choice1-option0/if1-branch0",
	}
	if diff := cmp.Diff(want, collectPaths(prog)); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexNumbersDialoguePerBody(t *testing.T) {
	prog, err := Compile(indexedSource)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	body := prog.Blocks["start"].Body
	var got []int16
	for _, st := range body {
		if d, ok := st.(*ast.Dialogue); ok {
			got = append(got, d.Index)
		}
	}
	if diff := cmp.Diff([]int16{0, 1, 2}, got); diff != "" {
		t.Fatalf("start dialogue indices (-want +got):\n%s", diff)
	}
	branch := body[2].(*ast.IfStatement).Branches[0]
	if d := branch.Body[1].(*ast.Dialogue); d.Index != 1 {
		t.Fatalf("branch dialogue index = %d, want 1", d.Index)
	}
	if d := prog.Blocks["start"].Blocks["inner"].Body[0].(*ast.Dialogue); d.Index != 0 {
		t.Fatalf("inner dialogue index = %d, want 0", d.Index)
	}
}

func TestIndexIsDeterministic(t *testing.T) {
	a, err := Compile(indexedSource)
	if err != nil {
		t.Fatalf("Compile a: %v", err)
	}
	b, err := Compile(indexedSource)
	if err != nil {
		t.Fatalf("Compile b: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("re-parse changed the indexed tree (-a +b):\n%s", diff)
	}

	parsed, err := ParseSource(indexedSource)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	first, second := Index(parsed), Index(parsed)
	if diff := cmp.Diff(collectPaths(first), collectPaths(second)); diff != "" {
		t.Fatalf("indexing the same tree twice differs:\n%s", diff)
	}
}

func TestIndexLeavesInputUntouched(t *testing.T) {
	parsed, err := ParseSource(indexedSource)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	_ = Index(parsed)
	for _, p := range collectPaths(parsed) {
		if p != "" {
			t.Fatalf("input tree gained path %q", p)
		}
	}
	if d := parsed.Blocks["start"].Body[1].(*ast.Dialogue); d.Index != 0 {
		t.Fatalf("input dialogue index mutated to %d", d.Index)
	}
}
