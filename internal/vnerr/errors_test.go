/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vnerr

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestWrapWithSourceRendersCaret(t *testing.T) {
	src := "block start {\n  \"hi\n}"
	err := WrapWithSource(&LexError{Line: 2, Col: 3, Msg: "unterminated string"}, "demo.vn", src)
	got := err.Error()
	for _, want := range []string{"demo.vn:", "   1 | block start {", "   2 |   \"hi", "     |   ^", "   3 | }"} {
		if !strings.Contains(got, want) {
			t.Fatalf("snippet missing %q:\n%s", want, got)
		}
	}
	var le *LexError
	if !errors.As(err, &le) {
		t.Fatalf("wrapped error lost its LexError")
	}
}

func TestWrapWithSourcePassesThroughPositionless(t *testing.T) {
	base := Runtimef("no start block")
	if got := WrapWithSource(base, "x", "src"); got != base {
		t.Fatalf("positionless error was rewrapped: %v", got)
	}
	if WrapWithSource(nil, "x", "src") != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	err := &RuntimeError{Msg: "corrupted save", Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("RuntimeError does not unwrap its cause")
	}
	wrapped := fmt.Errorf("load: %w", err)
	var re *RuntimeError
	if !errors.As(wrapped, &re) || re.Msg != "corrupted save" {
		t.Fatalf("errors.As failed on wrapped RuntimeError")
	}
}

func TestTypeErrorMessages(t *testing.T) {
	e := &TypeError{Op: "+", Left: "Bool(true)", Right: "Num(1)"}
	if got, want := e.Error(), "type error: invalid operands for +: Bool(true) and Num(1)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	e = &TypeError{Msg: `string "x" can't be converted to number`}
	if !strings.HasSuffix(e.Error(), "converted to number") {
		t.Fatalf("unexpected message %q", e.Error())
	}
}
