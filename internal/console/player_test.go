/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterh/liner"
	"vnengine/internal/engine"
	"vnengine/internal/parser"
)

// scripted answers prompts from a fixed list and reports io.EOF afterwards.
type scripted struct {
	answers []string
	prompts []string
	err     error
}

func (s *scripted) Prompt(p string) (string, error) {
	s.prompts = append(s.prompts, p)
	if len(s.answers) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

const script = `
block start {
  "Hello."
  bob "Pick one."
  choice {
    "Left" { "You went left." }
    "Right" { bob "Right it is." }
  }
}`

func newPlayer(t *testing.T, dir string, answers ...string) (*Player, *bytes.Buffer, *scripted) {
	t.Helper()
	prog, err := parser.Compile(script)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	eng := engine.New(prog, engine.Options{
		SavesDir:       filepath.Join(dir, "saves"),
		PersistenceDir: filepath.Join(dir, "persist"),
	})
	if err := eng.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	var out bytes.Buffer
	in := &scripted{answers: answers}
	return NewPlayer(eng, in, &out), &out, in
}

func TestPlayToEnd(t *testing.T) {
	p, out, _ := newPlayer(t, t.TempDir(), "", "", "x", "0", "2", "")
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := strings.Join([]string{
		"Hello.",
		"bob: Pick one.",
		"  1) Left",
		"  2) Right",
		"Please enter a number between 1 and 2.",
		"Please enter a number between 1 and 2.",
		"bob: Right it is.",
		"The end.",
		"",
	}, "\n")
	if got := out.String(); got != want {
		t.Fatalf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestSeenPrefixOnSecondPlaythrough(t *testing.T) {
	dir := t.TempDir()
	p, _, _ := newPlayer(t, dir, "", "", "1", "")
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, out, _ := newPlayer(t, dir, "", ":quit")
	if err := again.Run(context.Background()); err != nil {
		t.Fatalf("Run again: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != SeenPrefix+"Hello." || lines[1] != SeenPrefix+"bob: Pick one." {
		t.Fatalf("second playthrough output = %q", lines)
	}
}

func TestCommands(t *testing.T) {
	p, out, _ := newPlayer(t, t.TempDir(),
		":saves",
		":save first",
		":saves",
		"",
		":back",
		"",
		":load first",
		":load",
		":load nothere",
		":nope",
		":quit",
	)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"No saves.",
		"Saved as first.",
		"  first  (",
		"Loaded first.",
		"Usage: :load <name>",
		"Load failed:",
		"Commands: :save [name]",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output lacks %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "Hello."); n != 3 {
		t.Fatalf("Hello. shown %d times, want 3 (start, back, load):\n%s", n, got)
	}
}

func TestBackWithoutHistory(t *testing.T) {
	p, out, _ := newPlayer(t, t.TempDir(), ":back", ":quit")
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Cannot go back:") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestAbortedPromptQuits(t *testing.T) {
	p, out, in := newPlayer(t, t.TempDir())
	in.err = liner.ErrPromptAborted
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "Hello.\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestInputErrorIsReturned(t *testing.T) {
	p, _, in := newPlayer(t, t.TempDir())
	boom := errors.New("terminal gone")
	in.err = boom
	if err := p.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want wrapped input error", err)
	}
}
