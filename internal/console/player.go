/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package console plays a script on a terminal. Dialogue advances on Enter,
// choices are picked by number, and lines starting with ':' are commands:
//
//	:save [name]   save (timestamp name when omitted)
//	:load <name>   load a save
//	:back          roll back to the previous line
//	:saves         list saves
//	:quit          leave without saving
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"vnengine/internal/engine"
	applog "vnengine/internal/log"
)

// SeenPrefix marks dialogue lines read in an earlier playthrough.
const SeenPrefix = "[SEEN] "

// Prompter reads one line of input. *liner.State satisfies it.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

type Player struct {
	eng *engine.Engine
	in  Prompter
	out io.Writer
	log *slog.Logger
}

func NewPlayer(eng *engine.Engine, in Prompter, out io.Writer) *Player {
	return &Player{eng: eng, in: in, out: out, log: applog.WithComponent("console")}
}

type action int

const (
	stay    action = iota // re-prompt on the same state
	advance               // fetch the next state
	quit
)

// Run plays until the script finishes, the user quits, or input ends.
// Runtime errors from the script are returned.
func (p *Player) Run(ctx context.Context) error {
	st, err := p.eng.Step()
	for {
		if err != nil {
			return err
		}
		var act action
		switch s := st.(type) {
		case engine.Finished:
			fmt.Fprintln(p.out, "The end.")
			return nil
		case engine.Dialogue:
			p.printDialogue(s)
			act, err = p.dialogueInput(ctx)
		case engine.Choice:
			p.printChoice(s)
			act, err = p.choiceInput(ctx, s)
		default:
			return fmt.Errorf("unexpected state %T", st)
		}
		if err != nil {
			return err
		}
		switch act {
		case quit:
			return nil
		case advance:
			st, err = p.eng.Step()
		}
	}
}

func (p *Player) printDialogue(d engine.Dialogue) {
	var b strings.Builder
	if d.Seen {
		b.WriteString(SeenPrefix)
	}
	if d.Speaker != "" {
		b.WriteString(d.Speaker)
		b.WriteString(": ")
	}
	b.WriteString(d.Text)
	fmt.Fprintln(p.out, b.String())
}

func (p *Player) printChoice(c engine.Choice) {
	for i, o := range c.Options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o.Label)
	}
}

func (p *Player) dialogueInput(ctx context.Context) (action, error) {
	for {
		line, err := p.read("> ")
		if err != nil {
			return quit, err
		}
		if act, ok := p.command(ctx, line); ok {
			if act == stay {
				continue
			}
			return act, nil
		}
		return advance, nil
	}
}

func (p *Player) choiceInput(ctx context.Context, c engine.Choice) (action, error) {
	for {
		line, err := p.read(fmt.Sprintf("choose 1-%d> ", len(c.Options)))
		if err != nil {
			return quit, err
		}
		if act, ok := p.command(ctx, line); ok {
			if act == stay {
				continue
			}
			return act, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(c.Options) {
			fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(c.Options))
			continue
		}
		if err := p.eng.SelectChoice(c.Options[n-1].Index); err != nil {
			return quit, err
		}
		return advance, nil
	}
}

// read maps end of input and Ctrl-C to a quiet quit.
func (p *Player) read(prompt string) (string, error) {
	line, err := p.in.Prompt(prompt)
	if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
		return ":quit", nil
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return line, nil
}

// command runs a ':' command. ok is false for ordinary input.
func (p *Player) command(ctx context.Context, line string) (act action, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		return stay, false
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		p.help()
		return stay, true
	}
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	switch fields[0] {
	case "quit", "q":
		return quit, true
	case "save":
		name, err := p.eng.Save(ctx, arg)
		if err != nil {
			fmt.Fprintf(p.out, "Save failed: %v\n", err)
			return stay, true
		}
		fmt.Fprintf(p.out, "Saved as %s.\n", name)
		return stay, true
	case "load":
		if arg == "" {
			fmt.Fprintln(p.out, "Usage: :load <name>")
			return stay, true
		}
		if err := p.eng.Load(ctx, arg); err != nil {
			fmt.Fprintf(p.out, "Load failed: %v\n", err)
			return stay, true
		}
		fmt.Fprintf(p.out, "Loaded %s.\n", arg)
		return advance, true
	case "back":
		if err := p.eng.Rollback(); err != nil {
			fmt.Fprintf(p.out, "Cannot go back: %v\n", err)
			return stay, true
		}
		return advance, true
	case "saves":
		saves, err := p.eng.ListSaves(ctx)
		if err != nil {
			fmt.Fprintf(p.out, "Cannot list saves: %v\n", err)
			return stay, true
		}
		if len(saves) == 0 {
			fmt.Fprintln(p.out, "No saves.")
		}
		for _, s := range saves {
			fmt.Fprintf(p.out, "  %s  (%s)\n", s.Name, s.ModTime.Format("2006-01-02 15:04"))
		}
		return stay, true
	default:
		p.log.Debug("unknown command", slog.String("cmd", fields[0]))
		p.help()
		return stay, true
	}
}

func (p *Player) help() {
	fmt.Fprintln(p.out, "Commands: :save [name], :load <name>, :back, :saves, :quit")
}
