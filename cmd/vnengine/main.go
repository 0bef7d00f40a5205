/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"vnengine/internal/ast"
	"vnengine/internal/config"
	"vnengine/internal/console"
	"vnengine/internal/crash"
	"vnengine/internal/engine"
	"vnengine/internal/export"
	"vnengine/internal/history"
	"vnengine/internal/interp"
	applog "vnengine/internal/log"
	"vnengine/internal/parser"
	"vnengine/internal/persistence"
	"vnengine/internal/storage"
	"vnengine/internal/version"
	"vnengine/internal/vnerr"
)

// errUsage makes main print the usage text and exit with code 2.
var errUsage = errors.New("usage")

func usage() {
	fmt.Println("VN Engine")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vnengine version|-v|--version        Show version")
	fmt.Println("  vnengine check [<script>]            Compile a script and print its path tree")
	fmt.Println("  vnengine run [<script> [<save>]]     Play a script in the console, optionally from a save")
	fmt.Println("  vnengine saves                       List saves")
	fmt.Println("  vnengine search <script> <text>      Index a script and search its dialogue")
	fmt.Println("  vnengine export <script> <out.pdf>   Write a script book PDF")
	fmt.Println()
	fmt.Println("Configuration is read from the user config file and VN_* environment variables.")
}

func main() {
	cfg, err := config.Load()
	// initialize structured logging from the effective config
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", err))
	}

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	ctx := context.Background()
	rest := args[2:]
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("VN Engine")
		fmt.Println(version.String())
		return
	case "check":
		err = check(os.Stdout, scriptArg(cfg, rest))
	case "run":
		err = run(ctx, cfg, rest)
	case "saves":
		err = listSaves(ctx, os.Stdout, cfg)
	case "search":
		if len(rest) < 2 {
			fmt.Println("search requires <script> and <text>")
			err = errUsage
			break
		}
		err = search(ctx, os.Stdout, cfg, rest[0], strings.Join(rest[1:], " "))
	case "export":
		if len(rest) < 2 {
			fmt.Println("export requires <script> and <out.pdf>")
			err = errUsage
			break
		}
		err = exportPDF(rest[0], rest[1])
	default:
		err = errUsage
	}

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		usage()
		os.Exit(2)
	default:
		l.Error(args[1]+" failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func scriptArg(cfg config.AppConfig, rest []string) string {
	if len(rest) > 0 && rest[0] != "" {
		return rest[0]
	}
	return cfg.Paths.Script
}

// compile reads and compiles a script; errors carry a source excerpt.
func compile(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := string(data)
	prog, err := parser.Compile(src)
	if err != nil {
		return nil, vnerr.WrapWithSource(err, path, src)
	}
	return prog, nil
}

func check(w io.Writer, path string) error {
	prog, err := compile(path)
	if err != nil {
		return err
	}
	scopes := interp.Scopes(prog)
	for _, s := range scopes {
		indent := strings.Repeat("  ", strings.Count(s.Path, "/"))
		_, _ = fmt.Fprintf(w, "%s%s  (%d statements, line %d)\n", indent, s.Path, len(s.Body), s.Pos.Line)
	}
	_, _ = fmt.Fprintf(w, "%s: ok, %d blocks, %d scopes\n", path, len(prog.Blocks), len(scopes))
	return nil
}

// openCatalog returns nil when the catalog is disabled. Open failures are
// returned so callers decide whether the catalog is optional.
func openCatalog(ctx context.Context, cfg config.AppConfig) (*storage.Catalog, error) {
	if !cfg.Catalog.Enabled {
		return nil, nil
	}
	dsn := cfg.Catalog.DSN
	if dsn == "" {
		dsn = storage.DefaultPath(cfg.Paths.SavesDir)
	}
	return storage.OpenCatalog(ctx, dsn)
}

// linePrompter records every non-empty answer in the liner history.
type linePrompter struct{ *liner.State }

func (p linePrompter) Prompt(prompt string) (string, error) {
	s, err := p.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(s) != "" {
		p.AppendHistory(s)
	}
	return s, err
}

func run(ctx context.Context, cfg config.AppConfig, rest []string) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "run")
	path := scriptArg(cfg, rest)
	var saveName string
	if len(rest) > 1 {
		saveName = rest[1]
	}
	prog, err := compile(path)
	if err != nil {
		return err
	}
	script := filepath.Base(path)

	opt := engine.Options{
		Script:         script,
		SavesDir:       cfg.Paths.SavesDir,
		PersistenceDir: cfg.Paths.PersistenceDir,
		History:        history.Config{MaxSnapshots: cfg.History.MaxSnapshots, MaxBytes: cfg.History.MaxBytes},
	}
	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		l.Warn("catalog unavailable; saves are not recorded", slog.Any("err", err))
	}
	if cat != nil {
		defer func() { _ = cat.Close() }()
		opt.Catalog = cat
		if n, err := cat.IndexScript(ctx, script, prog); err != nil {
			l.Warn("indexing dialogue failed", slog.Any("err", err))
		} else {
			l.Debug("dialogue indexed", slog.Int("docs", n))
		}
	}

	eng := engine.New(prog, opt)
	defer func() {
		if err := eng.Close(); err != nil {
			l.Error("persisting tables failed", slog.Any("err", err))
		}
	}()
	defer crash.Recover(eng)

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	if err := eng.Start(ctx, saveName); err != nil {
		return err
	}
	return console.NewPlayer(eng, linePrompter{line}, os.Stdout).Run(ctx)
}

func listSaves(ctx context.Context, w io.Writer, cfg config.AppConfig) error {
	infos, err := persistence.NewSaveStore(cfg.Paths.SavesDir).List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(w, "No saves.")
		return nil
	}
	previews := map[string]storage.SaveRecord{}
	if cat, err := openCatalog(ctx, cfg); err == nil && cat != nil {
		defer func() { _ = cat.Close() }()
		if recs, err := cat.ListSaves(ctx); err == nil {
			for _, r := range recs {
				previews[r.Name] = r
			}
		}
	}
	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "%-24s %s  %6d bytes", info.Name, info.ModTime.Format(time.DateTime), info.Size)
		if r, ok := previews[info.Name]; ok && r.Preview != "" {
			_, _ = fmt.Fprintf(w, "  %s: %q", r.Script, r.Preview)
		}
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

func search(ctx context.Context, w io.Writer, cfg config.AppConfig, path, text string) error {
	prog, err := compile(path)
	if err != nil {
		return err
	}
	if !cfg.Catalog.Enabled {
		return errors.New("search needs the catalog; enable it in the config or set " + config.EnvCatalogEnabled)
	}
	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()
	script := filepath.Base(path)
	if _, err := cat.IndexScript(ctx, script, prog); err != nil {
		return err
	}
	res, err := cat.Search(ctx, storage.SearchQuery{Text: text, Script: script})
	if err != nil {
		return err
	}
	if len(res) == 0 {
		_, _ = fmt.Fprintln(w, "No matches.")
		return nil
	}
	for _, r := range res {
		who := r.Speaker
		if r.Kind == storage.KindChoice {
			who = "choice"
		}
		if who != "" {
			who += ": "
		}
		_, _ = fmt.Fprintf(w, "%s#%d  %s%s\n", r.Path, r.LineIndex, who, r.Snippet)
	}
	return nil
}

func exportPDF(path, out string) error {
	prog, err := compile(path)
	if err != nil {
		return err
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := export.ScriptBookPDFFile(prog, out, export.Options{Title: title}); err != nil {
		return err
	}
	fmt.Println("Wrote", out)
	return nil
}
