/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a compiled script as a printable script book: one
// section per block with its path id, every line, choice and branch, so
// writers and translators can review a story without playing it.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"vnengine/internal/ast"
	applog "vnengine/internal/log"
)

// Options controls the script book layout. Units are points.
type Options struct {
	Title  string
	Author string
	// PageSize is a gofpdf size name ("A4", "Letter", "A5"); empty means A4.
	PageSize string
	FontSize float64
	// HidePaths omits the path ids next to blocks, branches and options.
	HidePaths bool
	// NoCompression writes plain content streams (diffable output).
	NoCompression bool
}

const (
	margin      = 48.0
	indentStep  = 18.0
	defaultFont = 10.5
)

type book struct {
	pdf  *gofpdf.Fpdf
	tr   func(string) string
	opt  Options
	line float64
}

// ScriptBookPDF writes the script book for prog to out. prog should be indexed
// so path ids can be printed.
func ScriptBookPDF(prog *ast.Program, out io.Writer, opt Options) error {
	if prog == nil {
		return errors.New("program is nil")
	}
	l := applog.WithOperation(applog.WithComponent("export"), "script_book")
	if opt.PageSize == "" {
		opt.PageSize = "A4"
	}
	if opt.FontSize <= 0 {
		opt.FontSize = defaultFont
	}
	if opt.Title == "" {
		opt.Title = "Script book"
	}

	pdf := gofpdf.New("P", "pt", opt.PageSize, "")
	pdf.SetCompression(!opt.NoCompression)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(opt.Title, true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetCreator("vnengine", false)
	pdf.AliasNbPages("")

	b := &book{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), opt: opt, line: opt.FontSize * 1.4}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + 12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s  -  %d/{nb}", b.tr(opt.Title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", opt.FontSize*2)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, opt.FontSize*2.6, b.tr(opt.Title), "", "L", false)
	pdf.Ln(opt.FontSize)

	blocks := 0
	for _, name := range prog.SortedNames() {
		blocks += b.block(prog.Blocks[name])
	}
	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	l.Info("script book written", slog.Int("blocks", blocks), slog.Int("pages", pdf.PageNo()))
	return nil
}

// ScriptBookPDFFile writes the script book to path, creating parent directories.
func ScriptBookPDFFile(prog *ast.Program, path string, opt Options) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return ScriptBookPDF(prog, f, opt)
}

// block renders b and its nested blocks; it returns the number of sections.
func (b *book) block(blk *ast.Block) int {
	pdf := b.pdf
	pdf.Ln(b.line / 2)
	b.setLeft(0)
	pdf.SetFont("Helvetica", "B", b.opt.FontSize*1.3)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, b.line*1.2, b.tr("block "+blk.Name), "", "L", false)
	if !b.opt.HidePaths {
		b.text(0, "", 0.8, 110, blk.Key())
	}
	if len(blk.Body) == 0 {
		b.text(1, "I", 1, 110, "(empty)")
	}
	b.body(blk.Body, 1)
	n := 1
	for _, name := range blk.SortedNames() {
		n += b.block(blk.Blocks[name])
	}
	return n
}

func (b *book) body(stmts []ast.Stmt, depth int) {
	for _, st := range stmts {
		switch s := st.(type) {
		case *ast.Dialogue:
			if s.Speaker == "" {
				b.text(depth, "I", 1, 0, fmt.Sprintf("%d  %s", s.Index, s.Text))
			} else {
				b.text(depth, "", 1, 0, fmt.Sprintf("%d  %s: %s", s.Index, strings.ToUpper(s.Speaker), s.Text))
			}
		case *ast.ExecuteStatement:
			b.text(depth, "B", 1, 60, "-> execute "+s.Target)
		case *ast.AssignStatement:
			b.text(depth, "", 1, 60, fmt.Sprintf("set %s = %s", s.Variable, s.Value.String()))
		case *ast.IfStatement:
			for i, br := range s.Branches {
				kw := "if"
				if i > 0 {
					kw = "else if"
				}
				b.text(depth, "B", 1, 60, b.withPath(kw+" "+br.Condition.String(), br.Key()))
				b.body(br.Body, depth+1)
			}
			if s.Else != nil {
				b.text(depth, "B", 1, 60, b.withPath("else", s.Else.Key()))
				b.body(s.Else.Body, depth+1)
			}
		case *ast.ChoiceStatement:
			b.text(depth, "B", 1, 60, "choice")
			for i, o := range s.Options {
				label := fmt.Sprintf("%d) %s", i+1, o.Label)
				if o.Guard != nil {
					label += "   [if " + o.Guard.String() + "]"
				}
				b.text(depth+1, "", 1, 0, b.withPath(label, o.Key()))
				b.body(o.Body, depth+2)
			}
		case *ast.IgnoredStatement:
			b.text(depth, "I", 0.9, 150, "(ignored literal "+s.Value+")")
		}
	}
}

func (b *book) withPath(s, path string) string {
	if b.opt.HidePaths || path == "" {
		return s
	}
	return s + "   <" + path + ">"
}

func (b *book) setLeft(depth int) {
	x := margin + float64(depth)*indentStep
	b.pdf.SetLeftMargin(x)
	b.pdf.SetX(x)
}

// text writes one wrapped paragraph. gray is 0 (black) to 255.
func (b *book) text(depth int, style string, scale float64, gray int, s string) {
	b.setLeft(depth)
	b.pdf.SetFont("Helvetica", style, b.opt.FontSize*scale)
	b.pdf.SetTextColor(gray, gray, gray)
	b.pdf.MultiCell(0, b.line*scale, b.tr(s), "", "L", false)
}
