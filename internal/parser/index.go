/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parser

import (
	"strconv"

	"vnengine/internal/ast"
)

// Index returns a copy of prog carrying structural path ids. The input is left
// untouched; expressions and leaf statements are shared between the two trees.
//
// Ids:
//   - block: enclosing block names joined by "/" (e.g. "start/inner")
//   - if branch K of the N-th if in a body: "<parent>/ifN-branchK"
//   - its else: "<parent>/ifN-else"
//   - option K of the N-th choice in a body: "<parent>/choiceN-optionK"
//
// N counts from 1 per body and statement kind; K counts from 0. Dialogue lines get
// a 0-based Index among the dialogue lines of their immediate body.
func Index(prog *ast.Program) *ast.Program {
	out := &ast.Program{Blocks: make(map[string]*ast.Block, len(prog.Blocks))}
	for name, b := range prog.Blocks {
		out.Blocks[name] = indexBlock(b, name)
	}
	return out
}

func indexBlock(b *ast.Block, path string) *ast.Block {
	nb := &ast.Block{
		Path:       path,
		AssignedID: b.AssignedID,
		Name:       b.Name,
		Body:       indexBody(b.Body, path),
		Blocks:     make(map[string]*ast.Block, len(b.Blocks)),
		Pos:        b.Pos,
	}
	for name, child := range b.Blocks {
		nb.Blocks[name] = indexBlock(child, path+"/"+name)
	}
	return nb
}

func indexBody(body []ast.Stmt, parent string) []ast.Stmt {
	if body == nil {
		return nil
	}
	out := make([]ast.Stmt, len(body))
	var ifN, choiceN int
	var dialogue int16
	for i, st := range body {
		switch s := st.(type) {
		case *ast.Dialogue:
			d := *s
			d.Index = dialogue
			dialogue++
			out[i] = &d
		case *ast.IfStatement:
			ifN++
			prefix := parent + "/if" + strconv.Itoa(ifN)
			ns := &ast.IfStatement{Pos: s.Pos, Branches: make([]*ast.IfBranch, len(s.Branches))}
			for k, br := range s.Branches {
				path := prefix + "-branch" + strconv.Itoa(k)
				ns.Branches[k] = &ast.IfBranch{
					Path:       path,
					AssignedID: br.AssignedID,
					Condition:  br.Condition,
					Body:       indexBody(br.Body, path),
				}
			}
			if s.Else != nil {
				path := prefix + "-else"
				ns.Else = &ast.ElseBranch{Path: path, AssignedID: s.Else.AssignedID, Body: indexBody(s.Else.Body, path)}
			}
			out[i] = ns
		case *ast.ChoiceStatement:
			choiceN++
			prefix := parent + "/choice" + strconv.Itoa(choiceN)
			ns := &ast.ChoiceStatement{Pos: s.Pos, Options: make([]*ast.ChoiceOption, len(s.Options))}
			for k, opt := range s.Options {
				path := prefix + "-option" + strconv.Itoa(k)
				ns.Options[k] = &ast.ChoiceOption{
					Path:       path,
					AssignedID: opt.AssignedID,
					Guard:      opt.Guard,
					Label:      opt.Label,
					Body:       indexBody(opt.Body, path),
					Pos:        opt.Pos,
				}
			}
			out[i] = ns
		default:
			out[i] = st
		}
	}
	return out
}
