/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interp

import "vnengine/internal/ast"

// State is the visible result of one Advance: ShowDialogue, ShowChoice or Finished.
type State interface {
	state()
}

// ShowDialogue suspends on a dialogue line. Path is the key of the scope the
// line belongs to, used for seen-dialogue queries.
type ShowDialogue struct {
	Node *ast.Dialogue
	Path string
}

// ShowChoice suspends until SelectChoice is called. Available lists the indices
// into Node.Options whose guard is absent or true.
type ShowChoice struct {
	Node      *ast.ChoiceStatement
	Available []int
	Path      string
}

// Finished means the stack is empty.
type Finished struct{}

func (ShowDialogue) state() {}
func (ShowChoice) state()   {}
func (Finished) state()     {}
