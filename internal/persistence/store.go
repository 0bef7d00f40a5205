/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"vnengine/internal/ast"
	vlog "vnengine/internal/log"
)

const (
	VariablesFileName = "variables.bin"
	SeenFileName      = "dialogue.bin"
)

// Store holds the tables that survive across playthroughs. Loading never
// fails: a missing file is an empty table and a damaged one is logged and
// treated as empty.
type Store struct {
	Dir string
	log *slog.Logger
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, log: vlog.WithComponent("persistence")}
}

func (s *Store) LoadVariables() map[string]ast.Value {
	path := filepath.Join(s.Dir, VariablesFileName)
	data, ok := s.read(path)
	if !ok {
		return map[string]ast.Value{}
	}
	vars, err := DecodeVariables(data)
	if err != nil {
		s.log.Warn("persistent variables unreadable; starting empty", slog.String("path", path), slog.Any("err", err))
		return map[string]ast.Value{}
	}
	return vars
}

func (s *Store) LoadSeen() map[string]int16 {
	path := filepath.Join(s.Dir, SeenFileName)
	data, ok := s.read(path)
	if !ok {
		return map[string]int16{}
	}
	seen, err := DecodeSeen(data)
	if err != nil {
		s.log.Warn("seen-dialogue table unreadable; starting empty", slog.String("path", path), slog.Any("err", err))
		return map[string]int16{}
	}
	return seen
}

func (s *Store) SaveVariables(vars map[string]ast.Value) error {
	data, err := EncodeVariables(vars)
	if err != nil {
		return fmt.Errorf("encode persistent variables: %w", err)
	}
	return s.write(VariablesFileName, data)
}

func (s *Store) SaveSeen(seen map[string]int16) error {
	data, err := EncodeSeen(seen)
	if err != nil {
		return fmt.Errorf("encode seen-dialogue table: %w", err)
	}
	return s.write(SeenFileName, data)
}

func (s *Store) read(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("cannot read persistence file; starting empty", slog.String("path", path), slog.Any("err", err))
		}
		return nil, false
	}
	return data, true
}

func (s *Store) write(name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure persistence dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.Dir, name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// writeFileAtomic writes to a synced temp file in the target directory, then
// renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	f, err := os.OpenFile(temp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(temp)
		return err
	}
	// Windows will not rename over an existing file
	if _, serr := os.Stat(path); serr == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return err
	}
	return nil
}
