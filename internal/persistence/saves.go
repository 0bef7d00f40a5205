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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	vlog "vnengine/internal/log"
	"vnengine/internal/vnerr"
)

const (
	SaveExtension = ".save"
	// TimestampLayout names saves written without an explicit name.
	TimestampLayout = "2006_01_02_15_04_05"
)

// SaveInfo describes one save file on disk.
type SaveInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// SaveStore manages the save files of one saves directory.
type SaveStore struct {
	Dir string
	// Now stamps unnamed saves; nil means time.Now.
	Now func() time.Time
	log *slog.Logger
}

func NewSaveStore(dir string) *SaveStore {
	return &SaveStore{Dir: dir, log: vlog.WithComponent("persistence")}
}

// Name normalizes a save name: the extension is stripped and an empty name
// becomes the current timestamp. Names must not contain path separators.
func (s *SaveStore) Name(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), SaveExtension)
	if name == "" {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		return now().Format(TimestampLayout), nil
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid save name %q", name)
	}
	return name, nil
}

// Path returns the file backing the save called name.
func (s *SaveStore) Path(name string) string {
	return filepath.Join(s.Dir, strings.TrimSuffix(name, SaveExtension)+SaveExtension)
}

// Write stores sv under name (a timestamp when empty) and returns the final name.
// An existing save of the same name is replaced.
func (s *SaveStore) Write(name string, sv Save) (string, error) {
	name, err := s.Name(name)
	if err != nil {
		return "", err
	}
	data, err := EncodeSave(sv)
	if err != nil {
		return "", fmt.Errorf("encode save %q: %w", name, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure saves dir: %w", err)
	}
	if err := writeFileAtomic(s.Path(name), data); err != nil {
		return "", fmt.Errorf("write save %q: %w", name, err)
	}
	s.log.Info("saved", slog.String("name", name), slog.Int("bytes", len(data)), slog.Int("frames", len(sv.Stack)))
	return name, nil
}

// Read loads the save called name, with or without the extension. Missing,
// truncated or malformed files are RuntimeErrors.
func (s *SaveStore) Read(name string) (Save, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), SaveExtension)
	if name == "" {
		return Save{}, vnerr.Runtimef("no save name given")
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Save{}, &vnerr.RuntimeError{Msg: fmt.Sprintf("save %q does not exist", name), Err: err}
		}
		return Save{}, &vnerr.RuntimeError{Msg: fmt.Sprintf("cannot read save %q", name), Err: err}
	}
	sv, err := DecodeSave(data)
	if err != nil {
		return Save{}, &vnerr.RuntimeError{Msg: fmt.Sprintf("save %q is corrupt", name), Err: err}
	}
	return sv, nil
}

// List returns the saves in the directory, newest first. A missing directory
// lists nothing.
func (s *SaveStore) List() ([]SaveInfo, error) {
	ents, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list saves: %w", err)
	}
	var out []SaveInfo
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SaveExtension) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SaveInfo{
			Name:    strings.TrimSuffix(e.Name(), SaveExtension),
			Path:    filepath.Join(s.Dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Delete removes a save. Deleting a missing save is not an error.
func (s *SaveStore) Delete(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete save %q: %w", name, err)
	}
	return nil
}
