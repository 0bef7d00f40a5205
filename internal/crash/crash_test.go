/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeSession struct {
	dir   string
	names []string
	err   error
}

func (f *fakeSession) Save(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return name, nil
}

func (f *fakeSession) SavesDir() string { return f.dir }

// stub replaces the exit, clock and stderr hooks for one test.
func stub(t *testing.T) (*int, *bytes.Buffer) {
	t.Helper()
	code := -1
	var out bytes.Buffer
	oldExit, oldNow, oldStderr := exitFn, now, stderr
	exitFn = func(c int) { code = c }
	now = func() time.Time { return time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC) }
	stderr = &out
	t.Cleanup(func() { exitFn, now, stderr = oldExit, oldNow, oldStderr })
	return &code, &out
}

func TestRecoverWritesReportAndAutosaves(t *testing.T) {
	code, out := stub(t)
	s := &fakeSession{dir: filepath.Join(t.TempDir(), "saves")}

	func() {
		defer Recover(s)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
	if len(s.names) != 1 || s.names[0] != "crash-20240309-070501" {
		t.Fatalf("autosave names = %v", s.names)
	}
	report := filepath.Join(s.dir, "crash-20240309-070501.log")
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "VN Engine Crash Report") || !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report content:\n%s", b)
	}
	if !strings.Contains(out.String(), report) || !strings.Contains(out.String(), `"crash-20240309-070501"`) {
		t.Fatalf("stderr message:\n%s", out.String())
	}
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	code, out := stub(t)
	s := &fakeSession{dir: t.TempDir()}
	func() {
		defer Recover(s)
	}()
	if *code != -1 || len(s.names) != 0 || out.Len() != 0 {
		t.Fatalf("code=%d names=%v out=%q", *code, s.names, out.String())
	}
}

func TestRecoverSurvivesFailedAutosave(t *testing.T) {
	code, _ := stub(t)
	s := &fakeSession{err: errors.New("disk full")}
	func() {
		defer Recover(s)
		panic("boom")
	}()
	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
}

func TestRecoverWithoutSessionReportsToTemp(t *testing.T) {
	code, out := stub(t)
	func() {
		defer Recover(nil)
		panic(errors.New("nil map"))
	}()
	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
	path := filepath.Join(os.TempDir(), "crash-20240309-070501.log")
	t.Cleanup(func() { _ = os.Remove(path) })
	if !strings.Contains(out.String(), path) {
		t.Fatalf("stderr does not name %s:\n%s", path, out.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}
