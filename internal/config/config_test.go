/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var allEnv = []string{
	EnvScript, EnvSavesDir, EnvPersistenceDir, EnvCatalogDSN, EnvCatalogEnabled, EnvHistoryMax,
	EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromMissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestLoadFromMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
paths:
  script: story/main.vn
history:
  max_snapshots: 50
logging:
  level: DEBUG
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	want := Defaults()
	want.Paths.Script = "story/main.vn"
	want.History.MaxSnapshots = 50
	want.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
	if !cfg.Catalog.Enabled {
		t.Fatalf("catalog should stay enabled when the file omits it")
	}
}

func TestLoadFromHonorsDisabledCatalog(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(writeConfig(t, "catalog:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Catalog.Enabled {
		t.Fatalf("catalog enabled, want disabled")
	}
}

func TestInvalidFileIsIgnored(t *testing.T) {
	clearEnv(t)
	for name, body := range map[string]string{
		"wrong type":   "history:\n  max_snapshots: lots\n",
		"unknown key":  "paths:\n  scripts: x.vn\n",
		"bad format":   "logging:\n  format: xml\n",
		"broken yaml":  "paths: [unterminated\n",
		"non-positive": "history:\n  max_bytes: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadFrom(writeConfig(t, body))
			if err != nil {
				t.Fatalf("LoadFrom: %v", err)
			}
			if diff := cmp.Diff(Defaults(), cfg); diff != "" {
				t.Fatalf("invalid file changed config (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]byte("catalog:\n  dsn: postgres://localhost/vn\n")); err != nil {
		t.Fatalf("Validate(valid): %v", err)
	}
	if err := Validate(nil); err != nil {
		t.Fatalf("Validate(empty): %v", err)
	}
	err := Validate([]byte("catalog:\n  enabled: maybe\n"))
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("Validate(invalid) = %v, want schema error", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvScript, "other.vn")
	t.Setenv(EnvSavesDir, "/tmp/saves")
	t.Setenv(EnvCatalogEnabled, "off")
	t.Setenv(EnvCatalogDSN, "postgres://db/vn")
	t.Setenv(EnvHistoryMax, "12")
	t.Setenv(EnvLogSource, "yes")
	cfg, err := LoadFrom(writeConfig(t, "paths:\n  script: file.vn\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Paths.Script != "other.vn" || cfg.Paths.SavesDir != "/tmp/saves" {
		t.Fatalf("paths = %+v", cfg.Paths)
	}
	if cfg.Catalog.Enabled || cfg.Catalog.DSN != "postgres://db/vn" {
		t.Fatalf("catalog = %+v", cfg.Catalog)
	}
	if cfg.History.MaxSnapshots != 12 || !cfg.Logging.Source {
		t.Fatalf("history = %+v, logging = %+v", cfg.History, cfg.Logging)
	}

	t.Setenv(EnvHistoryMax, "-3")
	cfg, _ = LoadFrom(filepath.Join(t.TempDir(), "none.yaml"))
	if cfg.History.MaxSnapshots != Defaults().History.MaxSnapshots {
		t.Fatalf("negative env value applied: %d", cfg.History.MaxSnapshots)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	clearEnv(t)
	if _, ok := EnvOverrideFor("paths.script"); ok {
		t.Fatalf("unexpected override without env")
	}
	t.Setenv(EnvScript, "x.vn")
	if env, ok := EnvOverrideFor("paths.script"); !ok || env != EnvScript {
		t.Fatalf("EnvOverrideFor = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Paths.PersistenceDir = "state"
	cfg.Catalog.Enabled = false
	cfg.Logging.Format = "json"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestConfigPathUsesXDG(t *testing.T) {
	if runtimeIsUnixLike() {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)
		p, err := ConfigPath()
		if err != nil {
			t.Fatalf("ConfigPath: %v", err)
		}
		if want := filepath.Join(dir, "vnengine", "config.yaml"); p != want {
			t.Fatalf("ConfigPath = %q, want %q", p, want)
		}
	}
}

func TestLogOptions(t *testing.T) {
	opts := LoggingConfig{Level: "warn", Format: "json", Source: true, File: "vn.log"}.LogOptions()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "vn.log" {
		t.Fatalf("LogOptions = %+v", opts)
	}
}

func runtimeIsUnixLike() bool {
	return runtime.GOOS != "windows" && runtime.GOOS != "darwin"
}
