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
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
	applog "vnengine/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type PathsConfig struct {
	Script         string `yaml:"script"`
	SavesDir       string `yaml:"saves_dir"`
	PersistenceDir string `yaml:"persistence_dir"`
}

type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"` // empty: catalog.sqlite inside the saves directory
}

type HistoryConfig struct {
	MaxSnapshots int `yaml:"max_snapshots"`
	MaxBytes     int `yaml:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Paths         PathsConfig   `yaml:"paths"`
	Catalog       CatalogConfig `yaml:"catalog"`
	History       HistoryConfig `yaml:"history"`
	Logging       LoggingConfig `yaml:"logging"`
}

//go:embed schema.json
var schemaJSON []byte

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Paths:         PathsConfig{Script: "res/script.vn", SavesDir: "data/saves", PersistenceDir: "data/persistence"},
		Catalog:       CatalogConfig{Enabled: true, DSN: ""},
		History:       HistoryConfig{MaxSnapshots: 200, MaxBytes: 4 << 20},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvScript         = "VN_SCRIPT"
	EnvSavesDir       = "VN_SAVES_DIR"
	EnvPersistenceDir = "VN_PERSISTENCE_DIR"
	EnvCatalogDSN     = "VN_CATALOG_DSN"
	EnvCatalogEnabled = "VN_CATALOG_ENABLED"
	EnvHistoryMax     = "VN_HISTORY_MAX"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "VN_LOG_LEVEL"
	EnvLogFormat = "VN_LOG_FORMAT"
	EnvLogSource = "VN_LOG_SOURCE"
	EnvLogFile   = "VN_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VNEngine")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VNEngine")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "vnengine")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "vnengine")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file from ConfigPath. See LoadFrom.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path (if present), applies defaults, and merges
// environment overrides. A file that cannot be parsed or does not match the schema
// is logged and ignored; only I/O errors other than a missing file are returned.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	var readErr error
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if fileCfg, err := decode(data); err != nil {
			applog.WithComponent("config").Warn("ignoring config file", slog.String("path", path), slog.Any("err", err))
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	case !errors.Is(err, os.ErrNotExist):
		readErr = fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, readErr
}

// decode validates data and unmarshals it over the defaults, so sections and
// booleans the file leaves out keep their default values.
func decode(data []byte) (AppConfig, error) {
	cfg := Defaults()
	if strings.TrimSpace(string(data)) == "" {
		return cfg, nil
	}
	if err := Validate(data); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks YAML config data against the embedded JSON schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		return nil
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("config does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Save writes the config YAML to path, or to ConfigPath when path is empty.
func Save(cfg AppConfig, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.Paths.Script); v != "" {
		dst.Paths.Script = v
	}
	if v := strings.TrimSpace(src.Paths.SavesDir); v != "" {
		dst.Paths.SavesDir = v
	}
	if v := strings.TrimSpace(src.Paths.PersistenceDir); v != "" {
		dst.Paths.PersistenceDir = v
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Catalog.Enabled = src.Catalog.Enabled
	if v := strings.TrimSpace(src.Catalog.DSN); v != "" {
		dst.Catalog.DSN = v
	}
	if src.History.MaxSnapshots > 0 {
		dst.History.MaxSnapshots = src.History.MaxSnapshots
	}
	if src.History.MaxBytes > 0 {
		dst.History.MaxBytes = src.History.MaxBytes
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvScript)); v != "" {
		cfg.Paths.Script = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSavesDir)); v != "" {
		cfg.Paths.SavesDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPersistenceDir)); v != "" {
		cfg.Paths.PersistenceDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogDSN)); v != "" {
		cfg.Catalog.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogEnabled)); v != "" {
		cfg.Catalog.Enabled = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryMax)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.MaxSnapshots = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var env string
	switch key {
	case "paths.script":
		env = EnvScript
	case "paths.saves_dir":
		env = EnvSavesDir
	case "paths.persistence_dir":
		env = EnvPersistenceDir
	case "catalog.dsn":
		env = EnvCatalogDSN
	case "catalog.enabled":
		env = EnvCatalogEnabled
	case "history.max_snapshots":
		env = EnvHistoryMax
	case "logging.level":
		env = EnvLogLevel
	case "logging.format":
		env = EnvLogFormat
	case "logging.source":
		env = EnvLogSource
	case "logging.file":
		env = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// LogOptions converts the logging section for log.Init.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
