package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cmdtrace/internal/aggregate"
	apperrors "cmdtrace/internal/errors"
)

const DefaultGlamourStyle = "dark"

// AppConfig is the resolved configuration after file, env and flags.
type AppConfig struct {
	ClaudeHome   string   `yaml:"claude_home"`
	OpenCodeHome string   `yaml:"opencode_home"`
	DBPath       string   `yaml:"db_path"`
	LogLevel     string   `yaml:"log_level"`
	LogFile      string   `yaml:"log_file"`
	Exclude      []string `yaml:"exclude"`
	TagSort      string   `yaml:"tag_sort"`
	ExportDir    string   `yaml:"export_dir"`
}

// Overrides carries command-line values; empty fields are ignored.
type Overrides struct {
	ClaudeHome   string
	OpenCodeHome string
	DBPath       string
	LogLevel     string
}

// DefaultExclude skips sub-agent transcripts that Claude writes next to the
// parent session.
var DefaultExclude = []string{"agent-*"}

// Load reads the YAML file at path (the default location when empty), then
// applies environment and overrides. A missing default file is not an error;
// a missing explicit one is.
func Load(path string, ov Overrides) (AppConfig, error) {
	var cfg AppConfig

	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "parse "+path)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if ov.ClaudeHome != "" {
		cfg.ClaudeHome = ov.ClaudeHome
	}
	if ov.OpenCodeHome != "" {
		cfg.OpenCodeHome = ov.OpenCodeHome
	}
	if ov.DBPath != "" {
		cfg.DBPath = ov.DBPath
	}
	if ov.LogLevel != "" {
		cfg.LogLevel = ov.LogLevel
	}

	// Flags win over env, env wins over the file.
	if ov.ClaudeHome == "" {
		if env := os.Getenv("CLAUDE_HOME"); env != "" {
			cfg.ClaudeHome = env
		}
	}
	if ov.OpenCodeHome == "" {
		if env := os.Getenv("OPENCODE_HOME"); env != "" {
			cfg.OpenCodeHome = env
		}
	}

	cfg.ClaudeHome, err = DetectClaudeHome(expandHome(cfg.ClaudeHome))
	if err != nil {
		return cfg, err
	}
	cfg.OpenCodeHome, err = DetectOpenCodeHome(expandHome(cfg.OpenCodeHome))
	if err != nil {
		return cfg, err
	}

	if cfg.DBPath == "" {
		dataDir, err := dataHome()
		if err != nil {
			return cfg, err
		}
		cfg.DBPath = filepath.Join(dataDir, "cmdtrace", "cmdtrace.sqlite")
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.ExportDir = expandHome(cfg.ExportDir)

	if len(cfg.Exclude) == 0 {
		cfg.Exclude = append([]string(nil), DefaultExclude...)
	}
	if cfg.TagSort == "" {
		cfg.TagSort = aggregate.SortImportance.String()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if _, err := aggregate.ParseSortMode(c.TagSort); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "tag_sort")
	}
	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "exclude pattern "+pattern)
		}
	}
	return nil
}

// EnsureDirs creates the directories the store and log file live in.
func (c AppConfig) EnsureDirs() error {
	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return nil
}

// ClaudeProjectsDir is the root holding one directory per Claude project.
func (c AppConfig) ClaudeProjectsDir() string {
	return filepath.Join(c.ClaudeHome, "projects")
}

// OpenCodeStorageDir is the root of OpenCode's sharded session storage.
func (c AppConfig) OpenCodeStorageDir() string {
	return filepath.Join(c.OpenCodeHome, "storage")
}

func DefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cmdtrace", "config.yml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cmdtrace", "config.yml"), nil
}

func DetectClaudeHome(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if fromEnv := os.Getenv("CLAUDE_HOME"); fromEnv != "" {
		return filepath.Clean(fromEnv), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claude"), nil
}

func DetectOpenCodeHome(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if fromEnv := os.Getenv("OPENCODE_HOME"); fromEnv != "" {
		return filepath.Clean(fromEnv), nil
	}
	dataDir, err := dataHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "opencode"), nil
}

func dataHome() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Clean(xdg), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
