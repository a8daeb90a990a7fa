package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	ProjectsDir string `toml:"projects_dir"`
	APIBind     string `toml:"api_bind"`
}

// Gemini contains settings for the generation provider.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TextModel      string `toml:"text_model"`
	ImageModel     string `toml:"image_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Anthropic configures the optional text provider used for script writing,
// prompt recompilation, and prompt extraction.
type Anthropic struct {
	Enabled    bool   `toml:"enabled"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	UseBedrock bool   `toml:"use_bedrock"`
	AWSRegion  string `toml:"aws_region"`
	AWSProfile string `toml:"aws_profile"`
}

// Drive contains cloud storage settings. The access token is turned into an
// explicit session by the CLI; nothing holds it globally.
type Drive struct {
	AccessToken string `toml:"access_token"`
	ClientID    string `toml:"client_id"`
	BaseURL     string `toml:"base_url"`
	FolderName  string `toml:"folder_name"`
}

// Pipeline contains pacing and sizing knobs for the generation pipeline.
type Pipeline struct {
	CandidateDelayMS    int `toml:"candidate_delay_ms"`
	RemasterDelayMS     int `toml:"remaster_delay_ms"`
	ExtractMaxDimension int `toml:"extract_max_dimension"`
	MaxEditorRefs       int `toml:"max_editor_refs"`
}

// Autosave contains debounce settings.
type Autosave struct {
	Enabled            bool   `toml:"enabled"`
	QuietPeriodSeconds int    `toml:"quiet_period_seconds"`
	Destination        string `toml:"destination"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Candidates     bool   `toml:"candidates"`
	Panels         bool   `toml:"panels"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format    string `toml:"format"`
	Level     string `toml:"level"`
	DebugFile bool   `toml:"debug_file"`
}

// Config encapsulates all configuration values for the director.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and project directories plus the API bind address
//   - Gemini: text and image generation provider
//   - Anthropic: optional alternate text provider
//   - Drive: cloud project storage
//   - Pipeline: request pacing and image sizing
//   - Autosave: debounce behaviour
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Gemini        Gemini        `toml:"gemini"`
	Anthropic     Anthropic     `toml:"anthropic"`
	Drive         Drive         `toml:"drive"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Autosave      Autosave      `toml:"autosave"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/nano-director/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is applied to the environment first so key fallbacks can
// come from it. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("director.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The projects
// directory is created on a best-effort basis since it may live on removable
// storage.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ProjectsDir) != "" {
		_ = os.MkdirAll(c.Paths.ProjectsDir, 0o755)
	}
	return nil
}

// WorkspacePath is where the CLI keeps the live project between invocations.
func (c *Config) WorkspacePath() string {
	return filepath.Join(c.Paths.StateDir, "workspace.json")
}

// CatalogPath is the SQLite batch catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "catalog.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
