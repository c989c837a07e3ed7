package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local state directories.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	ReportDir string `toml:"report_dir"`
}

// Grading contains the remote grading service location.
type Grading struct {
	BaseURL        string `toml:"base_url"`
	ProcessPath    string `toml:"process_path"`
	ReportPath     string `toml:"report_path"`
	ReportFilename string `toml:"report_filename"`
	// RequestTimeoutSeconds bounds each grading or report request. Zero keeps
	// the transport default (no client-side timeout).
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// Identity contains configuration for the hosted identity provider.
type Identity struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	TokenURL            string `toml:"token_url"`
	GoogleClientID      string `toml:"google_client_id"`
	GoogleClientSecret  string `toml:"google_client_secret"`
	GoogleIssuer        string `toml:"google_issuer"`
	LoginTimeoutSeconds int    `toml:"login_timeout_seconds"`
	RequireSignIn       bool   `toml:"require_sign_in"`
}

// History contains configuration for the local grading history.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// ToFile additionally appends log lines to paths.log_dir/evalo.log.
	ToFile bool `toml:"to_file"`
}

// Config encapsulates all configuration values for evalo.
//
// Configuration sections by subsystem:
//   - Paths: local state, logs, and default report destination
//   - Grading: remote grading and report endpoints
//   - Identity: hosted identity provider and Google sign-in
//   - History: local record of past gradings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Grading       Grading       `toml:"grading"`
	Identity      Identity      `toml:"identity"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/evalo/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
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

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("evalo.toml")
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

// EnsureDirectories creates the local state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionPath returns where the signed-in identity session is persisted.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Paths.StateDir, defaultSessionFileName)
}

// HistoryPath returns the grading history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, defaultHistoryDatabaseName)
}

// LogFilePath returns the application log file used when logging.to_file is set.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, defaultApplicationLogName)
}

// ProcessURL returns the absolute grading endpoint URL.
func (c *Config) ProcessURL() string {
	return joinURL(c.Grading.BaseURL, c.Grading.ProcessPath)
}

// ReportURL returns the absolute report endpoint URL.
func (c *Config) ReportURL() string {
	return joinURL(c.Grading.BaseURL, c.Grading.ReportPath)
}

// RequestTimeout returns the per-request timeout for grading calls; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	if c.Grading.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Grading.RequestTimeoutSeconds) * time.Second
}

// LoginTimeout bounds the interactive Google sign-in flow.
func (c *Config) LoginTimeout() time.Duration {
	if c.Identity.LoginTimeoutSeconds <= 0 {
		return time.Duration(defaultLoginTimeoutSeconds) * time.Second
	}
	return time.Duration(c.Identity.LoginTimeoutSeconds) * time.Second
}

// GoogleSignInConfigured reports whether Google OAuth client credentials are present.
func (c *Config) GoogleSignInConfigured() bool {
	return c.Identity.GoogleClientID != "" && c.Identity.GoogleClientSecret != ""
}

func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
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
