package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"evalo/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("EVALO_IDENTITY_API_KEY", "env-key")
	t.Setenv("EVALO_GRADING_URL", "http://grader.local:8080/")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "evalo")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.SessionPath() != filepath.Join(wantState, "session.json") {
		t.Fatalf("unexpected session path: %q", cfg.SessionPath())
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Identity.APIKey != "env-key" {
		t.Fatalf("expected identity key from env, got %q", cfg.Identity.APIKey)
	}
	if cfg.ProcessURL() != "http://grader.local:8080/process-pdfs" {
		t.Fatalf("unexpected process url: %q", cfg.ProcessURL())
	}
	if cfg.ReportURL() != "http://grader.local:8080/generate-report" {
		t.Fatalf("unexpected report url: %q", cfg.ReportURL())
	}
	if cfg.Grading.ReportFilename != "exam-results-report.pdf" {
		t.Fatalf("unexpected report filename: %q", cfg.Grading.ReportFilename)
	}
	if cfg.RequestTimeout() != 0 {
		t.Fatalf("expected no request timeout by default, got %s", cfg.RequestTimeout())
	}
	if cfg.LoginTimeout() != 180*time.Second {
		t.Fatalf("unexpected login timeout: %s", cfg.LoginTimeout())
	}
	if !cfg.Identity.RequireSignIn {
		t.Fatal("expected sign-in required by default")
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if cfg.GoogleSignInConfigured() {
		t.Fatal("expected Google sign-in unconfigured without client credentials")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("EVALO_IDENTITY_API_KEY", "env-key")

	cfg := config.Default()
	cfg.Paths.StateDir = "~/state"
	cfg.Paths.ReportDir = "~/reports"
	cfg.Grading.BaseURL = "https://grading.example.com"
	cfg.Grading.RequestTimeoutSeconds = 45
	cfg.Identity.APIKey = "file-key"
	cfg.Identity.GoogleClientID = "client-id"
	cfg.Identity.GoogleClientSecret = "client-secret"
	cfg.Identity.RequireSignIn = false
	cfg.Logging.Format = "JSON"
	cfg.Logging.Level = "DEBUG"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "evalo.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if loaded.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", loaded.Paths.StateDir)
	}
	if loaded.Paths.ReportDir != filepath.Join(tempHome, "reports") {
		t.Fatalf("unexpected report dir: %q", loaded.Paths.ReportDir)
	}
	if loaded.Identity.APIKey != "file-key" {
		t.Fatalf("expected file key to win over env, got %q", loaded.Identity.APIKey)
	}
	if !loaded.GoogleSignInConfigured() {
		t.Fatal("expected Google sign-in configured")
	}
	if loaded.RequestTimeout() != 45*time.Second {
		t.Fatalf("unexpected request timeout: %s", loaded.RequestTimeout())
	}
	if loaded.Identity.RequireSignIn {
		t.Fatal("expected require_sign_in override")
	}
	if loaded.Logging.Format != "json" || loaded.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging values, got %+v", loaded.Logging)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "grading url scheme",
			content: "[grading]\nbase_url = \"ftp://grader\"\n",
			want:    "grading.base_url",
		},
		{
			name:    "report filename path",
			content: "[grading]\nreport_filename = \"../out.pdf\"\n",
			want:    "grading.report_filename",
		},
		{
			name:    "google credentials pair",
			content: "[identity]\ngoogle_client_id = \"only-id\"\n",
			want:    "google_client_secret",
		},
		{
			name:    "log format",
			content: "[logging]\nformat = \"xml\"\n",
			want:    "logging.format",
		},
		{
			name:    "ntfy topic url",
			content: "[notifications]\nntfy_topic = \"not a url\"\n",
			want:    "notifications.ntfy_topic",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Grading.BaseURL != config.Default().Grading.BaseURL {
		t.Fatalf("unexpected base url: %q", cfg.Grading.BaseURL)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Grading.ProcessPath != "/process-pdfs" {
		t.Fatalf("unexpected process path: %q", cfg.Grading.ProcessPath)
	}
}

func TestEnsureDirectoriesCreatesStateAndLogDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
