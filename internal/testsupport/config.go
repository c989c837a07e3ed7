package testsupport

import (
	"path/filepath"
	"testing"

	"evalo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sign-in is not required so commands can run without an identity server.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Identity.APIKey = "test-key"
	cfgVal.Identity.RequireSignIn = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGradingURL points the grading client at a test server.
func WithGradingURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Grading.BaseURL = baseURL
	}
}

// WithIdentityURL points both identity endpoints at a test server.
func WithIdentityURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Identity.BaseURL = baseURL
		b.cfg.Identity.TokenURL = baseURL + "/token"
	}
}

// WithSignInRequired toggles identity.require_sign_in.
func WithSignInRequired(required bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Identity.RequireSignIn = required
	}
}

// WithHistory toggles the local grading history.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
