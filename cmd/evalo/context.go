package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"evalo/internal/config"
	"evalo/internal/history"
	"evalo/internal/identity"
	"evalo/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	identityOnce sync.Once
	identity     *identity.Manager
	identityErr  error
	identityOpts []identity.ManagerOption

	// signedIn follows the manager's auth-state subscription.
	authMu   sync.Mutex
	signedIn *identity.Principal
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// loggerFor builds the process logger on first use. Log lines go to the
// command's stderr so stdout stays clean for results and JSON.
func (c *commandContext) loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		var out io.Writer = cmd.ErrOrStderr()
		opts := logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: out,
		}
		if cfg.Logging.ToFile {
			opts.FilePath = cfg.LogFilePath()
		}
		c.logger, c.loggerErr = logging.New(opts)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) identityManager(cmd *cobra.Command) (*identity.Manager, error) {
	c.identityOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.identityErr = err
			return
		}
		logger, err := c.loggerFor(cmd)
		if err != nil {
			c.identityErr = err
			return
		}
		c.identity, c.identityErr = identity.NewManager(cfg, logger, c.identityOpts...)
		if c.identityErr == nil {
			c.identity.OnAuthStateChanged(c.setSignedIn)
		}
	})
	return c.identity, c.identityErr
}

func (c *commandContext) setSignedIn(p *identity.Principal) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if p == nil {
		c.signedIn = nil
		return
	}
	copied := *p
	c.signedIn = &copied
}

// currentPrincipal returns the last principal reported by the auth-state
// subscription, or nil when signed out.
func (c *commandContext) currentPrincipal() *identity.Principal {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.signedIn == nil {
		return nil
	}
	copied := *c.signedIn
	return &copied
}

// principal returns the signed-in user. When sign-in is required and nobody
// is signed in it fails; otherwise a nil principal means anonymous use.
func (c *commandContext) principal(cmd *cobra.Command) (*identity.Principal, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := c.identityManager(cmd)
	if err != nil {
		if cfg.Identity.RequireSignIn {
			return nil, err
		}
		return nil, nil
	}
	if cfg.Identity.RequireSignIn {
		current, err := mgr.Require()
		if err != nil {
			return nil, err
		}
		return &current, nil
	}
	return c.currentPrincipal(), nil
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("grading history is disabled (set [history] enabled = true)")
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
