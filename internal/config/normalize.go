package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGrading()
	c.normalizeIdentity()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = defaultReportDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGrading() {
	if value, ok := os.LookupEnv("EVALO_GRADING_URL"); ok && strings.TrimSpace(value) != "" {
		c.Grading.BaseURL = value
	}
	c.Grading.BaseURL = strings.TrimRight(strings.TrimSpace(c.Grading.BaseURL), "/")
	if c.Grading.BaseURL == "" {
		c.Grading.BaseURL = defaultGradingBaseURL
	}
	c.Grading.ProcessPath = strings.TrimSpace(c.Grading.ProcessPath)
	if c.Grading.ProcessPath == "" {
		c.Grading.ProcessPath = defaultProcessPath
	}
	c.Grading.ReportPath = strings.TrimSpace(c.Grading.ReportPath)
	if c.Grading.ReportPath == "" {
		c.Grading.ReportPath = defaultReportPath
	}
	c.Grading.ReportFilename = strings.TrimSpace(c.Grading.ReportFilename)
	if c.Grading.ReportFilename == "" {
		c.Grading.ReportFilename = defaultReportFilename
	}
}

func (c *Config) normalizeIdentity() {
	if c.Identity.APIKey == "" {
		if value, ok := os.LookupEnv("EVALO_IDENTITY_API_KEY"); ok {
			c.Identity.APIKey = value
		}
	}
	if c.Identity.GoogleClientID == "" {
		if value, ok := os.LookupEnv("EVALO_GOOGLE_CLIENT_ID"); ok {
			c.Identity.GoogleClientID = value
		}
	}
	if c.Identity.GoogleClientSecret == "" {
		if value, ok := os.LookupEnv("EVALO_GOOGLE_CLIENT_SECRET"); ok {
			c.Identity.GoogleClientSecret = value
		}
	}
	c.Identity.APIKey = strings.TrimSpace(c.Identity.APIKey)
	c.Identity.GoogleClientID = strings.TrimSpace(c.Identity.GoogleClientID)
	c.Identity.GoogleClientSecret = strings.TrimSpace(c.Identity.GoogleClientSecret)
	c.Identity.BaseURL = strings.TrimRight(strings.TrimSpace(c.Identity.BaseURL), "/")
	if c.Identity.BaseURL == "" {
		c.Identity.BaseURL = defaultIdentityBaseURL
	}
	c.Identity.TokenURL = strings.TrimSpace(c.Identity.TokenURL)
	if c.Identity.TokenURL == "" {
		c.Identity.TokenURL = defaultIdentityTokenURL
	}
	c.Identity.GoogleIssuer = strings.TrimRight(strings.TrimSpace(c.Identity.GoogleIssuer), "/")
	if c.Identity.GoogleIssuer == "" {
		c.Identity.GoogleIssuer = defaultGoogleIssuer
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
