package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGrading(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGrading() error {
	if err := validateHTTPURL("grading.base_url", c.Grading.BaseURL); err != nil {
		return err
	}
	if c.Grading.RequestTimeoutSeconds < 0 {
		return errors.New("grading.request_timeout_seconds must be zero or positive")
	}
	if strings.ContainsAny(c.Grading.ReportFilename, `/\`) {
		return errors.New("grading.report_filename must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if err := validateHTTPURL("identity.base_url", c.Identity.BaseURL); err != nil {
		return err
	}
	if err := validateHTTPURL("identity.token_url", c.Identity.TokenURL); err != nil {
		return err
	}
	if err := validateHTTPURL("identity.google_issuer", c.Identity.GoogleIssuer); err != nil {
		return err
	}
	if (c.Identity.GoogleClientID == "") != (c.Identity.GoogleClientSecret == "") {
		return errors.New("identity.google_client_id and identity.google_client_secret must be set together")
	}
	if c.Identity.LoginTimeoutSeconds < 0 {
		return errors.New("identity.login_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	return validateHTTPURL("notifications.ntfy_topic", c.Notifications.NtfyTopic)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", field, value)
	}
	return nil
}
