// Package config provides YAML-based configuration loading for Timedock.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Monitor capture modes.
const (
	MonitorAll        = "all"
	MonitorActiveOnly = "active-only"
)

// Config is the top-level Timedock configuration, loaded from timedock.yaml.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Account   AccountConfig   `yaml:"account"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Sync      SyncConfig      `yaml:"sync"`
	Storage   StorageConfig   `yaml:"storage"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// APIConfig holds connection settings for the remote time-tracking service.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// AccountConfig identifies the owning user within the remote service.
type AccountConfig struct {
	UserID         string `yaml:"user_id"`
	EmployeeID     string `yaml:"employee_id"`
	OrganizationID string `yaml:"organization_id"`
	TenantID       string `yaml:"tenant_id"`
}

// TrackingConfig controls the capture side of the pipeline.
type TrackingConfig struct {
	CollectionIntervalSeconds int    `yaml:"collection_interval_seconds"`
	ScreenshotIntervalMinutes int    `yaml:"screenshot_interval_minutes"`
	TrackInput                bool   `yaml:"track_keyboard_mouse"`
	MonitorMode               string `yaml:"monitor_mode"`
	ResumeSettleSeconds       int    `yaml:"resume_settle_seconds"`
}

// SyncConfig controls the delivery side of the pipeline.
type SyncConfig struct {
	PollIntervalMs           int `yaml:"poll_interval_ms"`
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds"`
}

// StorageConfig locates the local durable store and the screenshot spool.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// DashboardConfig configures the local operator HTTP endpoint.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CollectionInterval returns the flush interval as a duration.
func (c *Config) CollectionInterval() time.Duration {
	return time.Duration(c.Tracking.CollectionIntervalSeconds) * time.Second
}

// ScreenshotInterval returns the screenshot interval as a duration.
func (c *Config) ScreenshotInterval() time.Duration {
	return time.Duration(c.Tracking.ScreenshotIntervalMinutes) * time.Minute
}

// PollInterval returns the sync poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalMs) * time.Millisecond
}

// ResumeSettle returns the delay between a resume/unlock signal and the
// tracking restart.
func (c *Config) ResumeSettle() time.Duration {
	return time.Duration(c.Tracking.ResumeSettleSeconds) * time.Second
}

// ReconcileInterval returns the reconciliation sweep period as a duration.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Sync.ReconcileIntervalSeconds) * time.Second
}

// FlushesPerScreenshot returns how many flush ticks elapse between
// screenshot captures.
func (c *Config) FlushesPerScreenshot() int {
	return int(c.ScreenshotInterval() / c.CollectionInterval())
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Tracking.CollectionIntervalSeconds == 0 {
		c.Tracking.CollectionIntervalSeconds = 60
	}
	if c.Tracking.ScreenshotIntervalMinutes == 0 {
		c.Tracking.ScreenshotIntervalMinutes = 5
	}
	if c.Tracking.MonitorMode == "" {
		c.Tracking.MonitorMode = MonitorAll
	}
	if c.Tracking.ResumeSettleSeconds == 0 {
		c.Tracking.ResumeSettleSeconds = 5
	}
	if c.Sync.PollIntervalMs == 0 {
		c.Sync.PollIntervalMs = 5000
	}
	if c.Sync.ReconcileIntervalSeconds == 0 {
		c.Sync.ReconcileIntervalSeconds = 1800
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "timedock.db"
	}
	if c.Storage.ScreenshotDir == "" {
		c.Storage.ScreenshotDir = "screenshots"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8417
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.Account.EmployeeID == "" {
		errs = append(errs, "account.employee_id is required")
	}
	if c.Account.OrganizationID == "" {
		errs = append(errs, "account.organization_id is required")
	}
	if c.Account.TenantID == "" {
		errs = append(errs, "account.tenant_id is required")
	}
	switch c.Tracking.ScreenshotIntervalMinutes {
	case 1, 5, 10:
	default:
		errs = append(errs, "tracking.screenshot_interval_minutes must be 1, 5 or 10")
	}
	if c.Tracking.MonitorMode != MonitorAll && c.Tracking.MonitorMode != MonitorActiveOnly {
		errs = append(errs, fmt.Sprintf("tracking.monitor_mode must be %q or %q", MonitorAll, MonitorActiveOnly))
	}
	if c.Tracking.CollectionIntervalSeconds < 0 {
		errs = append(errs, "tracking.collection_interval_seconds must be positive")
	}
	if shot, coll := int(c.ScreenshotInterval().Seconds()), c.Tracking.CollectionIntervalSeconds; coll > 0 && shot%coll != 0 {
		errs = append(errs, "tracking.screenshot_interval_minutes must be a multiple of the collection interval")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ApplyEnv overlays credential values from the environment, so tokens can
// stay out of the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TIMEDOCK_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("TIMEDOCK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
}
