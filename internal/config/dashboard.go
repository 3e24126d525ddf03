// Package config loads the dashboard's JSON configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rutting.report/internal/grid"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/dashboard.defaults.json"

// DashboardConfig is the root configuration. Every field is optional;
// the Get* methods supply a default for anything left unset.
type DashboardConfig struct {
	// Server
	Listen      *string `json:"listen,omitempty"`
	AdminListen *string `json:"admin_listen,omitempty"` // empty disables /debug/
	DBPath      *string `json:"db_path,omitempty"`

	// Data
	SamplesTable    *string `json:"samples_table,omitempty"`
	GridCacheSize   *int    `json:"grid_cache_size,omitempty"`
	FilterCacheSize *int    `json:"filter_cache_size,omitempty"`

	// Sessions and login
	SessionTTL           *string `json:"session_ttl,omitempty"`            // duration string like "12h"
	SessionSweepInterval *string `json:"session_sweep_interval,omitempty"` // duration string like "5m"
	SecureCookies        *bool   `json:"secure_cookies,omitempty"`
	LoginRateLimit       *int    `json:"login_rate_limit,omitempty"` // attempts per IP per minute

	// Initial filter for new sessions
	ClampEnabled *bool    `json:"clamp_enabled,omitempty"`
	ClampLower   *float64 `json:"clamp_lower,omitempty"`
	ClampUpper   *float64 `json:"clamp_upper,omitempty"`
	FilterKind   *string  `json:"filter_kind,omitempty"`
	WindowSize   *int     `json:"window_size,omitempty"`

	// Charts and export
	SurfaceMaxPoints  *int    `json:"surface_max_points,omitempty"`
	ChartTheme        *string `json:"chart_theme,omitempty"`
	EchartsAssetsHost *string `json:"echarts_assets_host,omitempty"`
	ExportDir         *string `json:"export_dir,omitempty"`
}

// EmptyDashboardConfig returns a config with every field unset.
func EmptyDashboardConfig() *DashboardConfig {
	return &DashboardConfig{}
}

// LoadDashboardConfig loads a DashboardConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadDashboardConfig(path string) (*DashboardConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDashboardConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upward from the
// current directory. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *DashboardConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadDashboardConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DashboardConfig) Validate() error {
	for name, d := range map[string]*string{
		"session_ttl":            c.SessionTTL,
		"session_sweep_interval": c.SessionSweepInterval,
	} {
		if d == nil || *d == "" {
			continue
		}
		v, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *d)
		}
	}

	for name, n := range map[string]*int{
		"login_rate_limit":   c.LoginRateLimit,
		"grid_cache_size":    c.GridCacheSize,
		"filter_cache_size":  c.FilterCacheSize,
		"surface_max_points": c.SurfaceMaxPoints,
	} {
		if n != nil && *n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *n)
		}
	}

	if c.FilterKind != nil {
		if _, err := grid.ParseFilterKind(*c.FilterKind); err != nil {
			return err
		}
	}
	if c.WindowSize != nil {
		if err := grid.ValidateWindow(*c.WindowSize); err != nil {
			return err
		}
	}
	if err := grid.ValidateBounds(c.GetClampLower(), c.GetClampUpper()); err != nil {
		return err
	}
	return nil
}

// GetListen returns the dashboard listen address.
func (c *DashboardConfig) GetListen() string {
	return stringOr(c.Listen, ":8080")
}

// GetAdminListen returns the admin listen address; empty means disabled.
func (c *DashboardConfig) GetAdminListen() string {
	return stringOr(c.AdminListen, "")
}

// GetDBPath returns the SQLite database path.
func (c *DashboardConfig) GetDBPath() string {
	return stringOr(c.DBPath, "rutting.db")
}

// GetSamplesTable returns the table the dashboard reads samples from.
func (c *DashboardConfig) GetSamplesTable() string {
	return stringOr(c.SamplesTable, "rutting_samples")
}

// GetGridCacheSize returns how many loaded grids to keep.
func (c *DashboardConfig) GetGridCacheSize() int {
	return intOr(c.GridCacheSize, 4)
}

// GetFilterCacheSize returns how many filtered grids to keep.
func (c *DashboardConfig) GetFilterCacheSize() int {
	return intOr(c.FilterCacheSize, 32)
}

// GetSessionTTL returns how long a login stays valid.
func (c *DashboardConfig) GetSessionTTL() time.Duration {
	return durationOr(c.SessionTTL, 12*time.Hour)
}

// GetSessionSweepInterval returns how often expired sessions are dropped.
func (c *DashboardConfig) GetSessionSweepInterval() time.Duration {
	return durationOr(c.SessionSweepInterval, 5*time.Minute)
}

// GetSecureCookies reports whether session cookies carry the Secure flag.
func (c *DashboardConfig) GetSecureCookies() bool {
	if c.SecureCookies == nil {
		return false
	}
	return *c.SecureCookies
}

// GetLoginRateLimit returns the allowed login attempts per IP per minute.
func (c *DashboardConfig) GetLoginRateLimit() int {
	return intOr(c.LoginRateLimit, 10)
}

// GetClampLower returns the initial lower clamp bound.
func (c *DashboardConfig) GetClampLower() float64 {
	if c.ClampLower == nil {
		return -50
	}
	return *c.ClampLower
}

// GetClampUpper returns the initial upper clamp bound.
func (c *DashboardConfig) GetClampUpper() float64 {
	if c.ClampUpper == nil {
		return 50
	}
	return *c.ClampUpper
}

// DefaultParams returns the filter a new session starts with.
func (c *DashboardConfig) DefaultParams() grid.Params {
	kind := grid.FilterMedian
	if c.FilterKind != nil {
		if k, err := grid.ParseFilterKind(*c.FilterKind); err == nil {
			kind = k
		}
	}
	p := grid.Params{
		Lower:  c.GetClampLower(),
		Upper:  c.GetClampUpper(),
		Kind:   kind,
		Window: intOr(c.WindowSize, 3),
	}
	if c.ClampEnabled != nil {
		p.ClampEnabled = *c.ClampEnabled
	}
	return p
}

// GetSurfaceMaxPoints caps the cells sent to the 3D surface chart.
func (c *DashboardConfig) GetSurfaceMaxPoints() int {
	return intOr(c.SurfaceMaxPoints, 40000)
}

// GetChartTheme returns the go-echarts theme name.
func (c *DashboardConfig) GetChartTheme() string {
	return stringOr(c.ChartTheme, "dark")
}

// GetEchartsAssetsHost returns the base URL the chart pages load
// echarts.min.js and friends from.
func (c *DashboardConfig) GetEchartsAssetsHost() string {
	return stringOr(c.EchartsAssetsHost, "https://go-echarts.github.io/go-echarts-assets/assets/")
}

// GetExportDir returns where the export command writes files.
func (c *DashboardConfig) GetExportDir() string {
	return stringOr(c.ExportDir, ".")
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}
