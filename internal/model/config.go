package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDataSourceKind is the data source used when nothing has been
// persisted yet. It can be replaced at build time with
// -ldflags "-X github.com/nhle/agency-dashboard/internal/model.DefaultDataSourceKind=hosted".
var DefaultDataSourceKind = "mock"

// DataSourceConfig controls adapter selection and cache behaviour.
type DataSourceConfig struct {
	// Kind is the default adapter kind ("mock", "sheet", "hosted", "hybrid").
	Kind string `mapstructure:"kind" yaml:"kind"`

	// LocalDBPath is the SQLite file backing the local entity stores.
	LocalDBPath string `mapstructure:"local_db_path" yaml:"local_db_path"`

	// CacheTTLSec is how long hybrid cache reads are considered fresh.
	CacheTTLSec int `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`

	// ProbeTimeoutSec bounds the connectivity probe run before a switch.
	ProbeTimeoutSec int `mapstructure:"probe_timeout_sec" yaml:"probe_timeout_sec"`

	// LoadTimeoutSec is the watchdog timeout for dashboard loads.
	LoadTimeoutSec int `mapstructure:"load_timeout_sec" yaml:"load_timeout_sec"`
}

// CacheTTL returns CacheTTLSec as a duration.
func (c DataSourceConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// ProbeTimeout returns ProbeTimeoutSec as a duration.
func (c DataSourceConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

// LoadTimeout returns LoadTimeoutSec as a duration.
func (c DataSourceConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutSec) * time.Second
}

// SheetConfig locates the spreadsheet used by the legacy adapter. Either URL
// (an export link returning XLSX/XLS) or Path must be set.
type SheetConfig struct {
	URL   string `mapstructure:"url" yaml:"url" json:"url,omitempty"`
	Path  string `mapstructure:"path" yaml:"path" json:"path,omitempty"`
	Sheet string `mapstructure:"sheet" yaml:"sheet" json:"sheet,omitempty"`
	Token string `mapstructure:"token" yaml:"-" json:"-"`
}

// HostedConfig holds the managed Postgres connection settings.
type HostedConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
	MaxConns    int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// ServerConfig holds settings for the HTTP handlers.
type ServerConfig struct {
	Port                    string   `mapstructure:"port" yaml:"port"`
	IngestAPIKey            string   `mapstructure:"ingest_api_key" yaml:"-"`
	JWTSecret               string   `mapstructure:"jwt_secret" yaml:"-"`
	GoogleAdsDeveloperToken string   `mapstructure:"google_ads_developer_token" yaml:"-"`
	GoogleAdsBaseURL        string   `mapstructure:"google_ads_base_url" yaml:"google_ads_base_url"`
	AllowedOrigins          []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// SyncConfig holds the hybrid cache refresh schedule.
type SyncConfig struct {
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DataSource DataSourceConfig `mapstructure:"datasource" yaml:"datasource"`
	Sheet      SheetConfig      `mapstructure:"sheet" yaml:"sheet"`
	Hosted     HostedConfig     `mapstructure:"hosted" yaml:"hosted"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Sync       SyncConfig       `mapstructure:"sync" yaml:"sync"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/agency-dashboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "agency-dashboard", "config.yaml")
}

// defaultLocalDBPath places the local store next to the config file.
func defaultLocalDBPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "dashboard.db")
}

// setDefaults registers every key so that environment variables can
// override values that never appear in the YAML file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("datasource.kind", DefaultDataSourceKind)
	v.SetDefault("datasource.local_db_path", defaultLocalDBPath())
	v.SetDefault("datasource.cache_ttl_sec", 300)
	v.SetDefault("datasource.probe_timeout_sec", 10)
	v.SetDefault("datasource.load_timeout_sec", 10)
	v.SetDefault("sheet.url", "")
	v.SetDefault("sheet.path", "")
	v.SetDefault("sheet.sheet", "")
	v.SetDefault("sheet.token", "")
	v.SetDefault("hosted.database_url", "")
	v.SetDefault("hosted.max_conns", 10)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.ingest_api_key", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.google_ads_developer_token", "")
	v.SetDefault("server.google_ads_base_url", "https://googleads.googleapis.com/v17")
	v.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})
	v.SetDefault("sync.schedule", "@every 2m")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables override file values, with dots in keys replaced by
// underscores (HOSTED_DATABASE_URL, SERVER_JWT_SECRET, DATASOURCE_KIND).
// A missing file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.DataSource.CacheTTLSec <= 0 {
		cfg.DataSource.CacheTTLSec = 300
	}
	if cfg.DataSource.ProbeTimeoutSec <= 0 {
		cfg.DataSource.ProbeTimeoutSec = 10
	}
	if cfg.DataSource.LoadTimeoutSec <= 0 {
		cfg.DataSource.LoadTimeoutSec = 10
	}

	return cfg, nil
}

// SaveConfig writes the non-secret parts of cfg to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("datasource", map[string]any{
		"kind":              cfg.DataSource.Kind,
		"local_db_path":     cfg.DataSource.LocalDBPath,
		"cache_ttl_sec":     cfg.DataSource.CacheTTLSec,
		"probe_timeout_sec": cfg.DataSource.ProbeTimeoutSec,
		"load_timeout_sec":  cfg.DataSource.LoadTimeoutSec,
	})
	v.Set("sheet", map[string]any{
		"url":   cfg.Sheet.URL,
		"path":  cfg.Sheet.Path,
		"sheet": cfg.Sheet.Sheet,
	})
	v.Set("hosted.max_conns", cfg.Hosted.MaxConns)
	v.Set("server", map[string]any{
		"port":                cfg.Server.Port,
		"google_ads_base_url": cfg.Server.GoogleAdsBaseURL,
		"allowed_origins":     cfg.Server.AllowedOrigins,
	})
	v.Set("sync.schedule", cfg.Sync.Schedule)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
