// Package config loads bedcap configuration from an optional YAML
// file, with environment overrides on top. A missing file is not an
// error: the defaults describe a self-contained run against the
// embedded database.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all bedcap configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Inputs   InputsConfig   `yaml:"inputs"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the store backend: an external server named
// by a DSN or by the discrete host fields, or the embedded server when
// neither is set.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns int32          `yaml:"max_conns"`
	Embedded EmbeddedConfig `yaml:"embedded"`
}

// ConnString resolves the external connection string. An explicit DSN
// wins; otherwise one is composed from the discrete fields when a host
// is set. Empty means no external server is configured.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Host == "" {
		return ""
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, port, d.User, d.Password, d.DBName, sslMode)
}

// EmbeddedConfig configures the embedded Postgres server. DataDir is
// where the cluster lives between runs; deleting it resets the store.
type EmbeddedConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DataDir    string `yaml:"data_dir"`
	RuntimeDir string `yaml:"runtime_dir"`
	Port       uint32 `yaml:"port"`
}

// InputsConfig names the three source files. CSV and XLSX are both
// accepted; the loader dispatches on the extension.
type InputsConfig struct {
	BedType  string `yaml:"bed_type"`
	BedFact  string `yaml:"bed_fact"`
	Business string `yaml:"business"`
}

// ExportConfig configures figure output.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns: 4,
			Embedded: EmbeddedConfig{
				Enabled:    true,
				DataDir:    ".bedcap/pgdata",
				RuntimeDir: ".bedcap/pgruntime",
				Port:       15432,
			},
		},
		Inputs: InputsConfig{
			BedType:  "data/bed_type.csv",
			BedFact:  "data/bed_fact.csv",
			Business: "data/business.csv",
		},
		Export: ExportConfig{
			Dir: "reports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file, starting from defaults
// and finishing with environment overrides. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects configurations no run could use.
func (c *Config) Validate() error {
	if c.Database.ConnString() == "" && !c.Database.Embedded.Enabled {
		return fmt.Errorf("no database configured: set database.dsn, database.host, or enable the embedded server")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be positive, got %d", c.Database.MaxConns)
	}
	if c.Inputs.BedType == "" || c.Inputs.BedFact == "" || c.Inputs.Business == "" {
		return fmt.Errorf("all three input paths must be set")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("BEDCAP_DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if dir := os.Getenv("BEDCAP_DATA_DIR"); dir != "" {
		c.Database.Embedded.DataDir = dir
	}
	if port := os.Getenv("BEDCAP_PG_PORT"); port != "" {
		if p, err := strconv.ParseUint(port, 10, 32); err == nil {
			c.Database.Embedded.Port = uint32(p)
		}
	}
	if dir := os.Getenv("BEDCAP_EXPORT_DIR"); dir != "" {
		c.Export.Dir = dir
	}
	if level := os.Getenv("BEDCAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	// A configured external server always wins over the embedded one.
	if c.Database.ConnString() != "" {
		c.Database.Embedded.Enabled = false
	}
}
