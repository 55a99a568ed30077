package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lookbridge-engine. Configuration can
// come from a YAML file (config.yaml) or environment variables; environment
// variables override YAML values. Secrets (PGPASSWORD) must only come from
// environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Workbook upload handling
	Upload UploadConfig `yaml:"upload"`

	// Generated project output
	Output OutputConfig `yaml:"output"`

	// Optional run-history database (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`
}

// UploadConfig holds workbook upload settings.
type UploadConfig struct {
	// Dir is where uploaded TWB documents are staged before parsing.
	Dir string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	// MaxBytes caps the size of one multipart upload request.
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"16777216"`
}

// OutputConfig holds generated-project output settings.
type OutputConfig struct {
	Dir string `yaml:"dir" env:"OUTPUT_DIR" env-default:"output/migration_result"`
	// MigrationsDir is where SQL migrations live when the database is
	// enabled.
	MigrationsDir string `yaml:"migrations_dir" env:"MIGRATIONS_DIR" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL run-history configuration. The engine
// runs fully without a database; set enabled to persist run summaries.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" env:"DB_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"lookbridge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"lookbridge_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists the configuration comes from
// environment variables and defaults alone.
func Load(version string) (*Config, error) {
	return loadFrom("config.yaml", version)
}

func loadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return cfg, nil
}
