// Package config defines the roster daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level roster configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr       string `json:"addr" yaml:"addr"`               // listen address, e.g., ":9090"
	CORSOrigin string `json:"cors_origin" yaml:"cors_origin"` // empty disables CORS headers
}

// AuthConfig controls token issuance and the users allowed to log in.
type AuthConfig struct {
	JWTSecret string        `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl" yaml:"token_ttl"`
	Users     []UserConfig  `json:"users" yaml:"users"`
}

// UserConfig is one login. PasswordHash is a bcrypt hash; generate one with
// `rosterd hash-password`.
type UserConfig struct {
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"password_hash" yaml:"password_hash"`
	UserID       int64  `json:"user_id" yaml:"user_id"`
	IsAdmin      bool   `json:"is_admin" yaml:"is_admin"`
	DepartmentID int64  `json:"department_id,omitempty" yaml:"department_id"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
	File  string `json:"file,omitempty" yaml:"file"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path: "./data/roster.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults, applies environment
// overrides (including those from a .env file in the working directory) and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ROSTER_* environment variables.
func (c *Config) ApplyEnv() {
	for env, field := range map[string]*string{
		"ROSTER_ADDR":       &c.Server.Addr,
		"ROSTER_DB_PATH":    &c.Database.Path,
		"ROSTER_JWT_SECRET": &c.Auth.JWTSecret,
		"ROSTER_LOG_LEVEL":  &c.Log.Level,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	seen := make(map[string]bool)
	for i, u := range c.Auth.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d]: username is required", i))
			continue
		}
		if seen[u.Username] {
			errs = append(errs, fmt.Errorf("auth.users[%d]: duplicate username %q", i, u.Username))
		}
		seen[u.Username] = true
		if u.UserID <= 0 {
			errs = append(errs, fmt.Errorf("auth.users[%d]: user_id must be positive", i))
		}
	}
	return errors.Join(errs...)
}
