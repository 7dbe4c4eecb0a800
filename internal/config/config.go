// Package config loads server settings from an optional YAML file and
// VIBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/storage"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// FileName is looked up in the data dir when no explicit path is given.
const FileName = "config.yaml"

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   bool   `yaml:"file"`
}

type Config struct {
	DataDir     string    `yaml:"data_dir"`
	DBDriver    string    `yaml:"db_driver"`
	Transport   string    `yaml:"transport"`
	HTTPAddr    string    `yaml:"http_addr"`
	Catalog     string    `yaml:"catalog"`
	DefaultUser string    `yaml:"default_user"`
	JWTSecret   string    `yaml:"jwt_secret"`
	TokenExpiry string    `yaml:"token_expiry"`
	Log         LogConfig `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:     "./data",
		DBDriver:    storage.DriverNcruces,
		Transport:   TransportStdio,
		HTTPAddr:    ":8081",
		DefaultUser: "local",
		TokenExpiry: "24h",
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and then applies the environment. An
// empty path falls back to <data dir>/config.yaml when that file exists.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if dir := getenv("VIBE_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, FileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errinfo.ConfigurationInvalid(fmt.Sprintf("parse %s: %v", path, err))
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, errinfo.ConfigurationInvalid(fmt.Sprintf("read %s: %v", path, err))
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"VIBE_DATA_DIR":     &c.DataDir,
		"VIBE_DB_DRIVER":    &c.DBDriver,
		"VIBE_TRANSPORT":    &c.Transport,
		"VIBE_HTTP_ADDR":    &c.HTTPAddr,
		"VIBE_CATALOG":      &c.Catalog,
		"VIBE_DEFAULT_USER": &c.DefaultUser,
		"VIBE_JWT_SECRET":   &c.JWTSecret,
		"VIBE_TOKEN_EXPIRY": &c.TokenExpiry,
		"VIBE_LOG_LEVEL":    &c.Log.Level,
		"VIBE_LOG_FORMAT":   &c.Log.Format,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(getenv("VIBE_LOG_FILE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("VIBE_LOG_FILE: %q is not a boolean", v))
		}
		c.Log.File = b
	}
	return nil
}

// Expiry parses TokenExpiry.
func (c Config) Expiry() (time.Duration, error) {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 0, errinfo.ConfigurationInvalid(fmt.Sprintf("token_expiry: %v", err))
	}
	if d <= 0 {
		return 0, errinfo.ConfigurationInvalid(fmt.Sprintf("token_expiry must be positive, got %s", d))
	}
	return d, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errinfo.ConfigurationInvalid("data_dir is empty")
	}
	if !storage.ValidDriver(c.DBDriver) {
		return errinfo.ConfigurationInvalid(fmt.Sprintf("unknown db_driver %q (use %s or %s)",
			c.DBDriver, storage.DriverNcruces, storage.DriverModernc))
	}
	switch c.Transport {
	case TransportStdio:
		if c.DefaultUser == "" {
			return errinfo.ConfigurationInvalid("stdio transport needs default_user")
		}
	case TransportHTTP:
		if c.JWTSecret == "" {
			return errinfo.ConfigurationInvalid("http transport needs jwt_secret")
		}
		if c.HTTPAddr == "" {
			return errinfo.ConfigurationInvalid("http_addr is empty")
		}
	default:
		return errinfo.ConfigurationInvalid(fmt.Sprintf("unknown transport %q (use stdio or http)", c.Transport))
	}
	if _, err := c.Expiry(); err != nil {
		return err
	}
	return nil
}
