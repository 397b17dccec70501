// Package config loads barcoder settings from a YAML file and BARCODER_*
// environment variables. Environment values override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"barcoder/internal/barcode"
	"barcoder/internal/blob"
	"barcoder/internal/core"
)

// EnvConfig names the variable holding the config file path.
const EnvConfig = "BARCODER_CONFIG"

// RegistryMemory selects the in-process sample registry instead of the HTTP client.
const RegistryMemory = "memory"

// Config is the full service configuration.
type Config struct {
	Listen   string             `yaml:"listen"`
	Log      LogConfig          `yaml:"log"`
	Storage  core.StorageConfig `yaml:"storage"`
	Blob     blob.Config        `yaml:"blob"`
	Paths    barcode.Paths      `yaml:"paths"`
	Registry RegistryConfig     `yaml:"registry"`
	// Metrics is prometheus, expvar or none.
	Metrics string `yaml:"metrics"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

// RegistryConfig locates the sample registry API.
type RegistryConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the settings used for anything the file and environment leave unset.
func Default() Config {
	return Config{
		Listen:  ":8080",
		Log:     LogConfig{Format: "text"},
		Storage: core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: "barcoder.db"},
		Blob:    blob.Config{Driver: blob.DriverFilesystem, Root: "./archive"},
		Paths: barcode.Paths{
			Scripts: "./scripts",
			Tmp:     "./tmp",
			Results: "./results",
		},
		Registry: RegistryConfig{URL: RegistryMemory, Timeout: 30 * time.Second},
		Metrics:  "prometheus",
	}
}

// Load reads path, or the file named by BARCODER_CONFIG when path is empty,
// then applies environment overrides. Without any file only defaults and
// the environment apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "BARCODER_LISTEN")
	set(&c.Log.Format, "BARCODER_LOG_FORMAT")
	set(&c.Metrics, "BARCODER_METRICS")
	if v := os.Getenv("BARCODER_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BARCODER_DEBUG: %w", err)
		}
		c.Log.Debug = debug
	}

	if v := os.Getenv("BARCODER_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = core.StorageDriver(v)
	}
	set(&c.Storage.SQLitePath, "BARCODER_SQLITE_PATH")
	set(&c.Storage.PostgresDSN, "BARCODER_POSTGRES_DSN")

	c.Blob = blob.ConfigFromEnv(c.Blob)

	set(&c.Paths.Scripts, "BARCODER_SCRIPTS")
	set(&c.Paths.Tmp, "BARCODER_TMP")
	set(&c.Paths.Results, "BARCODER_RESULTS")
	set(&c.Paths.PathEnv, "BARCODER_PATH_ENV")
	set(&c.Paths.Interpreter, "BARCODER_INTERPRETER")
	set(&c.Paths.PrintCmd, "BARCODER_PRINT_CMD")
	if v := os.Getenv("BARCODER_COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BARCODER_COMMAND_TIMEOUT: %w", err)
		}
		c.Paths.CommandTimeout = d
	}

	set(&c.Registry.URL, "BARCODER_REGISTRY_URL")
	set(&c.Registry.APIKey, "BARCODER_REGISTRY_API_KEY")
	if v := os.Getenv("BARCODER_REGISTRY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BARCODER_REGISTRY_TIMEOUT: %w", err)
		}
		c.Registry.Timeout = d
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs *multierror.Error
	switch c.Storage.Driver {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = multierror.Append(errs, errors.New("storage: postgres driver needs postgres_dsn"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = multierror.Append(errs, errors.New("blob: s3 driver needs a bucket"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("blob: unknown driver %q", c.Blob.Driver))
	}
	switch strings.ToLower(c.Metrics) {
	case "", "none", "prometheus", "expvar":
	default:
		errs = multierror.Append(errs, fmt.Errorf("metrics: unknown recorder %q", c.Metrics))
	}
	if c.Registry.URL == "" {
		errs = multierror.Append(errs, errors.New("registry: url is required"))
	}
	return errs.ErrorOrNil()
}

// UsesMemoryRegistry reports whether the in-process registry is configured.
func (c Config) UsesMemoryRegistry() bool {
	return strings.EqualFold(c.Registry.URL, RegistryMemory)
}
