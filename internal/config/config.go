// Package config loads the process-wide runtime configuration: logging,
// default transport timeouts, and the simulation-forcing toggle. It layers
// viper over a Load/Default shape so a single environment
// variable can override the YAML-declared defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ForceSimulateEnvVar is the one environment variable that, when set to a
// truthy value, forces global simulation regardless of per-bench
// `simulate: false`.
const ForceSimulateEnvVar = "PYTESTLAB_SIMULATE"

type RuntimeConfig struct {
	Log           LogConfig         `yaml:"log"`
	Transport     TransportDefaults `yaml:"transport"`
	Audit         AuditConfig       `yaml:"audit"`
	ForceSimulate bool              `yaml:"-"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TransportDefaults struct {
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	StrictReplay   bool          `yaml:"strict_replay"`
	StrictSimQuery bool          `yaml:"strict_sim_query"`
}

type AuditConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration used when no config file or
// environment override is present.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Transport: TransportDefaults{
			QueryTimeout:   5 * time.Second,
			ConnectTimeout: 10 * time.Second,
			StrictReplay:   false,
			StrictSimQuery: false,
		},
		Audit: AuditConfig{
			Path: "pytestlab_audit.db",
		},
	}
}

// Load reads the optional runtime YAML file at path (if it exists),
// layers environment variables over it via viper, and returns a fully
// resolved RuntimeConfig. A missing file is not an error: defaults apply.
func Load(path string) (*RuntimeConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse runtime config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read runtime config %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("PYTESTLAB")
	v.AutomaticEnv()
	cfg.ForceSimulate = v.GetBool("SIMULATE")
	if !cfg.ForceSimulate {
		if raw := os.Getenv(ForceSimulateEnvVar); raw != "" {
			cfg.ForceSimulate = raw == "1" || raw == "true" || raw == "TRUE"
		}
	}

	return cfg, nil
}

// NewLogger builds a *logrus.Logger from LogConfig.
func NewLogger(cfg LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("failed to open log file %s, falling back to stdout: %v", cfg.FilePath, err)
		}
	}

	return log
}
