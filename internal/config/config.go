// Package config loads and stores sqlaunch settings in the XDG config dir.
// Only non-secret settings are kept here; database passwords go to the OS
// keychain or the environment.
//
// Every runtime option is an explicit, named field: nothing about the
// execution context or the statement bridge is hardcoded by the CLI.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sqlaunch/cli/internal/errors"
	"sqlaunch/cli/internal/xdg"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the XDG config dir.
const FileName = "config.yaml"

// Config holds non-sensitive settings.
type Config struct {
	LogLevel string `yaml:"log_level"`
	// Mode is the bridge mode: "streaming" or "batch".
	Mode string `yaml:"mode"`
	// Await selects how the launcher waits on submitted jobs: "none", "each" or "all".
	Await string `yaml:"await"`
	// Parallelism bounds concurrently running jobs; 0 leaves it to the engine.
	Parallelism int              `yaml:"parallelism"`
	Engine      EngineConfig     `yaml:"engine"`
	Console     ConsoleConfig    `yaml:"console"`
	Checkpoint  CheckpointConfig `yaml:"checkpoint"`
	Gateway     GatewayConfig    `yaml:"gateway"`
}

// EngineConfig selects the SQL engine behind the execution context.
type EngineConfig struct {
	Name string `yaml:"name"`
	// DSN is only meant for non-secret locations such as a sqlite file path.
	DSN string `yaml:"dsn"`
}

// ConsoleConfig controls the debug console.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// CheckpointConfig controls periodic job snapshots.
type CheckpointConfig struct {
	// Interval of 0 disables checkpointing.
	Interval time.Duration `yaml:"interval"`
	Dir      string        `yaml:"dir"`
	Retain   int           `yaml:"retain"`
	// Endpoint and Bucket select an S3-compatible store instead of Dir.
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// GatewayConfig controls the optional gRPC SQL gateway.
type GatewayConfig struct {
	// Addr of "" keeps the gateway off.
	Addr string `yaml:"addr"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		LogLevel: "info",
		Mode:     "streaming",
		Await:    "none",
		Engine:   EngineConfig{Name: "sqlite"},
		Console:  ConsoleConfig{Enabled: true, Addr: "localhost:8081"},
		Checkpoint: CheckpointConfig{
			Retain: 3,
		},
	}
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads configuration from path, or from the default path when path is
// empty. A missing file returns defaults; fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return c, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(errors.ConfigInvalid, "decode "+path, err)
	}
	return c, c.Validate()
}

// Validate rejects values the runtime cannot honor.
func (c Config) Validate() error {
	switch c.Mode {
	case "streaming", "batch":
	default:
		return errors.New(errors.ConfigInvalid, fmt.Sprintf("unknown mode %q (want streaming or batch)", c.Mode))
	}
	switch c.Await {
	case "none", "each", "all":
	default:
		return errors.New(errors.ConfigInvalid, fmt.Sprintf("unknown await policy %q (want none, each or all)", c.Await))
	}
	if c.Parallelism < 0 {
		return errors.New(errors.ConfigInvalid, "parallelism must not be negative")
	}
	if c.Checkpoint.Interval < 0 {
		return errors.New(errors.ConfigInvalid, "checkpoint interval must not be negative")
	}
	if c.Checkpoint.Interval > 0 && c.Checkpoint.Retain < 1 {
		return errors.New(errors.ConfigInvalid, "checkpoint retain must be at least 1")
	}
	if c.Checkpoint.Endpoint != "" && c.Checkpoint.Bucket == "" {
		return errors.New(errors.ConfigInvalid, "checkpoint bucket is required with an endpoint")
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(errors.ConfigInvalid, "load "+p, err)
		}
	}
	return nil
}
