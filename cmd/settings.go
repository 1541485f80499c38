// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"sqlaunch/cli/internal/checkpoint"
	"sqlaunch/cli/internal/config"
	"sqlaunch/cli/internal/dsn"
	"sqlaunch/cli/internal/errors"
	"sqlaunch/cli/internal/keychain"
	"sqlaunch/cli/internal/runtime"
	"sqlaunch/cli/internal/xdg"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"
)

// Environment variables read by the CLI.
const (
	envDSN         = "SQLAUNCH_DSN"
	envVerbose     = "SQLAUNCH_VERBOSE"
	envS3AccessKey = "SQLAUNCH_S3_ACCESS_KEY"
	envS3SecretKey = "SQLAUNCH_S3_SECRET_KEY"
)

// launchFlags are the root command's flags. Only flags the user set override
// the config file.
type launchFlags struct {
	config             string
	engine             string
	dsn                string
	profile            string
	mode               string
	await              string
	parallelism        int
	checkpointInterval string
	checkpointDir      string
	console            bool
	consoleAddr        string
	gatewayAddr        string
	files              []string
	verbose            bool
}

func (f *launchFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "Config file (default $XDG_CONFIG_HOME/sqlaunch/config.yaml)")
	fs.StringVar(&f.engine, "engine", "", "SQL engine: sqlite, postgres or sqlserver (default from DSN, else sqlite)")
	fs.StringVar(&f.dsn, "dsn", "", "Connection string; overrides "+envDSN+" and the keychain")
	fs.StringVar(&f.profile, "profile", keychain.DefaultProfile, "Keychain profile holding the DSN")
	fs.StringVar(&f.mode, "mode", "", "Bridge mode: streaming or batch")
	fs.StringVar(&f.await, "await", "", "Wait for submitted jobs: none, each or all")
	fs.IntVar(&f.parallelism, "parallelism", 0, "Maximum concurrently running jobs (0 = number of CPUs)")
	fs.StringVar(&f.checkpointInterval, "checkpoint-interval", "", "Checkpoint period such as 30s (0 disables)")
	fs.StringVar(&f.checkpointDir, "checkpoint-dir", "", "Directory for checkpoint files")
	fs.BoolVar(&f.console, "console", true, "Serve the debug console")
	fs.StringVar(&f.consoleAddr, "console-addr", "", "Debug console listen address")
	fs.StringVar(&f.gatewayAddr, "gateway-addr", "", "Serve the SQL gateway on this address and keep running")
	fs.StringArrayVarP(&f.files, "file", "f", nil, "SQL script to run after the argument statements (repeatable, - for stdin)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose debug output")
}

// apply overlays the flags the user set onto cfg and validates the result.
func (f *launchFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("engine") {
		cfg.Engine.Name = f.engine
	}
	if fs.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fs.Changed("await") {
		cfg.Await = f.await
	}
	if fs.Changed("parallelism") {
		cfg.Parallelism = f.parallelism
	}
	if fs.Changed("checkpoint-interval") {
		d, err := parseInterval(f.checkpointInterval)
		if err != nil {
			return err
		}
		cfg.Checkpoint.Interval = d
	}
	if fs.Changed("checkpoint-dir") {
		cfg.Checkpoint.Dir = f.checkpointDir
	}
	if fs.Changed("console") {
		cfg.Console.Enabled = f.console
	}
	if fs.Changed("console-addr") {
		cfg.Console.Addr = f.consoleAddr
	}
	if fs.Changed("gateway-addr") {
		cfg.Gateway.Addr = f.gatewayAddr
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Await = strings.ToLower(strings.TrimSpace(cfg.Await))
	return cfg.Validate()
}

// dsnSource reports where a DSN came from.
type dsnSource string

const (
	sourceNone     dsnSource = ""
	sourceFlag     dsnSource = "--dsn flag"
	sourceEnv      dsnSource = envDSN + " environment variable"
	sourceConfig   dsnSource = "config file"
	sourceKeychain dsnSource = "OS keychain"
)

// resolveDSN picks the first non-empty DSN from the flag, the environment,
// the config file and finally the keychain. Keychain errors are treated as
// "nothing stored".
func resolveDSN(flag, configured string, keychainLookup func() (string, error)) (string, dsnSource) {
	if v := strings.TrimSpace(flag); v != "" {
		return v, sourceFlag
	}
	if v := strings.TrimSpace(os.Getenv(envDSN)); v != "" {
		return v, sourceEnv
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v, sourceConfig
	}
	if keychainLookup != nil {
		if v, err := keychainLookup(); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), sourceKeychain
		}
	}
	return "", sourceNone
}

func keychainLookup(profile string) func() (string, error) {
	return func() (string, error) {
		km, err := keychain.GetManager()
		if err != nil {
			return "", err
		}
		return km.LoadDSN(profile)
	}
}

// resolveEngine returns the engine and normalized DSN. An engine set
// explicitly wins; otherwise it is inferred from the DSN, defaulting to sqlite.
func resolveEngine(explicit string, explicitSet bool, raw string) (string, string, error) {
	engine := strings.ToLower(strings.TrimSpace(explicit))
	if raw == "" {
		if !explicitSet || engine == "" {
			engine = "sqlite"
		}
		return engine, "", nil
	}
	normalized, err := dsn.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if !explicitSet || engine == "" {
		engine = dsn.DetectDBType(raw).Engine()
	}
	return engine, normalized, nil
}

// checkpointStore builds the store configured in cfg, or nil when
// checkpoints are disabled.
func checkpointStore(ctx context.Context, cfg config.CheckpointConfig) (checkpoint.Store, error) {
	if cfg.Interval <= 0 {
		return nil, nil
	}
	if cfg.Endpoint != "" {
		return checkpoint.NewObjectStore(ctx, checkpoint.ObjectConfig{
			Endpoint:        cfg.Endpoint,
			Bucket:          cfg.Bucket,
			AccessKeyID:     os.Getenv(envS3AccessKey),
			SecretAccessKey: os.Getenv(envS3SecretKey),
			UseSSL:          cfg.UseSSL,
			Retain:          cfg.Retain,
		})
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := xdg.StateSubdir("checkpoints")
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return checkpoint.NewFileStore(dir, cfg.Retain)
}

func parseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrap(errors.ConfigInvalid, "checkpoint interval", err)
	}
	return d, nil
}

// runtimeOptions maps the resolved configuration onto the runtime.
func runtimeOptions(cfg config.Config, engine, normalizedDSN string, store checkpoint.Store, log *pterm.Logger) runtime.Options {
	return runtime.Options{
		Engine:             engine,
		DSN:                normalizedDSN,
		Console:            cfg.Console.Enabled,
		ConsoleAddr:        cfg.Console.Addr,
		Parallelism:        cfg.Parallelism,
		CheckpointInterval: cfg.Checkpoint.Interval,
		CheckpointStore:    store,
		Logger:             log,
	}
}
