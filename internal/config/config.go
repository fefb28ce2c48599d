// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads stagehand's process-wide settings from, in order
// of increasing precedence, ~/.config/stagehand/config.yaml, STAGEHAND_*
// environment variables, and command-line flags bound by the caller.
package config

import (
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironloom/stagehand/pkg/errors"
)

// Config holds the settings shared across CLI subcommands.
type Config struct {
	// DBPath is the LogStore database file (`--db`, STAGEHAND_DB).
	DBPath string

	// Threads is the shared user-pool width (`--threads`, STAGEHAND_THREADS).
	Threads int

	// MaxSteps is the default interpreter step budget (`--max-steps`).
	MaxSteps int

	// TLSCertFile/TLSKeyFile configure LogService's optional TLS listener.
	TLSCertFile string
	TLSKeyFile  string

	// LogServicePort is log-serve's TCP port (default 29090).
	LogServicePort int
}

// Defaults returns a Config populated with stagehand's built-in defaults,
// before any file/env/flag layer is applied.
func Defaults() Config {
	dbPath, _ := DefaultDBPath()
	return Config{
		DBPath:         dbPath,
		Threads:        4,
		MaxSteps:       10000,
		LogServicePort: 29090,
	}
}

// Load builds a viper instance layering the XDG config file under
// STAGEHAND_*-prefixed environment variables, then binds flags (highest
// precedence) if provided, and decodes the result into a Config seeded
// with Defaults().
func Load(flags *pflag.FlagSet) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("STAGEHAND")
	v.AutomaticEnv()

	v.SetDefault("db", cfg.DBPath)
	v.SetDefault("threads", cfg.Threads)
	v.SetDefault("max_steps", cfg.MaxSteps)
	v.SetDefault("log_service_port", cfg.LogServicePort)

	path, err := ConfigPath()
	if err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return cfg, &errors.ConfigError{Key: path, Reason: "unreadable config file", Cause: err}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, &errors.ConfigError{Reason: "binding command-line flags", Cause: err}
		}
	}

	cfg.DBPath = v.GetString("db")
	cfg.Threads = v.GetInt("threads")
	cfg.MaxSteps = v.GetInt("max_steps")
	cfg.TLSCertFile = v.GetString("tls_cert")
	cfg.TLSKeyFile = v.GetString("tls_key")
	cfg.LogServicePort = v.GetInt("log_service_port")
	return cfg, nil
}
