// Package config holds the server settings, read from an optional TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"static-devserver/logging"
	"static-devserver/utils"
)

// Config is the complete server configuration. The HTTP address is not part
// of it; the server always listens on :8000.
type Config struct {
	Root     string       `toml:"root"`
	LogFile  string       `toml:"log_file"`
	LogLevel string       `toml:"log_level"`
	Color    bool         `toml:"color"`
	TFTP     ExportConfig `toml:"tftp"`
	NFS      ExportConfig `toml:"nfs"`
}

// ExportConfig enables an extra protocol export of the content root.
type ExportConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Default is the configuration used when no file is given: serve the
// working directory, log to server.log, no extra exports.
func Default() Config {
	return Config{
		Root:     ".",
		LogFile:  "server.log",
		LogLevel: "info",
		Color:    true,
		TFTP:     ExportConfig{Addr: ":69"},
		NFS:      ExportConfig{Addr: ":2049"},
	}
}

// Load reads path over the defaults. Keys the file sets replace the default
// values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root must not be empty")
	}
	if c.LogFile == "" {
		return errors.New("config: log_file must not be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.TFTP.Enabled {
		if _, err := utils.Port(c.TFTP.Addr); err != nil {
			return fmt.Errorf("config: tftp: %w", err)
		}
	}
	if c.NFS.Enabled {
		if _, err := utils.Port(c.NFS.Addr); err != nil {
			return fmt.Errorf("config: nfs: %w", err)
		}
	}
	return nil
}
