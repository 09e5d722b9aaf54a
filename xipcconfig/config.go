// Package xipcconfig loads the TOML configuration for the example
// xipc-creator/xipc-attacher daemons, the way feeder/config does for the
// teacher's exchange daemon.
package xipcconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config describes one or more named sessions a creator daemon provisions,
// plus where its control-plane socket lives.
type Config struct {
	Dir           string                   `toml:"dir"`
	ControlSocket string                   `toml:"control_socket"`
	Sessions      map[string]SessionConfig `toml:"sessions"`
}

// DefaultEnvPath is the conventional .env overlay path next to the
// config file, used by cmd/xipc-creator and cmd/xipc-attacher.
const DefaultEnvPath = ".env"

// SessionConfig is one [sessions.<name>] table.
type SessionConfig struct {
	Capacity uint32 `toml:"capacity"`
	Nonblock bool   `toml:"nonblock"`
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xipcconfig: read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("xipcconfig: parse %s: %w", path, err)
	}
	return &c, nil
}

// LoadWithEnvOverlay behaves like Load, but first loads envPath (a
// .env-style file, tolerating its absence) and lets XIPC_DIR /
// XIPC_CONTROL_SOCKET environment variables override the corresponding
// config fields. The teacher's go.mod declares godotenv but never uses
// it; this is the real, exercised home for it.
func LoadWithEnvOverlay(path, envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("xipcconfig: load env file %s: %w", envPath, err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("XIPC_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("XIPC_CONTROL_SOCKET"); v != "" {
		c.ControlSocket = v
	}
	return c, nil
}
