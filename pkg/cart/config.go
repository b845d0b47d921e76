package cart

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gwillem/linecart/pkg/mission"
	"github.com/gwillem/linecart/pkg/robot"
)

const DefaultConfigFile = "linecart.json"

// DefaultHz is the control loop rate when none is configured.
const DefaultHz = 50

// Config is the cart configuration file: the hardware sections plus
// mission tuning.
type Config struct {
	robot.Config
	Mission mission.Config `json:"mission"`
	Hz      int            `json:"hz,omitempty"`
}

// DefaultConfig returns a configuration with every tuning value set and
// no ports assigned.
func DefaultConfig() *Config {
	return &Config{
		Config:  robot.DefaultConfig(),
		Mission: mission.DefaultConfig(),
		Hz:      DefaultHz,
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Values missing
// from the file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Config = cfg.Config.WithDefaults()
	cfg.Mission = cfg.Mission.WithDefaults()
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultHz
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
