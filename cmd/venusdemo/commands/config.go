package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/gogpu/venus/backend"
)

// Config holds the settings of one demo run. Values come from flags,
// VENUS_* environment variables and the config file, in that order.
type Config struct {
	Backend  string `mapstructure:"backend"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	Frames   int    `mapstructure:"frames"`
	InFlight int    `mapstructure:"in_flight"`
	Output   string `mapstructure:"output"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() Config {
	return Config{
		Backend:  backend.BackendSoftware,
		Width:    800,
		Height:   600,
		Frames:   3,
		InFlight: 2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Frames < 1 {
		errs = append(errs, fmt.Errorf("frames %d must be at least 1", c.Frames))
	}
	if c.InFlight < 1 {
		errs = append(errs, fmt.Errorf("in_flight %d must be at least 1", c.InFlight))
	}
	return errors.Join(errs...)
}

// loadConfig reads the merged configuration from v.
func loadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}
