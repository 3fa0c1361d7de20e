package cli

import (
	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/config"
)

// setup loads the configuration and applies the log level. --verbose wins
// over the configured level.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	level := cfg.LogLevel()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	return nil
}

// loadConfig reads path, or the first config file found when path is empty.
// With neither it returns the defaults and an empty path.
func loadConfig(path string) (config.Config, string, error) {
	if path == "" {
		path = config.Find()
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}
