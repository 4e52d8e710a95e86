package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for diffodil settings.
const envPrefix = "DIFFODIL"

// Load builds the configuration from defaults and DIFFODIL_* env
// vars, then applies the caller's overrides (typically CLI flags) and
// validates the result. The root is made absolute.
func Load(overrides func(*viper.Viper)) (*Config, error) {
	viperCfg := viper.New()

	// Defaults double as key registrations so AutomaticEnv values
	// reach Unmarshal.
	viperCfg.SetDefault("root", "")
	viperCfg.SetDefault("port", DefaultPort)
	viperCfg.SetDefault("verbosity", 0)
	viperCfg.SetDefault("static_dir", "")

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()

	if overrides != nil {
		overrides(viperCfg)
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	if cfg.Root != "" {
		absRoot, absErr := filepath.Abs(cfg.Root)
		if absErr != nil {
			return nil, fmt.Errorf("resolve root: %w", absErr)
		}

		cfg.Root = absRoot
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}
