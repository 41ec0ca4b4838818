// Package config provides configuration for the xccdfpolicy CLI harness.
//
// The evaluation core (PolicyModel, Policy) is a library and takes no
// config of its own (§6: "no persisted state"); everything here governs
// the CLI wrapper only — log level/format, a CPE content-cache size
// hint, and the default scoring system URI used when "xccdfpolicy eval"
// is run without "--scoring". The CLI currently reads only the log level
// and the default scoring system; log format and the cache size hint are
// loaded but not consumed.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the CLI's configuration, loadable from a YAML file and env
// vars (XCCDFPOLICY_ prefix), in viper's usual override order. No CLI
// flag is bound to these keys.
type Config struct {
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`

	CPECacheSizeHint int `yaml:"cpe_cache_size_hint" mapstructure:"cpe_cache_size_hint"`

	DefaultScoringSystem string `yaml:"default_scoring_system" mapstructure:"default_scoring_system"`
}

// SetDefaults fills in zero-value fields with sane defaults.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.CPECacheSizeHint == 0 {
		c.CPECacheSizeHint = 256
	}
	if c.DefaultScoringSystem == "" {
		c.DefaultScoringSystem = "urn:xccdf:scoring:default"
	}
}

// Load reads configuration from an optional file path plus the
// XCCDFPOLICY_-prefixed environment, in viper's standard layered order
// (defaults < file < env < explicit Set calls by the caller).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XCCDFPOLICY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"log_level", "log_format", "cpe_cache_size_hint", "default_scoring_system"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return &cfg, nil
}
