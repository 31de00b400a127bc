package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the demo workload settings. Values come from an optional
// config file and JOBTREE_-prefixed environment variables, env winning.
type Config struct {
	Workers     int     `mapstructure:"workers" validate:"required,gt=0,lte=1024"`
	Jobs        int     `mapstructure:"jobs" validate:"required,gt=0"`
	FailureRate float64 `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	Policy      string  `mapstructure:"policy" validate:"required,oneof=failfast supervise"`
	LogLevel    string  `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("workers", 8)
	v.SetDefault("jobs", 32)
	v.SetDefault("failure_rate", 0.1)
	v.SetDefault("policy", "failfast")
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("JOBTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
