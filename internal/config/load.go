// Package config loads and validates application configuration from an
// optional YAML file and SOMINAI_-prefixed environment variables, with the
// environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from path (optional; pass "" to rely on defaults
// and environment only) and returns a validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("broker.task_queue", "crawler_tasks")
	v.SetDefault("broker.result_queue", "crawler_results")
	v.SetDefault("broker.concurrency", 1)
	v.SetDefault("crawler.default_region", "BE")
	v.SetDefault("crawler.page_size", 20)
	v.SetDefault("crawler.max_pages", 5)

	v.SetEnvPrefix("SOMINAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return nil, fmt.Errorf("invalid config: %s failed %q validation", f.Namespace(), f.Tag())
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
