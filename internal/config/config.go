package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"PORT"`
	Env           string `mapstructure:"ENV"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	// TimelineMatchPolicy selects how a vitals entry picks among several
	// same-day notes: "first" (historical behavior) or "earliest".
	TimelineMatchPolicy string `mapstructure:"TIMELINE_MATCH_POLICY"`

	// Print export wrapping limits.
	PrintWrapWords int `mapstructure:"PRINT_WRAP_WORDS"`
	PrintWrapChars int `mapstructure:"PRINT_WRAP_CHARS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("TIMELINE_MATCH_POLICY", "first")
	v.SetDefault("PRINT_WRAP_WORDS", 30)
	v.SetDefault("PRINT_WRAP_CHARS", 40)

	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("TIMELINE_MATCH_POLICY")
	v.BindEnv("PRINT_WRAP_WORDS")
	v.BindEnv("PRINT_WRAP_CHARS")

	// A .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if p := c.TimelineMatchPolicy; p != "first" && p != "earliest" {
		return fmt.Errorf("TIMELINE_MATCH_POLICY must be \"first\" or \"earliest\", got %q", p)
	}
	if c.PrintWrapWords <= 0 {
		return fmt.Errorf("PRINT_WRAP_WORDS must be positive, got %d", c.PrintWrapWords)
	}
	if c.PrintWrapChars <= 0 {
		return fmt.Errorf("PRINT_WRAP_CHARS must be positive, got %d", c.PrintWrapChars)
	}
	return nil
}
