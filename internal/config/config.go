// Package config loads the dashboard settings from defaults, an optional
// config file, SSHDASH_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

const EnvPrefix = "SSHDASH"

type API struct {
	// BaseURL is the API root, e.g. http://localhost:5000/api
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RPS throttles backend requests; 0 disables throttling.
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=1"`
}

type Cache struct {
	// Size is the number of responses kept in memory; 0 disables caching.
	Size      int           `mapstructure:"size" validate:"gte=0"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
}

// Range is the initial date range. Empty values are taken from the
// backend's date_range endpoint.
type Range struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type UI struct {
	ViewSplit   int  `mapstructure:"view_split"`
	LogScale    bool `mapstructure:"log_scale"`
	AltScreen   bool `mapstructure:"alt_screen"`
	Stats       bool `mapstructure:"stats"`
	StatsWindow int  `mapstructure:"stats_window"`
	PageSize    int  `mapstructure:"page_size" validate:"gte=1"`
	// TopN caps the number of series per chart.
	TopN int `mapstructure:"top_n" validate:"gte=1"`
	// Batch is the discovery page size requested from the backend; 0 loads
	// everything at once.
	Batch int `mapstructure:"batch" validate:"gte=0"`
}

type Trend struct {
	K          int     `mapstructure:"k" validate:"gte=1"`
	WindowDays int     `mapstructure:"window_days" validate:"gte=1"`
	Width      int     `mapstructure:"width" validate:"gte=1"`
	Depth      int     `mapstructure:"depth" validate:"gte=1"`
	Decay      float64 `mapstructure:"decay" validate:"gt=0,lt=1"`
}

type Log struct {
	// File receives the log; empty discards it. The terminal belongs to
	// the dashboard.
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type Config struct {
	API   API   `mapstructure:"api"`
	Cache Cache `mapstructure:"cache"`
	Range Range `mapstructure:"range"`
	UI    UI    `mapstructure:"ui"`
	Trend Trend `mapstructure:"trend"`
	Log   Log   `mapstructure:"log"`
}

// SetDefaults registers every key with its default value. Keys must be
// known to viper for AutomaticEnv to pick them up on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.rps", 20.0)
	v.SetDefault("api.burst", 6)

	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "")

	v.SetDefault("range.start", "")
	v.SetDefault("range.end", "")

	v.SetDefault("ui.view_split", 35)
	v.SetDefault("ui.log_scale", false)
	v.SetDefault("ui.alt_screen", true)
	v.SetDefault("ui.stats", true)
	v.SetDefault("ui.stats_window", 256)
	v.SetDefault("ui.page_size", 50)
	v.SetDefault("ui.top_n", 10)
	v.SetDefault("ui.batch", 0)

	v.SetDefault("trend.k", 10)
	v.SetDefault("trend.window_days", 7)
	v.SetDefault("trend.width", 1024)
	v.SetDefault("trend.depth", 3)
	v.SetDefault("trend.decay", 0.9)

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
}

// Load reads the configuration into a Config. With file set, the file must
// exist; otherwise ./sshdash.yaml is read when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("sshdash")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize clamps presentation settings into their usable ranges.
func (c *Config) Normalize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.UI.ViewSplit = min(80, max(20, c.UI.ViewSplit))
	if c.UI.StatsWindow < 16 {
		c.UI.StatsWindow = 16
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the initial date range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	if _, _, err := c.InitialRange(); err != nil {
		return err
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s must be set", key)
	case "gte":
		return fmt.Errorf("%s must be >= %s", key, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be > %s", key, fe.Param())
	case "lt":
		return fmt.Errorf("%s must be < %s", key, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", key, fe.Param())
	case "url":
		return fmt.Errorf("%s must be a URL (got %q)", key, fe.Value())
	case "hostname_port":
		return fmt.Errorf("%s must be host:port (got %q)", key, fe.Value())
	}
	return fmt.Errorf("%s is invalid (%s)", key, fe.Tag())
}

// InitialRange parses range.start and range.end. It reports false when
// both are empty and the range should come from the backend.
func (c *Config) InitialRange() (dataset.DateRange, bool, error) {
	if c.Range.Start == "" && c.Range.End == "" {
		return dataset.DateRange{}, false, nil
	}
	if c.Range.Start == "" || c.Range.End == "" {
		return dataset.DateRange{}, false, fmt.Errorf("range.start and range.end must be set together")
	}
	r, err := dataset.ParseRange(c.Range.Start, c.Range.End)
	if err != nil {
		return dataset.DateRange{}, false, fmt.Errorf("range: %w", err)
	}
	if r.End.Before(r.Start) {
		return dataset.DateRange{}, false, fmt.Errorf("range.end must not be before range.start (got %s)", r)
	}
	return r, true, nil
}
