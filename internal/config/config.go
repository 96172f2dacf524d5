package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the configuration for the route manager
type Config struct {
	LogLevel string `toml:"log_level" validate:"oneof=debug info warn error"`

	// 执行配置
	ConcurrencyLimit int    `toml:"concurrency" validate:"min=1,max=256"`
	GroupSize        int    `toml:"group_size" validate:"min=1,max=1000"`
	RouteMetric      int    `toml:"route_metric" validate:"min=1,max=9999"`
	Backend          string `toml:"backend" validate:"oneof=auto command script netlink"`

	// 路由计算
	MinBlockSize uint64 `toml:"min_block_size" validate:"pow2"`

	// 操作锁
	LockFile       string   `toml:"lock_file" validate:"required"`
	LockStaleAfter Duration `toml:"lock_stale_after" validate:"gt=0"`

	// 地址段来源
	FeedURL      string   `toml:"feed_url" validate:"required,url"`
	Region       string   `toml:"region" validate:"required,len=2,uppercase"`
	FetchTimeout Duration `toml:"fetch_timeout" validate:"gt=0"`

	MetricsFile string `toml:"metrics_file,omitempty"`
}

// Duration is a time.Duration written as "30m" in TOML
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// NewConfig creates a new config with default values
func NewConfig() *Config {
	return &Config{
		LogLevel:         "info",
		ConcurrencyLimit: 4,
		GroupSize:        100,
		RouteMetric:      5,
		Backend:          "auto",
		MinBlockSize:     0,
		LockFile:         filepath.Join(os.TempDir(), "lucky-route-operation.lock"),
		LockStaleAfter:   Duration(30 * time.Minute),
		FeedURL:          "https://ftp.apnic.net/apnic/stats/apnic/delegated-apnic-latest",
		Region:           "CN",
		FetchTimeout:     Duration(60 * time.Second),
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("pow2", validatePow2); err != nil {
		panic(err)
	}

	// report fields by their TOML names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validatePow2 accepts zero or a power of two
func validatePow2(fl validator.FieldLevel) bool {
	v := fl.Field().Uint()
	return v&(v-1) == 0
}

// LoadConfig reads a TOML file over the defaults. An empty path or a
// missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse config file %s at line %d, column %d: %s", path, row, col, derr.Error())
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "pow2":
		return fmt.Sprintf("%s must be 0 or a power of two, got %v", fe.Field(), fe.Value())
	case "min", "max", "gt", "len":
		return fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}

// Save writes the config as TOML
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// LockStaleDuration returns LockStaleAfter as a time.Duration
func (c *Config) LockStaleDuration() time.Duration {
	return time.Duration(c.LockStaleAfter)
}

// FetchTimeoutDuration returns FetchTimeout as a time.Duration
func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout)
}
