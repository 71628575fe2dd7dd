package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the auction service
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Bidding       BiddingConfig      `mapstructure:"bidding"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Log           LogConfig          `mapstructure:"log"`
	Seed          bool               `mapstructure:"seed"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
}

// DatabaseConfig selects the store. An empty path keeps everything in memory.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type BiddingConfig struct {
	MaxRetries       int           `mapstructure:"maxRetries" validate:"gte=0,lte=20"`
	RetryDelay       time.Duration `mapstructure:"retryDelay" validate:"gte=0"`
	DefaultIncrement string        `mapstructure:"defaultIncrement" validate:"required,positive_decimal"`
	Currency         string        `mapstructure:"currency" validate:"required,len=3,uppercase"`
}

// Increment returns DefaultIncrement as a fixed-point amount
func (b BiddingConfig) Increment() decimal.Decimal {
	d, err := decimal.NewFromString(b.DefaultIncrement)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return d
}

type SchedulerConfig struct {
	SweepInterval time.Duration `mapstructure:"sweepInterval" validate:"gt=0"`
}

type NotificationConfig struct {
	Workers     int           `mapstructure:"workers" validate:"gt=0"`
	QueueLength int           `mapstructure:"queueLength" validate:"gte=0"`
	MaxAttempts int           `mapstructure:"maxAttempts" validate:"gt=0"`
	RetryDelay  time.Duration `mapstructure:"retryDelay" validate:"gte=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

var (
	once     sync.Once
	validate *validator.Validate
)

// getValidator returns the shared validator instance
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// registration only fails on an empty tag or nil func
		_ = validate.RegisterValidation("positive_decimal", isPositiveDecimal)
	})
	return validate
}

// isPositiveDecimal accepts strings holding a decimal amount greater than zero
func isPositiveDecimal(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "")
	v.SetDefault("bidding.maxRetries", 3)
	v.SetDefault("bidding.retryDelay", 2*time.Millisecond)
	v.SetDefault("bidding.defaultIncrement", "1.00")
	v.SetDefault("bidding.currency", "USD")
	v.SetDefault("scheduler.sweepInterval", time.Second)
	v.SetDefault("notifications.workers", 8)
	v.SetDefault("notifications.queueLength", 1024)
	v.SetDefault("notifications.maxAttempts", 5)
	v.SetDefault("notifications.retryDelay", 50*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("seed", false)
}

// Load builds the configuration from defaults, an optional YAML file, .env, AUCTION_* env vars and flags
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	flags := pflag.NewFlagSet("property-auction", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a YAML config file")
	flags.String("port", "", "HTTP listen port")
	flags.String("db", "", "SQLite database path; empty keeps state in memory")
	flags.Bool("seed", false, "prepopulate demo properties, users and an auction")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", *configFile, err)
		}
	}

	for key, flag := range map[string]string{"server.port": "port", "database.path": "db", "seed": "seed"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", flag, err)
			}
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates a populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := getValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}
