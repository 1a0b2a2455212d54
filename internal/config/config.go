// Package config loads the server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Bidding BiddingConfig
	Gateway GatewayConfig
	Redis   RedisConfig
	Log     LogConfig
	Seed    SeedConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// StoreConfig selects and configures the auction store
type StoreConfig struct {
	Driver  string // memory, sqlite, postgres
	DSN     string
	Timeout time.Duration // per conditional write
}

// BiddingConfig holds the optional bid acceptance rules
type BiddingConfig struct {
	EnforceStartingBid bool
	EnforceBidWindow   bool
}

// GatewayConfig holds websocket settings
type GatewayConfig struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// RedisConfig holds the cross-instance relay settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// SeedConfig controls demo data
type SeedConfig struct {
	Demo bool
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with AUCTION_ prefix (e.g., AUCTION_STORE_DRIVER), PORT for the listen port
// 2. .env file in the working directory
// 3. config.yaml in . or ./config
// 4. Built-in defaults
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

// fromViper builds a Config from an already populated viper instance
func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "AUCTION_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(v.GetString("store.driver")),
			DSN:     v.GetString("store.dsn"),
			Timeout: v.GetDuration("store.timeout"),
		},
		Bidding: BiddingConfig{
			EnforceStartingBid: v.GetBool("bidding.enforce_starting_bid"),
			EnforceBidWindow:   v.GetBool("bidding.enforce_bid_window"),
		},
		Gateway: GatewayConfig{
			SendBuffer:     v.GetInt("gateway.send_buffer"),
			WriteWait:      v.GetDuration("gateway.write_wait"),
			PongWait:       v.GetDuration("gateway.pong_wait"),
			MaxMessageSize: v.GetInt64("gateway.max_message_size"),
			AllowedOrigins: splitList(v.GetStringSlice("gateway.allowed_origins")),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Seed: SeedConfig{
			Demo: v.GetBool("seed.demo"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.timeout", 3*time.Second)

	v.SetDefault("bidding.enforce_starting_bid", false)
	v.SetDefault("bidding.enforce_bid_window", false)

	v.SetDefault("gateway.send_buffer", 256)
	v.SetDefault("gateway.write_wait", 10*time.Second)
	v.SetDefault("gateway.pong_wait", 60*time.Second)
	v.SetDefault("gateway.max_message_size", 4096)
	v.SetDefault("gateway.allowed_origins", []string{})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction-events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("seed.demo", false)
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("store.timeout must be positive"))
	}

	if c.Gateway.SendBuffer <= 0 {
		errs = append(errs, errors.New("gateway.send_buffer must be positive"))
	}
	if c.Gateway.WriteWait <= 0 || c.Gateway.PongWait <= 0 {
		errs = append(errs, errors.New("gateway.write_wait and gateway.pong_wait must be positive"))
	}
	if c.Gateway.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("gateway.max_message_size must be positive"))
	}

	if c.Redis.Enabled && (c.Redis.Addr == "" || c.Redis.Channel == "") {
		errs = append(errs, errors.New("redis.addr and redis.channel are required when redis is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// splitList accepts both YAML lists and comma separated env values
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
