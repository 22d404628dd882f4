package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/router"
	"github.com/mcoot/guessduel-go/internal/services/room"
)

// EnvPrefix prefixes every environment variable read by the server
const EnvPrefix = "GUESSDUEL"

// Storage backends for the collaborator services
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config holds every setting of the server binary
type Config struct {
	LogLevel  string
	LogFormat string

	Host         string
	RoomsPort    int
	IdentityPort int
	RulesPort    int

	ShutdownTimeout time.Duration

	StorageType string
	RedisURL    string
	GameTTL     time.Duration

	Collab collab.Config

	RoomRetention    time.Duration
	RoomReapInterval time.Duration

	RateLimit      float64
	RateBurst      int
	MessageTimeout time.Duration
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	roomCfg := room.DefaultConfig()
	routerCfg := router.DefaultConfig()
	return Config{
		LogLevel:         "info",
		LogFormat:        "json",
		Host:             "",
		RoomsPort:        3003,
		IdentityPort:     3001,
		RulesPort:        3002,
		ShutdownTimeout:  10 * time.Second,
		StorageType:      StorageMemory,
		RedisURL:         "redis://localhost:6379",
		GameTTL:          24 * time.Hour,
		Collab:           collab.DefaultConfig(),
		RoomRetention:    roomCfg.Retention,
		RoomReapInterval: roomCfg.ReapInterval,
		RateLimit:        float64(routerCfg.RateLimit),
		RateBurst:        routerCfg.RateBurst,
		MessageTimeout:   routerCfg.MessageTimeout,
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log format %q: must be json or text", c.LogFormat)
	}
	for name, port := range map[string]int{"rooms": c.RoomsPort, "identity": c.IdentityPort, "rules": c.RulesPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid %s port (must be between 0-65535 inclusive): %d", name, port)
		}
	}
	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("--redis-url is required when --storage=redis")
		}
	default:
		return fmt.Errorf("invalid storage %q: must be memory or redis", c.StorageType)
	}
	if c.RoomRetention <= 0 || c.RoomReapInterval <= 0 {
		return errors.New("room retention and reap interval must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("rate limit and burst must be positive")
	}
	if c.MessageTimeout <= 0 {
		return errors.New("message timeout must be positive")
	}
	return c.Collab.Validate()
}

// Room returns the room manager settings
func (c *Config) Room() room.Config {
	cfg := room.DefaultConfig()
	cfg.Retention = c.RoomRetention
	cfg.ReapInterval = c.RoomReapInterval
	return cfg
}

// Router returns the message router settings
func (c *Config) Router() router.Config {
	return router.Config{
		RateLimit:      rate.Limit(c.RateLimit),
		RateBurst:      c.RateBurst,
		MessageTimeout: c.MessageTimeout,
	}
}

// RegisterFlags adds every setting to fs, with c's current values as defaults
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error (env: GUESSDUEL_LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: json or text (env: GUESSDUEL_LOG_FORMAT)")

	fs.StringVarP(&c.Host, "bind", "b", c.Host, "address to bind to (env: GUESSDUEL_BIND)")
	fs.IntVar(&c.RoomsPort, "rooms-port", c.RoomsPort, "room service port (env: GUESSDUEL_ROOMS_PORT)")
	fs.IntVar(&c.IdentityPort, "identity-port", c.IdentityPort, "identity service port (env: GUESSDUEL_IDENTITY_PORT)")
	fs.IntVar(&c.RulesPort, "rules-port", c.RulesPort, "rules service port (env: GUESSDUEL_RULES_PORT)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "time allowed for graceful shutdown (env: GUESSDUEL_SHUTDOWN_TIMEOUT)")

	fs.StringVar(&c.StorageType, "storage", c.StorageType, "collaborator storage: memory or redis (env: GUESSDUEL_STORAGE)")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "redis connection URL (env: GUESSDUEL_REDIS_URL)")
	fs.DurationVar(&c.GameTTL, "game-ttl", c.GameTTL, "how long redis keeps an idle game (env: GUESSDUEL_GAME_TTL)")

	fs.StringVar(&c.Collab.IdentityURL, "identity-url", c.Collab.IdentityURL, "identity service base URL (env: GUESSDUEL_IDENTITY_URL)")
	fs.StringVar(&c.Collab.RulesURL, "rules-url", c.Collab.RulesURL, "rules service base URL (env: GUESSDUEL_RULES_URL)")
	fs.DurationVar(&c.Collab.Timeout, "collab-timeout", c.Collab.Timeout, "per-attempt timeout for collaborator calls (env: GUESSDUEL_COLLAB_TIMEOUT)")
	fs.Uint64Var(&c.Collab.MaxRetries, "collab-retries", c.Collab.MaxRetries, "retries for idempotent collaborator calls (env: GUESSDUEL_COLLAB_RETRIES)")
	fs.Uint32Var(&c.Collab.BreakerFailures, "breaker-failures", c.Collab.BreakerFailures, "consecutive failures that open a breaker (env: GUESSDUEL_BREAKER_FAILURES)")
	fs.DurationVar(&c.Collab.BreakerCooldown, "breaker-cooldown", c.Collab.BreakerCooldown, "time an open breaker waits before probing (env: GUESSDUEL_BREAKER_COOLDOWN)")

	fs.DurationVar(&c.RoomRetention, "room-retention", c.RoomRetention, "how long finished rooms are kept (env: GUESSDUEL_ROOM_RETENTION)")
	fs.DurationVar(&c.RoomReapInterval, "reap-interval", c.RoomReapInterval, "how often finished rooms are reaped (env: GUESSDUEL_REAP_INTERVAL)")

	fs.Float64Var(&c.RateLimit, "rate-limit", c.RateLimit, "messages per second allowed per connection (env: GUESSDUEL_RATE_LIMIT)")
	fs.IntVar(&c.RateBurst, "rate-burst", c.RateBurst, "message burst allowed per connection (env: GUESSDUEL_RATE_BURST)")
	fs.DurationVar(&c.MessageTimeout, "message-timeout", c.MessageTimeout, "time allowed to handle one message (env: GUESSDUEL_MESSAGE_TIMEOUT)")
}

// NewViper returns a viper instance reading GUESSDUEL_* variables
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyEnv copies environment values onto flags the user did not set
// explicitly. Command line flags win over the environment.
func ApplyEnv(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("env %s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// LoadDotEnv loads variables from the given files into the environment.
// Missing files are ignored; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// NewLogger builds the process logger
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
