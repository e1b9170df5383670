// Package config loads server configuration from an optional YAML file and
// CARAVAN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

// EnvPrefix is prepended to every environment override, e.g.
// CARAVAN_GAME_WIN_THRESHOLD.
const EnvPrefix = "CARAVAN"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type ServerConfig struct {
	HTTP            HTTPConfig    `mapstructure:"http"`
	GRPC            GRPCConfig    `mapstructure:"grpc"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// ReplayDir receives the replay of every won game. Empty disables it.
	ReplayDir string `mapstructure:"replay_dir"`
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

// GameConfig holds the defaults applied to every new room.
type GameConfig struct {
	WinThreshold  int    `mapstructure:"win_threshold"`
	MinPlayers    int    `mapstructure:"min_players"`
	MaxPlayers    int    `mapstructure:"max_players"`
	HandSize      int    `mapstructure:"hand_size"`
	TurnDrawCount int    `mapstructure:"turn_draw_count"`
	CatalogPath   string `mapstructure:"catalog_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig configures result storage. An empty DSN disables it.
type DatabaseConfig struct {
	DSN            string        `mapstructure:"dsn"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig configures event publishing. An empty address disables it.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	defaults := game.DefaultOptions()

	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.allowed_origins", []string{"*"})
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.replay_dir", "")

	v.SetDefault("game.win_threshold", defaults.WinThreshold)
	v.SetDefault("game.min_players", defaults.MinPlayers)
	v.SetDefault("game.max_players", defaults.MaxPlayers)
	v.SetDefault("game.hand_size", defaults.HandSize)
	v.SetDefault("game.turn_draw_count", defaults.TurnDrawCount)
	v.SetDefault("game.catalog_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Load reads the configuration. A missing file at path is not an error; the
// defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent values.
func (c *Config) Validate() error {
	if c.Server.HTTP.Address == "" {
		return errors.New("server.http.address is required")
	}
	if c.Server.GRPC.Address == "" {
		return errors.New("server.grpc.address is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	if c.Database.MaxConns < 0 {
		return errors.New("database.max_conns must not be negative")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must not be negative")
	}

	opts := c.Game.options()
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid game config: %w", err)
	}
	return nil
}

func (g GameConfig) options() game.Options {
	return game.Options{
		WinThreshold:  g.WinThreshold,
		MinPlayers:    g.MinPlayers,
		MaxPlayers:    g.MaxPlayers,
		HandSize:      g.HandSize,
		TurnDrawCount: g.TurnDrawCount,
	}
}

// GameOptions returns the room defaults, loading the catalog file when one
// is configured.
func (c *Config) GameOptions() (game.Options, error) {
	opts := c.Game.options()
	if c.Game.CatalogPath != "" {
		f, err := os.Open(c.Game.CatalogPath)
		if err != nil {
			return game.Options{}, fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()

		catalog, err := cards.LoadCatalog(f)
		if err != nil {
			return game.Options{}, fmt.Errorf("catalog %s: %w", c.Game.CatalogPath, err)
		}
		opts.Catalog = catalog
	}
	return opts, opts.Validate()
}
