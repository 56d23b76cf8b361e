package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type RateLimit struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type ServerConfig struct {
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	DiscoveryAddr   string        `mapstructure:"discovery_addr"`
	FrontendAddr    string        `mapstructure:"frontend_addr"`
	BackendAddr     string        `mapstructure:"backend_addr"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimit     `mapstructure:"rate_limit"`
	Backpressure    string        `mapstructure:"backpressure"`
}

type ClientConfig struct {
	LogLevel          string        `mapstructure:"log_level"`
	Who               string        `mapstructure:"who"`
	Endpoint          string        `mapstructure:"endpoint"`
	Join              []string      `mapstructure:"join"`
	DiscoveryTimeout  time.Duration `mapstructure:"discovery_timeout"`
	DiscoveryAttempts int           `mapstructure:"discovery_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	SendBuffer        int           `mapstructure:"send_buffer"`
}

var ErrMissingWho = errors.New("client name (who) is required")

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("discovery_addr", ":8888")
	v.SetDefault("frontend_addr", ":0")
	v.SetDefault("backend_addr", ":0")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("rate_limit.per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("backpressure", "drop")
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("who", "")
	v.SetDefault("endpoint", "http://127.0.0.1:8888")
	v.SetDefault("join", []string{"#general"})
	v.SetDefault("discovery_timeout", "5s")
	v.SetDefault("discovery_attempts", 1)
	v.SetDefault("retry_delay", "1s")
	v.SetDefault("send_buffer", 256)
}

// ServerFlags declares the server command line. Flag names are the config
// keys with dashes.
func ServerFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lobby-server", pflag.ContinueOnError)
	fs.String("mode", "", "gin mode (debug|release|test)")
	fs.String("log-level", "", "log level")
	fs.String("discovery-addr", "", "discovery listen address")
	fs.String("frontend-addr", "", "command channel listen address")
	fs.String("backend-addr", "", "broadcast channel listen address")
	fs.String("backpressure", "", "slow subscriber policy (drop|kick)")
	return fs
}

func ClientFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lobby-client", pflag.ContinueOnError)
	fs.String("log-level", "", "log level")
	fs.String("who", "", "member name")
	fs.String("endpoint", "", "discovery endpoint")
	fs.StringSlice("join", nil, "rooms to join on connect")
	fs.Int("discovery-attempts", 0, "discovery attempts before giving up")
	return fs
}

func LoadServer(flags *pflag.FlagSet) (*ServerConfig, error) {
	v, err := newViper("server", flags, setServerDefaults)
	if err != nil {
		return nil, err
	}
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Str("discovery", cfg.DiscoveryAddr).
		Str("frontend", cfg.FrontendAddr).
		Str("backend", cfg.BackendAddr).
		Msg("server config loaded")
	return &cfg, nil
}

func LoadClient(flags *pflag.FlagSet) (*ClientConfig, error) {
	v, err := newViper("client", flags, setClientDefaults)
	if err != nil {
		return nil, err
	}
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Who == "" {
		return nil, ErrMissingWho
	}
	if cfg.DiscoveryAttempts <= 0 {
		cfg.DiscoveryAttempts = 1
	}
	log.Info().Str("module", "config").Str("who", cfg.Who).Str("endpoint", cfg.Endpoint).Strs("join", cfg.Join).Msg("client config loaded")
	return &cfg, nil
}

// newViper layers defaults, config/<name>.<CONFIG_ENV>.yaml, LOBBY_* env
// vars and explicitly set flags, in increasing precedence.
func newViper(name string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults(v)

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/%s.%s.yaml", name, env)
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Debug().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config file")
	}

	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}
	return v, nil
}
