package config

import (
	"errors"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultServerURL = "http://127.0.0.1:4096"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Notify  NotifyConfig  `toml:"notify"`
	Stream  StreamConfig  `toml:"stream"`
}

type ServerConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type NotifyConfig struct {
	MaxToasts       int `toml:"max_toasts"`
	MaxHistory      int `toml:"max_history"`
	ToastDurationMS int `toml:"toast_duration_ms"`
}

type StreamConfig struct {
	CharDelayMS int `toml:"char_delay_ms"`
}

func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{URL: defaultServerURL},
		Logging: LoggingConfig{Level: "info"},
		Notify: NotifyConfig{
			MaxToasts:       3,
			MaxHistory:      100,
			ToastDurationMS: 5000,
		},
		Stream: StreamConfig{CharDelayMS: 8},
	}
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error; a malformed one is, so a typo never silently reverts settings.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	return normalize(cfg), nil
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	cfg.Server.URL = strings.TrimRight(strings.TrimSpace(cfg.Server.URL), "/")
	if cfg.Server.URL == "" {
		cfg.Server.URL = def.Server.URL
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Notify.MaxToasts <= 0 {
		cfg.Notify.MaxToasts = def.Notify.MaxToasts
	}
	if cfg.Notify.MaxHistory <= 0 {
		cfg.Notify.MaxHistory = def.Notify.MaxHistory
	}
	if cfg.Notify.ToastDurationMS <= 0 {
		cfg.Notify.ToastDurationMS = def.Notify.ToastDurationMS
	}
	if cfg.Stream.CharDelayMS <= 0 {
		cfg.Stream.CharDelayMS = def.Stream.CharDelayMS
	}
	return cfg
}
