package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode        string `mapstructure:"mode"`
	Port        int    `mapstructure:"port"`
	Secret      string `mapstructure:"secret"`
	ServerURL   string `mapstructure:"server_url"`
	SignalURL   string `mapstructure:"signal_url"`
	TokenPath   string `mapstructure:"token_path"`
	DisplayName string `mapstructure:"display_name"`
	LogLevel    string `mapstructure:"log_level"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`

	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	AdmissionTimeout   time.Duration `mapstructure:"admission_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`

	ICEServers []string `mapstructure:"ice_servers"`
}

// ICE converts the configured STUN/TURN urls, used when the backend sends none.
func (c *Config) ICE() []core.ICEServer {
	if len(c.ICEServers) == 0 {
		return nil
	}
	return []core.ICEServer{{URLs: c.ICEServers}}
}

// Flags registers the command line overrides for Load.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Int("port", 0, "control API port")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("secret", "")
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("signal_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("token_path", "./.meetclient/token.json")
	v.SetDefault("display_name", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("negotiation_timeout", "10s")
	v.SetDefault("admission_timeout", "5s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
}

// Load reads defaults, the yaml file, MEETCLIENT_* env vars and flags, in
// increasing precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("MEETCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fileName := ""
	if fs != nil {
		fileName, _ = fs.GetString("config")
		if f := fs.Lookup("log-level"); f != nil {
			_ = v.BindPFlag("log_level", f)
		}
		if f := fs.Lookup("port"); f != nil && f.Changed {
			_ = v.BindPFlag("port", f)
		}
	}
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("server", cfg.ServerURL).Msg("config")
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ServerURL == "" || cfg.SignalURL == "" {
		return nil, fmt.Errorf("config: server_url and signal_url are required")
	}
	return &cfg, nil
}

// ApplyLogLevel sets the global zerolog level, falling back to info.
func ApplyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Watch re-applies log_level whenever the config file changes.
func Watch(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		level := v.GetString("log_level")
		ApplyLogLevel(level)
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Str("log_level", level).Msg("config changed")
	})
	v.WatchConfig()
}
