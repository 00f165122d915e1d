package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Pairup/internal/domain"
)

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// LeaseTTL bounds how long a crashed instance keeps the Redis pool claimed.
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

type AnalyticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Buffer  int    `mapstructure:"buffer"`
	Workers int    `mapstructure:"workers"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type CatalogConfig struct {
	DefaultChannel string           `mapstructure:"default_channel"`
	DefaultTopic   string           `mapstructure:"default_topic"`
	Channels       []domain.Channel `mapstructure:"channels"`
	Topics         []domain.Topic   `mapstructure:"topics"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Store              StoreConfig     `mapstructure:"store"`
	WaitingTTL         time.Duration   `mapstructure:"waiting_ttl"`
	NegotiationTimeout time.Duration   `mapstructure:"negotiation_timeout"`
	AdmitLimit         int             `mapstructure:"admit_limit"`
	AdmitInterval      time.Duration   `mapstructure:"admit_interval"`
	Analytics          AnalyticsConfig `mapstructure:"analytics"`
	ICEServers         []ICEServer     `mapstructure:"ice_servers"`
	Catalog            CatalogConfig   `mapstructure:"catalog"`
}

// BuildCatalog turns the configured lists into the immutable matching alphabet.
func (c *Config) BuildCatalog() *domain.Catalog {
	return domain.NewCatalog(
		c.Catalog.Channels,
		c.Catalog.Topics,
		domain.ChannelID(c.Catalog.DefaultChannel),
		domain.TopicID(c.Catalog.DefaultTopic),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.lease_ttl", "15s")
	v.SetDefault("waiting_ttl", "5m")
	v.SetDefault("negotiation_timeout", "30s")
	v.SetDefault("admit_limit", 10)
	v.SetDefault("admit_interval", "10s")

	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.path", "./data/analytics.db")
	v.SetDefault("analytics.buffer", 256)
	v.SetDefault("analytics.workers", 2)

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	v.SetDefault("catalog.default_channel", "general")
	v.SetDefault("catalog.default_topic", "casual")
	v.SetDefault("catalog.channels", []map[string]any{
		{"id": "general", "name": "General", "description": "Talk to anyone", "icon": "💬", "accent_color": "#3b82f6"},
	})
	v.SetDefault("catalog.topics", []map[string]any{
		{"id": "casual", "name": "Casual", "icon": "☕", "description": "Just hanging out"},
	})
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("PAIRUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "redis" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.WaitingTTL <= 0 {
		return nil, fmt.Errorf("waiting_ttl must be positive")
	}
	// waiting metadata is refreshed on every ping, so it must outlive one period
	if cfg.WaitingTTL <= cfg.PingPeriod {
		return nil, fmt.Errorf("waiting_ttl %s must exceed ping_period %s", cfg.WaitingTTL, cfg.PingPeriod)
	}
	if cfg.Store.Backend == "redis" && cfg.Store.LeaseTTL <= 0 {
		return nil, fmt.Errorf("store.lease_ttl must be positive")
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("store", cfg.Store.Backend).
		Int("channels", len(cfg.Catalog.Channels)).
		Int("topics", len(cfg.Catalog.Topics)).
		Msg("config ready")
	return &cfg, nil
}
