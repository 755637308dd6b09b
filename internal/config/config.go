// Package config loads and validates relay configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	busredis "github.com/mediarelay/mediarelay/internal/bus/redis"
	"github.com/mediarelay/mediarelay/internal/processor"
	"github.com/mediarelay/mediarelay/internal/relay"
	replyredis "github.com/mediarelay/mediarelay/internal/reply/redis"
	storeredis "github.com/mediarelay/mediarelay/internal/store/redis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Bus     BusConfig     `mapstructure:"bus"`
	Store   StoreConfig   `mapstructure:"store"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Reply   ReplyConfig   `mapstructure:"reply"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Lookup  LookupConfig  `mapstructure:"lookup"`
}

// ServerConfig controls the operational HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BusConfig selects and configures the request bus.
type BusConfig struct {
	Provider string          `mapstructure:"provider"`
	Channel  string          `mapstructure:"channel"`
	Redis    busredis.Config `mapstructure:"redis"`
	PubSub   BusPubSubConfig `mapstructure:"pubsub"`
}

// BusPubSubConfig holds Cloud Pub/Sub settings for the bus.
type BusPubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	TopicID      string `mapstructure:"topic_id"`
	Subscription string `mapstructure:"subscription"`
}

// StoreConfig selects and configures the metadata store.
type StoreConfig struct {
	Provider string            `mapstructure:"provider"`
	TTL      time.Duration     `mapstructure:"ttl"`
	Redis    storeredis.Config `mapstructure:"redis"`
}

// RelayConfig governs the download pipeline.
type RelayConfig struct {
	TargetDir      string   `mapstructure:"target_dir"`
	SupportedSites []string `mapstructure:"supported_sites"`
	Concurrency    int      `mapstructure:"concurrency"`
	MaxVideoBytes  int64    `mapstructure:"max_video_bytes"`
	MaxImageBytes  int64    `mapstructure:"max_image_bytes"`
	YtDlpBinary    string   `mapstructure:"ytdlp_binary"`
}

// ReplyConfig governs delivery back to the front end.
type ReplyConfig struct {
	MaxAttempts int               `mapstructure:"max_attempts"`
	Backoff     time.Duration     `mapstructure:"backoff"`
	Redis       replyredis.Config `mapstructure:"redis"`
}

// HTTPConfig configures outbound HTTP client behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LookupConfig configures the optional lookup API fallback.
type LookupConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`

	API processor.AwemeConfig `mapstructure:"api"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDIARELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)

	v.SetDefault("bus.provider", "redis")
	v.SetDefault("bus.channel", "channel_1")
	v.SetDefault("bus.redis.address", "localhost:6379")

	v.SetDefault("store.provider", "redis")
	v.SetDefault("store.ttl", relay.DefaultTTL)
	v.SetDefault("store.redis.address", "localhost:6379")

	v.SetDefault("relay.target_dir", "downloads")
	v.SetDefault("relay.supported_sites", []string{"tiktok.com", "youtube.com", "youtu.be"})
	v.SetDefault("relay.concurrency", 4)
	v.SetDefault("relay.max_video_bytes", relay.MaxVideoBytes)
	v.SetDefault("relay.max_image_bytes", relay.MaxImageBytes)
	v.SetDefault("relay.ytdlp_binary", "yt-dlp")

	v.SetDefault("reply.max_attempts", 3)
	v.SetDefault("reply.backoff", 30*time.Second)
	v.SetDefault("reply.redis.address", "localhost:6379")
	v.SetDefault("reply.redis.channel", "replies")

	v.SetDefault("http.timeout_seconds", 15)

	v.SetDefault("lookup.enabled", false)
	v.SetDefault("lookup.max_attempts", 3)
	v.SetDefault("lookup.backoff", 3*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Bus.Provider {
	case "redis", "pubsub", "memory":
	default:
		return fmt.Errorf("bus.provider must be one of redis, pubsub, memory")
	}
	switch c.Store.Provider {
	case "redis", "memory":
	default:
		return fmt.Errorf("store.provider must be one of redis, memory")
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be > 0")
	}
	if c.Relay.TargetDir == "" {
		return fmt.Errorf("relay.target_dir must be set")
	}
	if len(c.Relay.SupportedSites) == 0 {
		return fmt.Errorf("relay.supported_sites must not be empty")
	}
	if c.Relay.Concurrency <= 0 {
		return fmt.Errorf("relay.concurrency must be > 0")
	}
	if c.Reply.MaxAttempts <= 0 {
		return fmt.Errorf("reply.max_attempts must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Lookup.Enabled && c.Lookup.API.URL == "" {
		return fmt.Errorf("lookup.api.url must be set when lookup is enabled")
	}
	if c.Lookup.Enabled && c.Lookup.API.Params.DeviceIDUpper < c.Lookup.API.Params.DeviceIDLower {
		return fmt.Errorf("lookup.api.params.device_id_upper must be >= device_id_lower")
	}
	return nil
}

// HTTPTimeout converts the HTTP timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
