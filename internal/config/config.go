package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Discord    DiscordConfig    `yaml:"discord"`
	Feishu     FeishuConfig     `yaml:"feishu"`
}

// ServerConfig holds the admin HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with environment override
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional Redis settings used for the cycle lock.
// An empty URL disables Redis entirely.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// MonitoringConfig holds the feed monitoring settings
type MonitoringConfig struct {
	// IntervalSeconds is the delay between cycles. Values below 60 are
	// clamped to 60 to stay polite to lore.kernel.org.
	IntervalSeconds int `yaml:"interval_seconds"`

	// ManualSubsystems seeds the subsystems table at startup.
	ManualSubsystems []string `yaml:"manual_subsystems"`

	// LastUpdateAt, when set, overrides the initial high-water mark
	// (ISO-8601, trailing Z accepted).
	LastUpdateAt string `yaml:"last_update_at"`

	// MaxNewsCount bounds the entries included in a subsystem update
	// notification.
	MaxNewsCount int `yaml:"max_news_count"`

	// FeedBaseURL is the mailing-list archive host.
	FeedBaseURL string `yaml:"feed_base_url"`

	// ThreadTimeoutHours is the advisory card expiry.
	ThreadTimeoutHours int `yaml:"thread_timeout_hours"`
}

// Interval returns the monitoring interval as a duration, clamped to the
// 60 second floor.
func (c MonitoringConfig) Interval() time.Duration {
	secs := c.IntervalSeconds
	if secs < 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// FeedURL returns the Atom feed URL for a subsystem.
func (c MonitoringConfig) FeedURL(subsystem string) string {
	return fmt.Sprintf("%s/%s/new.atom", strings.TrimRight(c.FeedBaseURL, "/"), subsystem)
}

// DiscordConfig holds the Discord bot configuration
type DiscordConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BotToken       string `yaml:"bot_token"`
	ChannelID      string `yaml:"channel_id"`
	APIBaseURL     string `yaml:"api_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c DiscordConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FeishuConfig holds the Feishu webhook configuration
type FeishuConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c FeishuConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Monitoring.IntervalSeconds == 0 {
		cfg.Monitoring.IntervalSeconds = 300
	}
	if cfg.Monitoring.IntervalSeconds < 60 {
		cfg.Monitoring.IntervalSeconds = 60
	}
	if cfg.Monitoring.MaxNewsCount == 0 {
		cfg.Monitoring.MaxNewsCount = 10
	}
	if cfg.Monitoring.FeedBaseURL == "" {
		cfg.Monitoring.FeedBaseURL = "https://lore.kernel.org"
	}
	if cfg.Monitoring.ThreadTimeoutHours == 0 {
		cfg.Monitoring.ThreadTimeoutHours = 24
	}
	if cfg.Discord.APIBaseURL == "" {
		cfg.Discord.APIBaseURL = "https://discord.com/api/v10"
	}
	if cfg.Discord.TimeoutSeconds == 0 {
		cfg.Discord.TimeoutSeconds = 30
	}
	if cfg.Feishu.TimeoutSeconds == 0 {
		cfg.Feishu.TimeoutSeconds = 30
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
// A missing config file is not an error: defaults plus env vars apply.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		applyDefaults(cfg)
	} else if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if subsystems := os.Getenv("MANUAL_SUBSYSTEMS"); subsystems != "" {
		cfg.Monitoring.ManualSubsystems = splitCommaList(subsystems)
	}
	if interval := os.Getenv("MONITORING_INTERVAL"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			if secs < 60 {
				secs = 60
			}
			cfg.Monitoring.IntervalSeconds = secs
		}
	}
	if last := os.Getenv("LAST_UPDATE_AT"); last != "" {
		cfg.Monitoring.LastUpdateAt = last
	}
	if maxNews := os.Getenv("MAX_NEWS_COUNT"); maxNews != "" {
		if n, err := strconv.Atoi(maxNews); err == nil && n > 0 {
			cfg.Monitoring.MaxNewsCount = n
		}
	}
	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		cfg.Discord.BotToken = token
		cfg.Discord.Enabled = true
	}
	if channel := os.Getenv("DISCORD_CHANNEL_ID"); channel != "" {
		cfg.Discord.ChannelID = channel
	}
	if webhook := os.Getenv("FEISHU_WEBHOOK_URL"); webhook != "" {
		cfg.Feishu.WebhookURL = webhook
		cfg.Feishu.Enabled = true
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}

// Validate fails fast when a required setting for an enabled platform is
// missing.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set DATABASE_URL)")
	}
	if c.Discord.Enabled {
		if c.Discord.BotToken == "" {
			return fmt.Errorf("discord enabled but bot token missing (set DISCORD_BOT_TOKEN)")
		}
		if c.Discord.ChannelID == "" {
			return fmt.Errorf("discord enabled but channel id missing (set DISCORD_CHANNEL_ID)")
		}
	}
	if c.Feishu.Enabled && c.Feishu.WebhookURL == "" {
		return fmt.Errorf("feishu enabled but webhook url missing (set FEISHU_WEBHOOK_URL)")
	}
	return nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
