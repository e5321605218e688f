// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Steam    SteamConfig    `mapstructure:"steam"`
	Wiki     WikiConfig     `mapstructure:"wiki"`
	Party    PartyConfig    `mapstructure:"party"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	PublicURL string `mapstructure:"public_url"`
	StaticDir string `mapstructure:"static_dir"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DiscordConfig holds Discord application credentials.
type DiscordConfig struct {
	AppID        string `mapstructure:"app_id"`
	PublicKey    string `mapstructure:"public_key"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BotToken     string `mapstructure:"bot_token"`
	APIBase      string `mapstructure:"api_base"`
}

// SteamConfig holds Steam Web API configuration.
type SteamConfig struct {
	APIKey  string `mapstructure:"api_key"`
	APIBase string `mapstructure:"api_base"`
}

// WikiConfig holds PCGamingWiki API configuration.
type WikiConfig struct {
	APIBase   string `mapstructure:"api_base"`
	CacheSize int    `mapstructure:"cache_size"`
}

// PartyConfig holds party lifecycle configuration.
type PartyConfig struct {
	MaxLobbySize   int           `mapstructure:"max_lobby_size"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// RedirectURL returns the OAuth2 redirect URL served by this process.
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.Server.PublicURL, "/") + "/api/auth/discord/redirect"
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., DISCORD_BOT_TOKEN, DATABASE_HOST, STEAM_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Party.MaxLobbySize < 1 {
		return nil, fmt.Errorf("party.max_lobby_size must be positive, got %d", cfg.Party.MaxLobbySize)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.public_url", "http://localhost:3000")
	v.SetDefault("server.static_dir", "public")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "partybot")
	v.SetDefault("database.name", "partybot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// External API defaults
	v.SetDefault("discord.api_base", "https://discord.com/api/v10")
	v.SetDefault("steam.api_base", "https://api.steampowered.com")
	v.SetDefault("wiki.api_base", "https://www.pcgamingwiki.com/w/api.php")
	v.SetDefault("wiki.cache_size", 1024)

	// Party defaults
	// Interaction tokens stay editable for ~15 minutes; stale parties are
	// reaped on the same window.
	v.SetDefault("party.max_lobby_size", 4)
	v.SetDefault("party.stale_after", "15m")
	v.SetDefault("party.resolve_timeout", "60s")
	v.SetDefault("party.sweep_interval", "24h")
}
