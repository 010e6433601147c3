package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Discogs   DiscogsConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Path string
}

type DiscogsConfig struct {
	BaseURL   string
	Key       string
	Secret    string
	UserAgent string
	// Milliseconds between consecutive API calls. Discogs allows 60
	// authenticated requests per minute; 1100ms keeps us under it.
	RequestIntervalMS int
}

type RateLimitConfig struct {
	RecommendationsPerMin int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.path", "spinly.db")
	viper.SetDefault("discogs.base_url", "https://api.discogs.com")
	viper.SetDefault("discogs.key", "")
	viper.SetDefault("discogs.secret", "")
	viper.SetDefault("discogs.user_agent", "SpinlyApp/1.0")
	viper.SetDefault("discogs.request_interval_ms", 1100)
	viper.SetDefault("ratelimit.recommendations_per_min", 10)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Discogs: DiscogsConfig{
			BaseURL:           viper.GetString("discogs.base_url"),
			Key:               viper.GetString("discogs.key"),
			Secret:            viper.GetString("discogs.secret"),
			UserAgent:         viper.GetString("discogs.user_agent"),
			RequestIntervalMS: viper.GetInt("discogs.request_interval_ms"),
		},
		RateLimit: RateLimitConfig{
			RecommendationsPerMin: viper.GetInt("ratelimit.recommendations_per_min"),
		},
	}

	return cfg, nil
}
