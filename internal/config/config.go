package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Feed      FeedConfig
	Discord   DiscordConfig
	Checker   CheckerConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// FeedConfig configures the upstream beatmap feed (osu! v1 API).
type FeedConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DiscordConfig configures the delivery channel. OwnerID gates admin commands.
type DiscordConfig struct {
	BotToken string
	APIBase  string
	OwnerID  string
	Timeout  time.Duration
}

// CheckerConfig configures the periodic check cycle. Backfill bounds the very
// first poll window when no cursor document exists yet.
type CheckerConfig struct {
	Schedule     string
	CycleTimeout time.Duration
	Backfill     time.Duration
	RunOnStart   bool
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	UseRedis      bool
	CheckCooldown time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5010")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "beatwatch")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("OSU_API_BASE", "https://osu.ppy.sh/api")
	viper.SetDefault("OSU_API_TIMEOUT", 30)
	viper.SetDefault("DISCORD_API_BASE", "https://discord.com/api/v10")
	viper.SetDefault("DISCORD_TIMEOUT", 15)
	viper.SetDefault("CHECK_SCHEDULE", "@every 10m")
	viper.SetDefault("CHECK_CYCLE_TIMEOUT", 120)
	viper.SetDefault("CHECK_BACKFILL_HOURS", 96)
	viper.SetDefault("CHECK_RUN_ON_START", true)
	viper.SetDefault("CHECK_COOLDOWN", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      getEnvOrPanic("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Feed: FeedConfig{
			BaseURL: viper.GetString("OSU_API_BASE"),
			APIKey:  viper.GetString("OSU_API_KEY"),
			Timeout: time.Duration(viper.GetInt("OSU_API_TIMEOUT")) * time.Second,
		},
		Discord: DiscordConfig{
			BotToken: viper.GetString("DISCORD_BOT_TOKEN"),
			APIBase:  viper.GetString("DISCORD_API_BASE"),
			OwnerID:  viper.GetString("DISCORD_OWNER_ID"),
			Timeout:  time.Duration(viper.GetInt("DISCORD_TIMEOUT")) * time.Second,
		},
		Checker: CheckerConfig{
			Schedule:     viper.GetString("CHECK_SCHEDULE"),
			CycleTimeout: time.Duration(viper.GetInt("CHECK_CYCLE_TIMEOUT")) * time.Second,
			Backfill:     time.Duration(viper.GetInt("CHECK_BACKFILL_HOURS")) * time.Hour,
			RunOnStart:   viper.GetBool("CHECK_RUN_ON_START"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			CheckCooldown: time.Duration(viper.GetInt("CHECK_COOLDOWN")) * time.Second,
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
	}
	if cfg.Feed.APIKey == "" {
		log.Println("WARNING: OSU_API_KEY is not set; feed requests will be rejected upstream")
	}

	return cfg, nil
}

func getEnvOrPanic(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("environment variable %s is required", key)
	}
	return v
}
