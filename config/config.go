package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPPort           string        `mapstructure:"HTTP_PORT"`
	GRPCPort           string        `mapstructure:"GRPC_PORT"`
	DBHost             string        `mapstructure:"DB_HOST"`
	DBPort             string        `mapstructure:"DB_PORT"`
	DBUser             string        `mapstructure:"DB_USER"`
	DBPassword         string        `mapstructure:"DB_PASSWORD"`
	DBName             string        `mapstructure:"DB_NAME"`
	StoreDriver        string        `mapstructure:"STORE_DRIVER"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	CacheDriver        string        `mapstructure:"CACHE_DRIVER"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	AccessSecret       string        `mapstructure:"ACCESS_SECRET"`
	AllowedOrigins     string        `mapstructure:"ALLOWED_ORIGINS"`
	OrderedIndexes     string        `mapstructure:"ORDERED_INDEXES"`
	SendGridAPIKey     string        `mapstructure:"SENDGRID_API_KEY"`
	SMTPEmail          string        `mapstructure:"SMTP_EMAIL"`
	FrontendURL        string        `mapstructure:"FRONTEND_URL"`
	CacheSweepSchedule string        `mapstructure:"CACHE_SWEEP_SCHEDULE"`
	HealthSchedule     string        `mapstructure:"HEALTH_SCHEDULE"`
}

var keys = []string{
	"HTTP_PORT",
	"GRPC_PORT",
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
	"STORE_DRIVER",
	"REDIS_ADDR",
	"CACHE_DRIVER",
	"CACHE_TTL",
	"ACCESS_SECRET",
	"ALLOWED_ORIGINS",
	"ORDERED_INDEXES",
	"SENDGRID_API_KEY",
	"SMTP_EMAIL",
	"FRONTEND_URL",
	"CACHE_SWEEP_SCHEDULE",
	"HEALTH_SCHEDULE",
}

func LoadConfig(path string) (config Config, err error) {
	// .env только для локальной разработки
	if env := os.Getenv("GO_ENV"); env == "" || env == "development" {
		_ = godotenv.Load(path + "/.env")
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("HTTP_PORT", ":8080")
	v.SetDefault("GRPC_PORT", ":50051")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("CACHE_DRIVER", DriverRedis)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("ORDERED_INDEXES", "training_modules:order_index,ai_basics_videos:order_index")
	v.SetDefault("CACHE_SWEEP_SCHEDULE", "0 */1 * * * *")
	v.SetDefault("HEALTH_SCHEDULE", "*/15 * * * * *")

	v.AutomaticEnv()

	// Явно биндим переменные, чтобы Viper их видел без файла
	for _, k := range keys {
		if err = v.BindEnv(k); err != nil {
			return
		}
	}

	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.Validate()
	return
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.CacheDriver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver)
	}
	if c.AccessSecret == "" {
		return fmt.Errorf("ACCESS_SECRET is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// Indexes returns the declared ordered indexes as collection:field pairs.
func (c Config) Indexes() []string {
	return splitList(c.OrderedIndexes)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
