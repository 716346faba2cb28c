package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers supported by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the runtime configuration of the service.
type Config struct {
	AppPort        string        `validate:"required"`
	BaseURL        string        `validate:"required,url"`
	StoreDriver    string        `validate:"oneof=mongo postgres sqlite"`
	StoreTimeout   time.Duration `validate:"gt=0"`
	MongoURI       string        `validate:"required_if=StoreDriver mongo"`
	MongoDatabase  string        `validate:"required_if=StoreDriver mongo"`
	DatabaseDSN    string        `validate:"required_unless=StoreDriver mongo"`
	JWTSecret      string        `validate:"required"`
	JWTTTL         time.Duration `validate:"gt=0"`
	UploadDir      string        `validate:"required"`
	MaxUploadSize  int64         `validate:"gt=0"`
	RabbitMQURL    string
	RabbitMQQueue  string `validate:"required"`
	RabbitConsume  bool
	LogLevel       string `validate:"oneof=debug info warn error"`
	MetricsEnabled bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":3000")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("STORE_DRIVER", DriverMongo)
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "toko")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", 5*1024*1024)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "product_events")
	v.SetDefault("RABBITMQ_CONSUME", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ENABLED", true)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from v, falling back to the defaults, and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		BaseURL:        strings.TrimRight(v.GetString("BASE_URL"), "/"),
		StoreDriver:    strings.ToLower(v.GetString("STORE_DRIVER")),
		StoreTimeout:   v.GetDuration("STORE_TIMEOUT"),
		MongoURI:       v.GetString("MONGO_URI"),
		MongoDatabase:  v.GetString("MONGO_DATABASE"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTTTL:         v.GetDuration("JWT_TTL"),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		MaxUploadSize:  v.GetInt64("MAX_UPLOAD_SIZE"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:  v.GetString("RABBITMQ_QUEUE"),
		RabbitConsume:  v.GetBool("RABBITMQ_CONSUME"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
