// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	GatewayBaseURL string `envconfig:"GATEWAY_BASE_URL" required:"true"`
	GatewayAPIKey  string `envconfig:"GATEWAY_API_KEY" required:"true"`
	OrdersBaseURL  string `envconfig:"ORDERS_BASE_URL" required:"true"`
	ViaCEPBaseURL  string `envconfig:"VIACEP_BASE_URL" default:"https://viacep.com.br/ws"`

	RedisAddr    string   `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"checkout"`
	MigrationsDir    string `envconfig:"MIGRATIONS_DIR" default:"internal/repository/migrations"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
