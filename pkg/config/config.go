package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is shared by every service; each one reads the sections it needs.
type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Services Services `yaml:"services"`
	Breaker  Breaker  `yaml:"breaker"`
	Limiter  Limiter  `yaml:"limiter"`
	JWT      JWT      `yaml:"jwt"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"PORT" env-default:":3000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ProxyTimeout time.Duration `yaml:"proxy_timeout" env:"HTTP_PROXY_TIMEOUT" env-default:"8s"`
}

type PG struct {
	URL            string `yaml:"url" env:"DB_URL"`
	MaxConns       int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	MinConns       int32  `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

// Group returns GroupID, or fallback when it is not configured.
func (k Kafka) Group(fallback string) string {
	if k.GroupID == "" {
		return fallback
	}
	return k.GroupID
}

type Services struct {
	UserURL    string `yaml:"user_url" env:"USER_SERVICE_URL" env-default:"http://localhost:3001"`
	ProductURL string `yaml:"product_url" env:"PRODUCT_SERVICE_URL" env-default:"http://localhost:3002"`
	OrderURL   string `yaml:"order_url" env:"ORDER_SERVICE_URL" env-default:"http://localhost:3003"`
}

type Breaker struct {
	MinRequests  uint32        `yaml:"min_requests" env:"BREAKER_MIN_REQUESTS" env-default:"10"`
	FailureRatio float64       `yaml:"failure_ratio" env:"BREAKER_FAILURE_RATIO" env-default:"0.5"`
	Interval     time.Duration `yaml:"interval" env:"BREAKER_INTERVAL" env-default:"60s"`
	CoolDown     time.Duration `yaml:"cool_down" env:"BREAKER_COOL_DOWN" env-default:"30s"`
	CallTimeout  time.Duration `yaml:"call_timeout" env:"DOWNSTREAM_CALL_TIMEOUT" env-default:"5s"`
	MaxRetries   uint          `yaml:"max_retries" env:"DOWNSTREAM_MAX_RETRIES" env-default:"2"`
}

type Limiter struct {
	Max        int           `yaml:"max" env:"LIMITER_MAX" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env:"LIMITER_EXPIRATION" env-default:"5s"`
}

type JWT struct {
	Secret string `yaml:"secret" env:"JWT_SECRET"`
}

// Load reads CONFIG_PATH when the file exists and falls back to the
// environment otherwise. Environment variables win over file values.
func Load() (*Config, error) {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	var cfg Config
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", configPath, err)
		}

		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading env: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	return cfg
}
