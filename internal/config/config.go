package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type PaymentConfig struct {
	Env          string `yaml:"env" env:"ENV" env-default:"local"`
	GRPCServer   `yaml:"grpc_server"`
	HTTPServer   `yaml:"http_server"`
	PaymentDB    `yaml:"payment_db"`
	LogConfig    `yaml:"log_config"`
	KafkaService `yaml:"kafka-service"`
	Redis        `yaml:"redis"`
	Payments     `yaml:"payments"`
	Currency     `yaml:"currency"`
	Webhooks     `yaml:"webhooks"`
	Providers    `yaml:"providers"`
}

type GRPCServer struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

type HTTPServer struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	// CIDRs or addresses of proxies allowed to set X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies" env:"HTTP_TRUSTED_PROXIES" env-separator:","`
}

type PaymentDB struct {
	Dsn            string `yaml:"dsn" env:"PAYMENT_DB_DSN"`
	MigrationsPath string `yaml:"migrations_path" env:"PAYMENT_DB_MIGRATIONS" env-default:"migrations"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogOutput string `yaml:"log_output" env:"LOG_OUTPUT" env-default:"stdout"`
}

type KafkaService struct {
	Host       string `yaml:"host" env:"KAFKA_HOST"`
	Port       string `yaml:"port" env:"KAFKA_PORT" env-default:"9092"`
	Topic      string `yaml:"topic" env:"KAFKA_TOPIC" env-default:"payment-events"`
	Username   string `yaml:"username" env:"KAFKA_USERNAME"`
	Password   string `yaml:"password" env:"KAFKA_PASSWORD"`
	Mechanism  string `yaml:"mechanism" env:"KAFKA_MECHANISM"`
	TLSEnabled bool   `yaml:"tls_enabled" env:"KAFKA_TLS_ENABLED"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type Payments struct {
	IntentTTL       time.Duration `yaml:"intent_ttl" env:"PAYMENT_INTENT_TTL" env-default:"30m"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" env:"PAYMENT_PROVIDER_TIMEOUT" env-default:"15s"`
	// SettlementGrace is how long a processing intent may wait for its webhook
	// after expiry before the sweeper fails it. Zero disables the sweeper.
	SettlementGrace time.Duration `yaml:"settlement_grace" env:"PAYMENT_SETTLEMENT_GRACE" env-default:"24h"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env:"PAYMENT_SWEEP_INTERVAL" env-default:"5m"`
}

type Currency struct {
	Supported       []string      `yaml:"supported" env:"CURRENCY_SUPPORTED" env-default:"USD,EUR,XAF"`
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"CURRENCY_CACHE_TTL" env-default:"1h"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"CURRENCY_REFRESH_INTERVAL" env-default:"0s"`
	RefreshURL      string        `yaml:"refresh_url" env:"CURRENCY_REFRESH_URL" env-default:"https://api.frankfurter.app"`
}

type Webhooks struct {
	FailureLimit  int64         `yaml:"failure_limit" env:"WEBHOOK_FAILURE_LIMIT" env-default:"5"`
	FailureWindow time.Duration `yaml:"failure_window" env:"WEBHOOK_FAILURE_WINDOW" env-default:"10m"`
}

type Providers struct {
	Flutterwave ProviderConfig `yaml:"flutterwave" env-prefix:"FLUTTERWAVE_"`
	Paystack    ProviderConfig `yaml:"paystack" env-prefix:"PAYSTACK_"`
	Stripe      ProviderConfig `yaml:"stripe" env-prefix:"STRIPE_"`
	MobileMoney ProviderConfig `yaml:"mobile_money" env-prefix:"MOBILE_MONEY_"`
}

// ProviderConfig is inactive unless Enabled is set explicitly.
type ProviderConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	BaseURL       string `yaml:"base_url" env:"BASE_URL"`
	PublicKey     string `yaml:"public_key" env:"PUBLIC_KEY"`
	SecretKey     string `yaml:"secret_key" env:"SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
}

func Load(configPath string) (*PaymentConfig, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	var cfg PaymentConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if cfg.Payments.IntentTTL <= 0 {
		return nil, fmt.Errorf("payments.intent_ttl must be positive")
	}
	if cfg.Payments.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("payments.provider_timeout must be positive")
	}
	if len(cfg.Currency.Supported) == 0 {
		return nil, fmt.Errorf("currency.supported must not be empty")
	}

	return &cfg, nil
}

func MustLoad() *PaymentConfig {
	configPath := os.Getenv("PAYMENT_CONFIG_PATH")
	if configPath == "" {
		log.Fatalf("PAYMENT_CONFIG_PATH was not found\n")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("%v\n", err)
	}

	return cfg
}
