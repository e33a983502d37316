package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	LogLevel    string            `mapstructure:"log_level"`
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
	MongoDB     MongoDBConfig     `mapstructure:"mongodb"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Replay      ReplayConfig      `mapstructure:"replay"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
}

type ServerConfig struct {
	Port int
	Host string
}

type MonitoringConfig struct {
	PrometheusPort int    `mapstructure:"prometheusPort"`
	MetricsPath    string `mapstructure:"metricsPath"`
}

type MongoDBConfig struct {
	URI                   string `mapstructure:"uri"`
	Database              string `mapstructure:"database"`
	IdempotencyCollection string `mapstructure:"idempotencyCollection"`
	DeliveryCollection    string `mapstructure:"deliveryCollection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	QueueName string `mapstructure:"queueName"`
}

// IdempotencyConfig selects the store backend and the retention window.
type IdempotencyConfig struct {
	Backend string        `mapstructure:"backend"` // mongo, redis or memory
	TTL     time.Duration `mapstructure:"ttl"`
}

// ReplayConfig bounds the accepted clock skew for timestamped signatures.
type ReplayConfig struct {
	MaxAgeSeconds        int64 `mapstructure:"maxAgeSeconds"`
	MaxFutureSkewSeconds int64 `mapstructure:"maxFutureSkewSeconds"`
}

// ProviderConfig holds one provider's verification material. FailOpen
// controls behavior when the idempotency store is unreachable; it must stay
// false for payment providers.
type ProviderConfig struct {
	Secret     string `mapstructure:"secret"`
	WebhookURL string `mapstructure:"webhookURL"`
	FailOpen   bool   `mapstructure:"failOpen"`
}

type ProvidersConfig struct {
	Stripe  ProviderConfig `mapstructure:"stripe"`
	Twilio  ProviderConfig `mapstructure:"twilio"`
	Generic ProviderConfig `mapstructure:"generic"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("monitoring.prometheusPort", 9090)
	viper.SetDefault("monitoring.metricsPath", "/metrics")
	viper.SetDefault("idempotency.backend", "mongo")
	viper.SetDefault("idempotency.ttl", 48*time.Hour)
	viper.SetDefault("replay.maxAgeSeconds", 300)
	viper.SetDefault("replay.maxFutureSkewSeconds", 60)
	viper.SetDefault("mongodb.idempotencyCollection", "idempotency_records")
	viper.SetDefault("mongodb.deliveryCollection", "webhook_deliveries")
	viper.SetDefault("providers.stripe.failOpen", false)
	viper.SetDefault("providers.twilio.failOpen", true)
	viper.SetDefault("providers.generic.failOpen", true)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if port := os.Getenv("APP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if promPort := os.Getenv("PROMETHEUS_PORT"); promPort != "" {
		if p, err := strconv.Atoi(promPort); err == nil {
			cfg.Monitoring.PrometheusPort = p
		}
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.MongoDB.URI = uri
	}
	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		cfg.MongoDB.Database = db
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// Support both CLOUDAMQP_URL and RABBITMQ_URI for backwards compatibility
	if cloudamqpURL := os.Getenv("CLOUDAMQP_URL"); cloudamqpURL != "" {
		cfg.RabbitMQ.URL = cloudamqpURL
	} else if rabbitURL := os.Getenv("RABBITMQ_URI"); rabbitURL != "" {
		cfg.RabbitMQ.URL = rabbitURL
	}

	if exchange := os.Getenv("RABBITMQ_EXCHANGE"); exchange != "" {
		cfg.RabbitMQ.Exchange = exchange
	}
	if queue := os.Getenv("RABBITMQ_QUEUE"); queue != "" {
		cfg.RabbitMQ.QueueName = queue
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if backend := os.Getenv("IDEMPOTENCY_BACKEND"); backend != "" {
		cfg.Idempotency.Backend = backend
	}
	if ttl := os.Getenv("IDEMPOTENCY_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Idempotency.TTL = d
		}
	}

	// Secrets come from the environment in every deployed setup; the yaml
	// values exist for local development only.
	if secret := os.Getenv("STRIPE_WEBHOOK_SECRET"); secret != "" {
		cfg.Providers.Stripe.Secret = secret
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		cfg.Providers.Twilio.Secret = token
	}
	if url := os.Getenv("TWILIO_WEBHOOK_URL"); url != "" {
		cfg.Providers.Twilio.WebhookURL = url
	}
	if secret := os.Getenv("GENERIC_WEBHOOK_SECRET"); secret != "" {
		cfg.Providers.Generic.Secret = secret
	}

	return &cfg, nil
}
