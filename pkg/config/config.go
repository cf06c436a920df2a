package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the runtime configuration shared by the Accio services
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	AutoMigrate bool
	LockTimeout time.Duration

	RabbitMQURL   string
	RelayBatch    int
	RelayInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTPublicKeyPath string
	JWTIssuer        string

	WatchInterval time.Duration

	S3     S3Config
	Vision VisionConfig
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
}

type VisionConfig struct {
	Endpoint string
	Model    string
	APIKey   string
}

// Load reads .env.local and .env (local overrides), then flags, then
// ACCIO_* environment variables. Flags win over the environment.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("accio", pflag.ContinueOnError)
	fs.String("http-addr", ":8080", "HTTP listen address")
	fs.String("db-url", "", "Postgres connection URL")
	fs.Bool("auto-migrate", false, "apply embedded migrations on start-up")
	fs.Duration("lock-timeout", 3*time.Second, "row lock wait limit")

	fs.String("rabbitmq-url", "", "AMQP connection URL")
	fs.Int("relay-batch", 10, "outbox relay batch size")
	fs.Duration("relay-interval", time.Second, "outbox relay polling interval")

	fs.String("redis-addr", "", "Redis address")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database")

	fs.String("jwt-public-key-path", "", "PEM public key of the identity provider")
	fs.String("jwt-issuer", "", "expected token issuer")

	fs.Duration("watch-interval", time.Second, "item subscription polling interval")

	fs.String("s3-endpoint", "", "S3 endpoint override")
	fs.String("s3-region", "us-east-1", "S3 region")
	fs.String("s3-bucket", "", "S3 bucket for item and profile photos")
	fs.String("s3-public-base-url", "", "public base URL for stored photos")
	fs.String("s3-access-key-id", "", "S3 access key id")
	fs.String("s3-secret-access-key", "", "S3 secret access key")

	fs.String("vision-endpoint", "", "image analysis API base URL, empty for the public Gemini API")
	fs.String("vision-model", "gemini-1.5-pro", "image analysis model")
	fs.String("vision-api-key", "", "image analysis API key")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix("ACCIO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &Config{
		HTTPAddr:      v.GetString("http-addr"),
		DatabaseURL:   v.GetString("db-url"),
		AutoMigrate:   v.GetBool("auto-migrate"),
		LockTimeout:   v.GetDuration("lock-timeout"),
		RabbitMQURL:   v.GetString("rabbitmq-url"),
		RelayBatch:    v.GetInt("relay-batch"),
		RelayInterval: v.GetDuration("relay-interval"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),

		JWTPublicKeyPath: v.GetString("jwt-public-key-path"),
		JWTIssuer:        v.GetString("jwt-issuer"),
		WatchInterval:    v.GetDuration("watch-interval"),

		S3: S3Config{
			Endpoint:        v.GetString("s3-endpoint"),
			Region:          v.GetString("s3-region"),
			Bucket:          v.GetString("s3-bucket"),
			PublicBaseURL:   v.GetString("s3-public-base-url"),
			AccessKeyID:     v.GetString("s3-access-key-id"),
			SecretAccessKey: v.GetString("s3-secret-access-key"),
		},
		Vision: VisionConfig{
			Endpoint: v.GetString("vision-endpoint"),
			Model:    v.GetString("vision-model"),
			APIKey:   v.GetString("vision-api-key"),
		},
	}, nil
}

// Validate reports settings every service needs
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("ACCIO_DB_URL is not set"))
	}
	if c.RabbitMQURL == "" {
		errs = append(errs, errors.New("ACCIO_RABBITMQ_URL is not set"))
	}
	if c.RelayBatch <= 0 {
		errs = append(errs, errors.New("relay batch must be positive"))
	}
	return errors.Join(errs...)
}
