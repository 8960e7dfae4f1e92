package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Render    RenderConfig    `mapstructure:"render"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	WorkerPort     int    `mapstructure:"worker_port" validate:"omitempty,min=1,max=65535"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"min=1"`
	Mode           string `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"required"`
	User         string `mapstructure:"user" validate:"required"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	// URL empty selects the in-process broker.
	URL       string `mapstructure:"url"`
	PoolSize  int    `mapstructure:"pool_size"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type RenderConfig struct {
	Endpoint      string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PublicBaseURL string        `mapstructure:"public_base_url" validate:"required,url"`
	MaxFailures   int           `mapstructure:"max_failures"`
	OpenTimeout   time.Duration `mapstructure:"open_timeout"`
}

type ProvidersConfig struct {
	Order        []string       `mapstructure:"order" validate:"required,min=1,dive,oneof=postmark smtp webhook"`
	HealthPeriod time.Duration  `mapstructure:"health_period" validate:"required"`
	ProbeTimeout time.Duration  `mapstructure:"probe_timeout"`
	Postmark     PostmarkConfig `mapstructure:"postmark"`
	SMTP         SMTPConfig     `mapstructure:"smtp"`
	Webhook      WebhookConfig  `mapstructure:"webhook"`
}

type PostmarkConfig struct {
	ServerToken  string `mapstructure:"server_token"`
	AccountToken string `mapstructure:"account_token"`
	From         string `mapstructure:"from" validate:"omitempty,email"`
	Stream       string `mapstructure:"stream"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DeliveryConfig struct {
	AttachPDF     bool          `mapstructure:"attach_pdf"`
	Topic         string        `mapstructure:"topic"`
	Subject       string        `mapstructure:"subject"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"min=0"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required,min=16"`
	Issuer string `mapstructure:"issuer"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// secrets are read straight from the environment and win over the file.
type secrets struct {
	PostmarkServerToken  string `envconfig:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	SMTPPassword         string `envconfig:"SMTP_PASSWORD"`
	RenderPassword       string `envconfig:"RENDER_PASSWORD"`
	WebhookSecret        string `envconfig:"WEBHOOK_SECRET"`
	JWTSecret            string `envconfig:"JWT_SECRET"`
	DatabasePassword     string `envconfig:"DB_PASSWORD"`
	S3AccessKeyID        string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey    string `envconfig:"S3_SECRET_ACCESS_KEY"`
}

const envPrefix = "CERTIFY"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_port", 8081)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "certify:")
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("render.max_failures", 5)
	v.SetDefault("render.open_timeout", 30*time.Second)
	v.SetDefault("providers.order", []string{"postmark", "smtp", "webhook"})
	v.SetDefault("providers.health_period", time.Minute)
	v.SetDefault("providers.probe_timeout", 5*time.Second)
	v.SetDefault("providers.postmark.stream", "outbound")
	v.SetDefault("providers.smtp.port", 587)
	v.SetDefault("providers.webhook.timeout", 10*time.Second)
	v.SetDefault("delivery.attach_pdf", true)
	v.SetDefault("delivery.topic", "certificates.delivery")
	v.SetDefault("delivery.subject", "Your certificate")
	v.SetDefault("delivery.retry_attempts", 3)
	v.SetDefault("delivery.retry_delay", 5*time.Second)
	v.SetDefault("delivery.send_timeout", 30*time.Second)
	v.SetDefault("s3.prefix", "certificates/")
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// LoadConfig reads config.yaml from path (or ./, ./config when empty), a local
// .env file, and CERTIFY_* environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applySecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets() error {
	var s secrets
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return fmt.Errorf("failed to read secrets: %w", err)
	}
	override(&c.Providers.Postmark.ServerToken, s.PostmarkServerToken)
	override(&c.Providers.Postmark.AccountToken, s.PostmarkAccountToken)
	override(&c.Providers.SMTP.Password, s.SMTPPassword)
	override(&c.Render.Password, s.RenderPassword)
	override(&c.Providers.Webhook.Secret, s.WebhookSecret)
	override(&c.JWT.Secret, s.JWTSecret)
	override(&c.Database.Password, s.DatabasePassword)
	override(&c.S3.AccessKeyID, s.S3AccessKeyID)
	override(&c.S3.SecretAccessKey, s.S3SecretAccessKey)
	return nil
}

func override(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
