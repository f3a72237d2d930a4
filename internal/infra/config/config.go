package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App      AppSettings      `mapstructure:"app"`
	Postgres PostgresSettings `mapstructure:"postgres"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Kafka    KafkaSettings    `mapstructure:"kafka"`
	Policy   PolicySettings   `mapstructure:"policy"`
	Bcrypt   BcryptSettings   `mapstructure:"bcrypt"`
	Breach   BreachSettings   `mapstructure:"breach"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection backing the breach-range cache.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the Kafka producer for domain events.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// PolicySettings configures password strength requirements.
type PolicySettings struct {
	MinLength          int    `mapstructure:"min_length"`
	MaxLength          int    `mapstructure:"max_length"`
	AllowAnyCharacters bool   `mapstructure:"allow_any_characters"`
	Digits             string `mapstructure:"digits"`
	Lowercase          string `mapstructure:"lowercase"`
	Uppercase          string `mapstructure:"uppercase"`
	Symbols            string `mapstructure:"symbols"`
	MinStrengthScore   int    `mapstructure:"min_strength_score"`
}

// BcryptSettings configures password hashing and cost migration.
type BcryptSettings struct {
	Cost           int    `mapstructure:"cost"`
	Version        string `mapstructure:"version"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	DisableRehash  bool   `mapstructure:"disable_rehash"`
}

// BreachSettings configures the best-effort breach corpus lookup.
type BreachSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHCORE")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"policy.min_length",
		"policy.max_length",
		"policy.allow_any_characters",
		"policy.digits",
		"policy.lowercase",
		"policy.uppercase",
		"policy.symbols",
		"policy.min_strength_score",
		"bcrypt.cost",
		"bcrypt.version",
		"bcrypt.max_concurrency",
		"bcrypt.disable_rehash",
		"breach.enabled",
		"breach.endpoint",
		"breach.timeout",
		"breach.cache_ttl",
		"breach.max_concurrent",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authcore")
	v.SetDefault("app.env", "development")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "authcore")
	v.SetDefault("postgres.password", "authcore_password")
	v.SetDefault("postgres.database", "authcore")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("policy.min_length", 6)
	v.SetDefault("policy.max_length", 72)
	v.SetDefault("policy.allow_any_characters", true)
	v.SetDefault("policy.digits", "1234567890")
	v.SetDefault("policy.lowercase", "abcdefghijklmnopqrstuvwxyz")
	v.SetDefault("policy.uppercase", "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	v.SetDefault("policy.symbols", "@#$%^&*()-_=+[]{};:,.<>/?!")
	v.SetDefault("policy.min_strength_score", 0)

	v.SetDefault("bcrypt.cost", 12)
	v.SetDefault("bcrypt.version", "2a")
	v.SetDefault("bcrypt.max_concurrency", 8)
	v.SetDefault("bcrypt.disable_rehash", false)

	v.SetDefault("breach.enabled", false)
	v.SetDefault("breach.endpoint", "https://api.pwnedpasswords.com/range")
	v.SetDefault("breach.timeout", "5s")
	v.SetDefault("breach.cache_ttl", "12h")
	v.SetDefault("breach.max_concurrent", 4)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTHCORE_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
