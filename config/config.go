package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Short link engine
	Links LinksConfig `mapstructure:"links"`

	// Blob storage
	Storage StorageConfig `mapstructure:"storage"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// BodyLimit caps POST bodies in bytes. Viewer states can be large.
	BodyLimit int `mapstructure:"body_limit"`
	// RateLimit is the number of POST /shortng calls allowed per client and window.
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type LinksConfig struct {
	Bucket           string        `mapstructure:"bucket"`
	PasswordBucket   string        `mapstructure:"password_bucket"`
	Suffix           string        `mapstructure:"suffix"`
	ViewerURL        string        `mapstructure:"viewer_url"`
	ShortenerURL     string        `mapstructure:"shortener_url"`
	PublicHost       string        `mapstructure:"public_host"`
	EditWindow       time.Duration `mapstructure:"edit_window"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	JournalRetention time.Duration `mapstructure:"journal_retention"`
}

type StorageConfig struct {
	Backend string    `mapstructure:"backend"`
	GCS     GCSConfig `mapstructure:"gcs"`
	S3      S3Config  `mapstructure:"s3"`
}

type GCSConfig struct {
	// CredentialsJSON holds the service account key itself, not a path.
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type PostgresConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Port              int           `mapstructure:"port"`
	SSLMode           string        `mapstructure:"sslmode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendGCS, BackendS3, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Links.Bucket == "" || c.Links.PasswordBucket == "" {
		return fmt.Errorf("config: links.bucket and links.password_bucket are required")
	}
	if c.Links.Bucket == c.Links.PasswordBucket {
		return fmt.Errorf("config: password bucket must differ from link bucket %q", c.Links.Bucket)
	}
	if c.Links.EditWindow <= 0 {
		return fmt.Errorf("config: links.edit_window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.body_limit", 64<<20)
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("server.rate_window", time.Minute)

	v.SetDefault("links.bucket", "flyem-user-links")
	v.SetDefault("links.password_bucket", "flyem-user-links-private")
	v.SetDefault("links.suffix", ".json")
	v.SetDefault("links.viewer_url", "https://clio-ng.janelia.org/")
	v.SetDefault("links.shortener_url", "https://shortng-bmcp5imp6q-uc.a.run.app/shortener.html")
	v.SetDefault("links.public_host", "https://storage.googleapis.com")
	v.SetDefault("links.edit_window", 7*24*time.Hour)
	v.SetDefault("links.fetch_timeout", 10*time.Second)
	v.SetDefault("links.journal_retention", 90*24*time.Hour)

	v.SetDefault("storage.backend", BackendGCS)
	v.SetDefault("storage.gcs.credentials_json", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.port", 6379)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.port", 4222)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")

	// Links
	v.BindEnv("links.bucket", "SHORTNG_BUCKET")
	v.BindEnv("links.password_bucket", "SHORTNG_PASSWORD_BUCKET")
	v.BindEnv("links.viewer_url", "CLIO_URL")
	v.BindEnv("links.shortener_url", "SHORTENER_URL")

	// Storage
	v.BindEnv("storage.backend", "STORAGE_BACKEND")
	v.BindEnv("storage.gcs.credentials_json", "GOOGLE_APPLICATION_CREDENTIALS_CONTENTS")
	v.BindEnv("storage.s3.region", "AWS_REGION")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.access_key_id", "AWS_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "AWS_SECRET_ACCESS_KEY")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
