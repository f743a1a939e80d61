package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	ProductDB ProductDBConfig
	Security  SecurityConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"productcatalog-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds list cache settings.
type CacheConfig struct {
	Type         string        `envconfig:"CACHE_TYPE" default:"redis"` // redis or memory
	ListTTL      time.Duration `envconfig:"CACHE_LIST_TTL" default:"7m"`
	Codec        string        `envconfig:"CACHE_CODEC" default:"json"` // json or msgpack
	MemoryMaxMB  int64         `envconfig:"CACHE_MEMORY_MAX_MB" default:"64"`
	WarmInterval time.Duration `envconfig:"CACHE_WARM_INTERVAL" default:"0s"`

	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:""`
}

// ProductDBConfig holds product database settings.
type ProductDBConfig struct {
	Type string `envconfig:"PRODUCT_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or mongodb
	Path string `envconfig:"PRODUCT_DB_PATH" default:"./data/catalog.db"`
	Seed bool   `envconfig:"PRODUCT_DB_SEED" default:"false"`
	// LogSQL logs every generated statement.
	LogSQL bool `envconfig:"PRODUCT_DB_LOG_SQL" default:"false"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"PRODUCT_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"PRODUCT_DB_PORT" default:"0"`
	Name     string `envconfig:"PRODUCT_DB_NAME" default:"catalog"`
	User     string `envconfig:"PRODUCT_DB_USER" default:""`
	Password string `envconfig:"PRODUCT_DB_PASS" default:""`
	SSLMode  string `envconfig:"PRODUCT_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"catalog"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"products"`
}

// SecurityConfig holds request guarding settings.
type SecurityConfig struct {
	// APIKeys protect the admin routes. Empty leaves them open.
	APIKeys        []string `envconfig:"API_KEYS" default:""`
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"20"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DBPort returns the configured port or the default for the backend.
func (p *ProductDBConfig) DBPort() int {
	if p.Port != 0 {
		return p.Port
	}
	if p.Type == "mysql" {
		return 3306
	}
	return 5432
}

// DBUser returns the configured user or the default for the backend.
func (p *ProductDBConfig) DBUser() string {
	if p.User != "" {
		return p.User
	}
	if p.Type == "mysql" {
		return "root"
	}
	return "postgres"
}

// PostgresDSN returns the PostgreSQL connection string.
func (p *ProductDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.DBUser(), p.Password, p.Host, p.DBPort(), p.Name, p.SSLMode)
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	c.Cache.Type = strings.ToLower(c.Cache.Type)
	switch c.Cache.Type {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_TYPE must be redis or memory, got %q", c.Cache.Type)
	}

	c.ProductDB.Type = strings.ToLower(c.ProductDB.Type)
	switch c.ProductDB.Type {
	case "sqlite", "postgres", "mysql", "mongodb":
	case "postgresql":
		c.ProductDB.Type = "postgres"
	case "mongo":
		c.ProductDB.Type = "mongodb"
	default:
		return fmt.Errorf("PRODUCT_DB_TYPE must be sqlite, postgres, mysql or mongodb, got %q", c.ProductDB.Type)
	}

	if c.Cache.ListTTL <= 0 {
		return fmt.Errorf("CACHE_LIST_TTL must be positive, got %s", c.Cache.ListTTL)
	}
	if c.Cache.WarmInterval < 0 {
		return fmt.Errorf("CACHE_WARM_INTERVAL cannot be negative, got %s", c.Cache.WarmInterval)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
