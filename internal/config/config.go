package config

import (
	"log"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Listing    ListingConfig    `mapstructure:"listing"`
	Expiration ExpirationConfig `mapstructure:"expiration"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	Stream         string        `mapstructure:"stream"`
	Subject        string        `mapstructure:"subject"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type ListingConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	StrictSortDir bool          `mapstructure:"strict_sort_dir"`
}

type ExpirationConfig struct {
	OlderThanDays int           `mapstructure:"older_than_days"`
	Interval      time.Duration `mapstructure:"interval"`
	FromStatuses  []string      `mapstructure:"from_statuses"`
	ToStatus      string        `mapstructure:"to_status"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DSN renders the MySQL connection string. Timestamps are read and written in UTC, and
// UPDATE reports matched rather than changed rows.
func (d DatabaseConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, d.Port)
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "listings")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.stream", "LISTINGS")
	v.SetDefault("nats.subject", "listing-status-changed")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("nats.ack_timeout", "10s")

	v.SetDefault("tracing.service_name", "listing-service")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.version", "dev")

	v.SetDefault("logger.level", "info")

	v.SetDefault("listing.cache_ttl", "10m")
	v.SetDefault("listing.strict_sort_dir", false)

	v.SetDefault("expiration.older_than_days", 14)
	v.SetDefault("expiration.interval", "0s")
	v.SetDefault("expiration.from_statuses", []string{"APPROVED", "ACTIVE"})
	v.SetDefault("expiration.to_status", "INACTIVE")
	v.SetDefault("expiration.timeout", "1m")

	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 10)
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".") // if its current directory
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	return config
}
