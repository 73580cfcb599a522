package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application settings. It is loaded once at startup and
// passed to services and gateways at construction; nothing reads the
// environment mid-request.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Commerce CommerceConfig
	App      AppConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig contains the unified Redis connection settings.
// Supported modes: single, sentinel, cluster. Redis is optional here; when
// no address is configured the stats cache is simply disabled.
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
}

// EmailConfig contains outbound email provider settings.
type EmailConfig struct {
	// Provider: "resend" or "noop". Noop logs instead of sending.
	Provider    string `mapstructure:"provider"`
	ResendKey   string `mapstructure:"resend_key"`
	FromAddress string `mapstructure:"from_address"`
}

// CommerceConfig contains the commerce platform Admin API settings.
type CommerceConfig struct {
	// Provider: "shopify" or "noop".
	Provider    string `mapstructure:"provider"`
	ShopDomain  string `mapstructure:"shop_domain"`
	AccessToken string `mapstructure:"access_token"`
	APIVersion  string `mapstructure:"api_version"`
}

// AppConfig contains discount-program settings.
type AppConfig struct {
	// FrontendBaseURL is the storefront origin used to build verification links.
	FrontendBaseURL string `mapstructure:"frontend_base_url"`
	AdminAPIKey     string `mapstructure:"admin_api_key"`
	TokenTTLHours   int    `mapstructure:"token_ttl_hours"`
	DiscountPercent int    `mapstructure:"discount_percent"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfigured reports whether any Redis address is set.
func (r *RedisConfig) RedisConfigured() bool {
	return len(r.Addrs) > 0 || r.Addr != ""
}

// Load reads configuration from an optional YAML file merged with explicitly
// bound environment variables.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // fresh instance, no global viper state

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)
	vip.SetDefault("email.provider", "resend")
	vip.SetDefault("commerce.provider", "shopify")
	vip.SetDefault("commerce.api_version", "2024-01")
	vip.SetDefault("app.token_ttl_hours", 24)
	vip.SetDefault("app.discount_percent", 15)

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.readtimeout", "SERVER_READTIMEOUT")
	vip.BindEnv("server.writetimeout", "SERVER_WRITETIMEOUT")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("email.provider", "EMAIL_PROVIDER")
	vip.BindEnv("email.resend_key", "RESEND_API_KEY")
	vip.BindEnv("email.from_address", "EMAIL_FROM_ADDRESS")

	vip.BindEnv("commerce.provider", "COMMERCE_PROVIDER")
	vip.BindEnv("commerce.shop_domain", "SHOPIFY_SHOP_DOMAIN")
	vip.BindEnv("commerce.access_token", "SHOPIFY_ACCESS_TOKEN")
	vip.BindEnv("commerce.api_version", "SHOPIFY_API_VERSION")

	vip.BindEnv("app.frontend_base_url", "FRONTEND_BASE_URL")
	vip.BindEnv("app.admin_api_key", "ADMIN_API_KEY")
	vip.BindEnv("app.token_ttl_hours", "TOKEN_TTL_HOURS")
	vip.BindEnv("app.discount_percent", "DISCOUNT_PERCENT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, relying on environment variables/defaults.", configPath)
			} else {
				log.Printf("Warning: failed to read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Configured: %t", cfg.Redis.RedisConfigured())
		log.Printf("Email Provider: %s", cfg.Email.Provider)
		log.Printf("Commerce Provider: %s", cfg.Commerce.Provider)
		log.Printf("Frontend Base URL: %s", cfg.App.FrontendBaseURL)
		log.Printf("Admin API Key Set: %t", cfg.App.AdminAPIKey != "")
		log.Printf("Token TTL Hours: %d", cfg.App.TokenTTLHours)
		log.Printf("Discount Percent: %d", cfg.App.DiscountPercent)
		log.Printf("----------------------------")
	}

	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.App.AdminAPIKey == "" {
		return nil, fmt.Errorf("admin API key is required (check ADMIN_API_KEY env var)")
	}
	if cfg.App.FrontendBaseURL == "" {
		return nil, fmt.Errorf("frontend base URL is required (check FRONTEND_BASE_URL env var)")
	}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendKey == "" {
		return nil, fmt.Errorf("resend API key is required when email provider is resend (check RESEND_API_KEY env var)")
	}
	if cfg.Commerce.Provider == "shopify" && (cfg.Commerce.ShopDomain == "" || cfg.Commerce.AccessToken == "") {
		return nil, fmt.Errorf("shopify shop domain and access token are required when commerce provider is shopify (check SHOPIFY_SHOP_DOMAIN, SHOPIFY_ACCESS_TOKEN env vars)")
	}

	return &cfg, nil
}
