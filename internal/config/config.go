package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"proviant/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Exports    ExportConfig     `yaml:"exports"`
	Backup     BackupConfig     `yaml:"backup"`
	Google     GoogleConfig     `yaml:"google"`
	FatSecret  FatSecretConfig  `yaml:"fatsecret"`
	Bot        BotConfig        `yaml:"bot"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken   string `yaml:"bot_token"`
	WebhookURL string `yaml:"webhook_url"`
	Debug      bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SessionConfig управляет хранением состояния диалога и слота активного
// пользователя.
type SessionConfig struct {
	TTLSeconds   int    `yaml:"ttl_seconds"`
	FallbackPath string `yaml:"fallback_path"`
}

// AlertsConfig параметры планирования и доставки уведомлений о сроках.
type AlertsConfig struct {
	HorizonDays  int     `yaml:"horizon_days"`
	DeliveryHour int     `yaml:"delivery_hour"`
	PollInterval string  `yaml:"poll_interval"`
	MaxAttempts  int     `yaml:"max_attempts"`
	SendRPS      float64 `yaml:"send_rps"`
	SendBurst    int     `yaml:"send_burst"`
}

// RefreshConfig параметры фонового пересчёта уведомлений.
type RefreshConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type GoogleConfig struct {
	Enabled                bool   `yaml:"enabled"`
	GoogleCredentialsFile  string `yaml:"credentials_file"`
	InventorySpreadsheetID string `yaml:"inventory_spreadsheet_id"`
}

// FatSecretConfig доступ к каталогу продуктов FatSecret.
type FatSecretConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type BotConfig struct {
	PaginationSize    int     `yaml:"pagination_size"`
	RateLimitMessages int     `yaml:"rate_limit_messages"`
	RateLimitWindow   int     `yaml:"rate_limit_window"`
	Admins            []int64 `yaml:"admins"`
	Blacklist         []int64 `yaml:"blacklist"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен, переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Alerts.DeliveryHour < 0 || c.Alerts.DeliveryHour > 23 {
		return fmt.Errorf("alerts delivery hour %d is out of range", c.Alerts.DeliveryHour)
	}

	if c.Alerts.HorizonDays < 0 {
		return fmt.Errorf("alerts horizon %d must not be negative", c.Alerts.HorizonDays)
	}

	if c.FatSecret.Enabled && (c.FatSecret.ClientID == "" || c.FatSecret.ClientSecret == "") {
		return errors.New("fatsecret credentials are required when enabled")
	}

	if c.Google.Enabled && c.Google.InventorySpreadsheetID == "" {
		return errors.New("google inventory spreadsheet id is required when enabled")
	}

	return nil
}

// ValidateCatalog проверяет каталог категорий, загруженный из side-файла.
func ValidateCatalog(catalog models.Catalog) error {
	if len(catalog.Categories) == 0 {
		return errors.New("catalog has no categories")
	}
	seen := make(map[string]bool)
	for _, category := range catalog.Categories {
		if strings.TrimSpace(category.Name) == "" {
			return errors.New("catalog category without a name")
		}
		key := strings.ToLower(strings.TrimSpace(category.Name))
		if seen[key] {
			return fmt.Errorf("duplicate catalog category: %s", category.Name)
		}
		seen[key] = true
		if len(category.Units) == 0 {
			return fmt.Errorf("catalog category %s has no units", category.Name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = models.DefaultRedisTTL
	}
	if c.Session.FallbackPath == "" {
		c.Session.FallbackPath = "data/session"
	}

	if c.Alerts.HorizonDays == 0 {
		c.Alerts.HorizonDays = models.AlertHorizonDays
	}
	if c.Alerts.DeliveryHour == 0 {
		c.Alerts.DeliveryHour = models.AlertDeliveryHour
	}
	if c.Alerts.PollInterval == "" {
		c.Alerts.PollInterval = "30s"
	}
	if c.Alerts.MaxAttempts == 0 {
		c.Alerts.MaxAttempts = 5
	}
	if c.Alerts.SendRPS == 0 {
		c.Alerts.SendRPS = 20
	}
	if c.Alerts.SendBurst == 0 {
		c.Alerts.SendBurst = 5
	}

	if c.Refresh.Interval == "" {
		c.Refresh.Interval = "6h"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	// Bot defaults
	if c.Bot.PaginationSize == 0 {
		c.Bot.PaginationSize = models.DefaultPaginationSize
	}
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}
}
