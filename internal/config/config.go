package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server  ServerConfig
	Catalog DatabaseConfig
	Ledger  DatabaseConfig
	Scoring ScoringConfig
	Search  SearchConfig
	Auth    AuthConfig
	Admin   AdminConfig
	Logger  LoggerConfig

	MigrationsEnabled bool
}

type ServerConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig - драйвер (postgres или sqlite) и строка подключения
type DatabaseConfig struct {
	Driver string
	DSN    string
}

type ScoringConfig struct {
	BestPriceFactor decimal.Decimal
	DeliveryPercent decimal.Decimal
}

type SearchConfig struct {
	ResultLimit   int
	WindowPercent decimal.Decimal
	ScanTimeout   time.Duration
}

// DefaultJWTSecret годится только для локального запуска
const DefaultJWTSecret = "tenderfinder-secret-2025"

type AuthConfig struct {
	JWTSecret  string
	Expiration time.Duration
	BcryptCost int
}

// DefaultSecret сообщает, что JWT_SECRET не задан и токены подписываются общеизвестным ключом
func (a AuthConfig) DefaultSecret() bool {
	return a.JWTSecret == DefaultJWTSecret
}

// AdminConfig - учётка администратора, создаваемая при первом запуске
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

type LoggerConfig struct {
	Level string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	p := &parser{}

	catalog := DatabaseConfig{
		Driver: getEnv("CATALOG_DB_DRIVER", "sqlite"),
		DSN:    getEnv("CATALOG_DB_DSN", "./tenderfinder.db"),
	}
	// совместимость со старым деплоем, где каталог жил в postgres
	if conn := os.Getenv("POSTGRES_CONN"); conn != "" && os.Getenv("CATALOG_DB_DSN") == "" {
		catalog = DatabaseConfig{Driver: "postgres", DSN: conn}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:        getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
			ReadTimeout:    p.seconds("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   p.seconds("SERVER_WRITE_TIMEOUT", 30),
			RequestTimeout: p.seconds("REQUEST_TIMEOUT", 60),
		},
		Catalog: catalog,
		Ledger: DatabaseConfig{
			Driver: getEnv("LEDGER_DB_DRIVER", "sqlite"),
			DSN:    getEnv("LEDGER_DB_DSN", "./tenderfinder_users.db"),
		},
		Scoring: ScoringConfig{
			BestPriceFactor: p.decimal("BEST_PRICE_FACTOR", "0.4"),
			DeliveryPercent: p.decimal("DELIVERY_PERCENT", "15"),
		},
		Search: SearchConfig{
			ResultLimit:   p.int("SEARCH_RESULT_LIMIT", 20),
			WindowPercent: p.decimal("SEARCH_WINDOW_PERCENT", "20"),
			ScanTimeout:   p.seconds("SEARCH_SCAN_TIMEOUT", 30),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", DefaultJWTSecret),
			Expiration: time.Duration(p.int("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
			BcryptCost: p.int("BCRYPT_COST", 10),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Email:    getEnv("ADMIN_EMAIL", "admin@tenderfinder.kz"),
			Password: getEnv("ADMIN_PASSWORD", "admin123"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		MigrationsEnabled: p.bool("MIGRATIONS_ENABLED", true),
	}

	if p.err != nil {
		return nil, p.err
	}
	if cfg.Search.ResultLimit <= 0 {
		return nil, fmt.Errorf("SEARCH_RESULT_LIMIT must be positive, got %d", cfg.Search.ResultLimit)
	}
	if !cfg.Scoring.BestPriceFactor.IsPositive() {
		return nil, fmt.Errorf("BEST_PRICE_FACTOR must be positive, got %s", cfg.Scoring.BestPriceFactor)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser запоминает первую ошибку разбора, чтобы не проверять каждое поле отдельно
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) seconds(key string, def int) time.Duration {
	return time.Duration(p.int(key, def)) * time.Second
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) decimal(key, def string) decimal.Decimal {
	raw := getEnv(key, def)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(key, raw, err)
		return decimal.RequireFromString(def)
	}
	return v
}
