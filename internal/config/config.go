package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/costs"
	"ETFSentinel/internal/liquidity"
)

// EnvPrefix prefixes every environment override, e.g. ETFSENTINEL_PROVIDER_KIND.
const EnvPrefix = "ETFSENTINEL"

// Config holds all application configuration.
type Config struct {
	Log        LogConfig         `yaml:"log" envconfig:"LOG"`
	Provider   ProviderConfig    `yaml:"provider" envconfig:"PROVIDER"`
	Proxy      string            `yaml:"proxy" envconfig:"PROXY"`
	Benchmark  string            `yaml:"benchmark" envconfig:"BENCHMARK" validate:"required"`
	Period     string            `yaml:"period" envconfig:"PERIOD" validate:"oneof=1mo 3mo 6mo 1y 2y"`
	Calculator calculator.Config `yaml:"calculator" envconfig:"CALCULATOR"`
	Liquidity  liquidity.Config  `yaml:"liquidity" envconfig:"LIQUIDITY"`
	Costs      costs.Config      `yaml:"costs" envconfig:"COSTS"`
	Guard      GuardConfig       `yaml:"guard" envconfig:"GUARD"`
	Cache      CacheConfig       `yaml:"cache" envconfig:"CACHE"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Reference  ReferenceConfig   `yaml:"reference" envconfig:"REFERENCE"`
	Telegram   TelegramConfig    `yaml:"telegram" envconfig:"TELEGRAM"`
	Schedule   ScheduleConfig    `yaml:"schedule" envconfig:"SCHEDULE"`
	Watchlist  []string          `yaml:"watchlist" envconfig:"WATCHLIST"`
	Database   DatabaseConfig    `yaml:"database" envconfig:"DATABASE"`
	Server     ServerConfig      `yaml:"server" envconfig:"SERVER"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
}

// ProviderConfig selects the market-data backend.
type ProviderConfig struct {
	Kind    string `yaml:"kind" envconfig:"KIND" validate:"oneof=yahoo rest mock"`
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"required_if=Kind rest"`
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
}

// GuardConfig describes the trading session and quote freshness limit.
type GuardConfig struct {
	Timezone string        `yaml:"timezone" envconfig:"TIMEZONE" validate:"required"`
	Open     string        `yaml:"open" envconfig:"OPEN" validate:"required"`
	Close    string        `yaml:"close" envconfig:"CLOSE" validate:"required"`
	MaxAge   time.Duration `yaml:"max_age" envconfig:"MAX_AGE" validate:"gt=0"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend" envconfig:"BACKEND" validate:"oneof=file redis memory"`
	Dir       string        `yaml:"dir" envconfig:"DIR" validate:"required_if=Backend file"`
	TTL       time.Duration `yaml:"ttl" envconfig:"TTL" validate:"gt=0"`
	RedisAddr string        `yaml:"redis_addr" envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
}

// RateLimitConfig caps outbound calls per source. PerSource keys are source names.
type RateLimitConfig struct {
	CallsPerMinute float64            `yaml:"calls_per_minute" envconfig:"CALLS_PER_MINUTE" validate:"gte=0"`
	PerSource      map[string]float64 `yaml:"per_source" envconfig:"PER_SOURCE" validate:"dive,gte=0"`
}

// SourceConfig is one scraped reference page.
type SourceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	URLTemplate string `yaml:"url_template" validate:"required,contains=%s"`
	Renderer    string `yaml:"renderer" validate:"omitempty,oneof=chrome http"`
}

type ReferenceConfig struct {
	Sources          []SourceConfig `yaml:"sources" ignored:"true" validate:"dive"`
	ProviderFallback bool           `yaml:"provider_fallback" envconfig:"PROVIDER_FALLBACK"`
	Timeout          time.Duration  `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	Headless         bool           `yaml:"headless" envconfig:"HEADLESS"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" envconfig:"BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" envconfig:"CHAT_ID"`
}

type ScheduleConfig struct {
	ReconcileCron string `yaml:"reconcile_cron" envconfig:"RECONCILE_CRON" validate:"required"`
}

type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
}

type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log:        LogConfig{Level: "info", Format: "text"},
		Provider:   ProviderConfig{Kind: "yahoo"},
		Benchmark:  "SPY",
		Period:     "1y",
		Calculator: calculator.DefaultConfig(),
		Liquidity:  liquidity.DefaultConfig(),
		Costs:      costs.DefaultConfig(),
		Guard: GuardConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
			MaxAge:   15 * time.Minute,
		},
		Cache: CacheConfig{
			Backend: "file",
			Dir:     "data/cache",
			TTL:     24 * time.Hour,
		},
		RateLimit: RateLimitConfig{CallsPerMinute: 10},
		Reference: ReferenceConfig{
			ProviderFallback: true,
			Timeout:          30 * time.Second,
			Headless:         true,
		},
		Schedule: ScheduleConfig{ReconcileCron: "0 30 16 * * 1-5"},
		Database: DatabaseConfig{SQLitePath: "data/etf_sentinel.db"},
		Server:   ServerConfig{MetricsAddr: ":9090"},
	}
}

// Load reads config from a YAML file, then applies .env and environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.Benchmark = strings.ToUpper(strings.TrimSpace(cfg.Benchmark))
	for i, t := range cfg.Watchlist {
		cfg.Watchlist[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	for i := range cfg.Reference.Sources {
		if cfg.Reference.Sources[i].Renderer == "" {
			cfg.Reference.Sources[i].Renderer = "chrome"
		}
	}

	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateAlerts checks the fields the scheduled service needs on top of Validate.
func (c *Config) ValidateAlerts() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must name at least one ticker")
	}
	return nil
}
