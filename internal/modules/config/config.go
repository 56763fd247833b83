package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/tracing"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	walletENV         = "HYPERLIQUID_WALLET"
	privateKeyENV     = "HYPERLIQUID_PRIVATE_KEY"
)

const (
	PolicyNoop  = "noop"
	PolicyStack = "stack"
)

// Config ...
type Config struct {
	Service struct {
		Name string `yaml:"name"`
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"service"`

	Hyperliquid struct {
		APIURL      string  `yaml:"api_url"`
		WSURL       string  `yaml:"ws_url"`
		Wallet      string  `yaml:"wallet"`
		PrivateKey  string  `yaml:"private_key"`
		CrossMargin bool    `yaml:"cross_margin"`
		Slippage    float64 `yaml:"slippage"` // 0.05 => цена IOC на 5% хуже mid
	} `yaml:"hyperliquid"`

	Trading Trading `yaml:"trading"`

	Cache struct {
		AccountTTL   time.Duration `yaml:"account_ttl"`
		PriceTTL     time.Duration `yaml:"price_ttl"`
		MetaTTL      time.Duration `yaml:"meta_ttl"`
		MaxStale     time.Duration `yaml:"max_stale"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"cache"`

	Retry Retry `yaml:"retry"`

	Engine struct {
		RequestTimeout time.Duration `yaml:"request_timeout"`
		SequenceWait   time.Duration `yaml:"sequence_wait"`
	} `yaml:"engine"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	PriceFeed struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"pricefeed"`

	Tracing tracing.Config `yaml:"tracing"`
	Logging logger.Config  `yaml:"logging"`
}

// Trading — дефолты и границы для алертов.
type Trading struct {
	DefaultCoin         string  `yaml:"default_coin"`
	DefaultLeverage     int     `yaml:"default_leverage"`
	MinLeverage         int     `yaml:"min_leverage"`
	MaxLeverage         int     `yaml:"max_leverage"`
	DefaultRiskPct      float64 `yaml:"default_risk_pct"` // 1.0 => 1% equity
	MaxRiskPct          float64 `yaml:"max_risk_pct"`
	MinNotional         float64 `yaml:"min_notional"` // USD
	SameDirectionPolicy string  `yaml:"same_direction_policy"`
}

// Retry — политика для rate limit.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// Defaults — конфиг без файла: значения из ENV или зашитые.
func Defaults() Config {
	var c Config
	c.Service.Name = getenvDefault("SERVICE_NAME", "webhook_bot")
	c.Service.Port = intFromEnv("PORT", 8000)

	c.Hyperliquid.APIURL = getenvDefault("HYPERLIQUID_API_URL", "https://api.hyperliquid.xyz")
	c.Hyperliquid.WSURL = getenvDefault("HYPERLIQUID_WS_URL", "wss://api.hyperliquid.xyz/ws")
	c.Hyperliquid.CrossMargin = boolFromEnv("CROSS_MARGIN", true)
	c.Hyperliquid.Slippage = floatFromEnv("SLIPPAGE", 0.05)

	c.Trading = Trading{
		DefaultCoin:         getenvDefault("DEFAULT_COIN", "BTC"),
		DefaultLeverage:     intFromEnv("DEFAULT_LEVERAGE", 1),
		MinLeverage:         intFromEnv("MIN_LEVERAGE", 1),
		MaxLeverage:         intFromEnv("MAX_LEVERAGE", 50),
		DefaultRiskPct:      floatFromEnv("DEFAULT_RISK_PCT", 1.0),
		MaxRiskPct:          floatFromEnv("MAX_RISK_PCT", 5.0),
		MinNotional:         floatFromEnv("MIN_NOTIONAL", 10),
		SameDirectionPolicy: getenvDefault("SAME_DIRECTION_POLICY", PolicyNoop),
	}

	c.Cache.AccountTTL = durationFromEnv("CACHE_ACCOUNT_TTL", "3s")
	c.Cache.PriceTTL = durationFromEnv("CACHE_PRICE_TTL", "3s")
	c.Cache.MetaTTL = durationFromEnv("CACHE_META_TTL", "30m")
	c.Cache.MaxStale = durationFromEnv("CACHE_MAX_STALE", "30s")
	c.Cache.FetchTimeout = durationFromEnv("CACHE_FETCH_TIMEOUT", "10s")

	c.Retry = Retry{
		MaxAttempts: intFromEnv("RETRY_MAX_ATTEMPTS", 3),
		BaseDelay:   durationFromEnv("RETRY_BASE_DELAY", "500ms"),
		MaxDelay:    durationFromEnv("RETRY_MAX_DELAY", "4s"),
		Jitter:      floatFromEnv("RETRY_JITTER", 0.2),
	}

	c.Engine.RequestTimeout = durationFromEnv("REQUEST_TIMEOUT", "30s")
	c.Engine.SequenceWait = durationFromEnv("SEQUENCE_WAIT", "10s")

	c.PriceFeed.Enabled = boolFromEnv("PRICEFEED_ENABLED", false)

	c.Tracing.Enabled = boolFromEnv("TRACING_ENABLED", false)
	c.Tracing.Host = getenvDefault("JAEGER_HOST", "localhost")
	c.Tracing.Port = intFromEnv("JAEGER_PORT", 6831)

	c.Logging.Level = getenvDefault("LOG_LEVEL", "info")
	c.Logging.File = os.Getenv("LOG_FILE")
	c.Logging.MaxSizeMB = 50
	c.Logging.MaxBackups = 5
	c.Logging.MaxAgeDays = 14
	return c
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	config := Defaults()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	path := filepath.Join(getenvDefault(configDirENV, "configs"), configFileName)
	if err := decodeFile(path, &config); err != nil {
		return nil, err
	}

	applySecrets(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// decodeFile накладывает yaml поверх дефолтов. Отсутствующий файл — не ошибка.
func decodeFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func applySecrets(config *Config) {
	if v := os.Getenv(walletENV); v != "" {
		config.Hyperliquid.Wallet = v
	}
	if v := os.Getenv(privateKeyENV); v != "" {
		config.Hyperliquid.PrivateKey = v
	}
	if v := os.Getenv(tokenTelegramENV); v != "" {
		config.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}
}

// Validate приводит диапазоны в порядок и отвергает то, что исправить нельзя.
func (c *Config) Validate() error {
	t := &c.Trading
	t.DefaultCoin = strings.ToUpper(strings.TrimSpace(t.DefaultCoin))

	if t.MinLeverage < 1 {
		t.MinLeverage = 1
	}
	if t.MaxLeverage < t.MinLeverage {
		return fmt.Errorf("max_leverage %d < min_leverage %d", t.MaxLeverage, t.MinLeverage)
	}
	t.DefaultLeverage = clampInt(t.DefaultLeverage, t.MinLeverage, t.MaxLeverage)

	if t.MaxRiskPct <= 0 {
		return fmt.Errorf("max_risk_pct must be > 0, got %v", t.MaxRiskPct)
	}
	if t.DefaultRiskPct <= 0 || t.DefaultRiskPct > t.MaxRiskPct {
		t.DefaultRiskPct = t.MaxRiskPct
	}
	if t.MinNotional < 0 {
		t.MinNotional = 0
	}

	switch strings.ToLower(t.SameDirectionPolicy) {
	case "", PolicyNoop:
		t.SameDirectionPolicy = PolicyNoop
	case PolicyStack:
		t.SameDirectionPolicy = PolicyStack
	default:
		return fmt.Errorf("unknown same_direction_policy %q", t.SameDirectionPolicy)
	}

	if c.Cache.AccountTTL <= 0 || c.Cache.PriceTTL <= 0 || c.Cache.MetaTTL <= 0 {
		return fmt.Errorf("cache ttls must be positive")
	}
	if c.Cache.MaxStale < c.Cache.PriceTTL {
		c.Cache.MaxStale = c.Cache.PriceTTL
	}

	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		c.Retry.MaxDelay = c.Retry.BaseDelay
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		c.Retry.Jitter = 0
	}

	if c.Engine.RequestTimeout <= 0 {
		c.Engine.RequestTimeout = 30 * time.Second
	}
	if c.Engine.SequenceWait <= 0 {
		c.Engine.SequenceWait = c.Engine.RequestTimeout
	}
	return nil
}

// HasCredentials — есть ли чем подписывать ордера.
func (c *Config) HasCredentials() bool {
	return c.Hyperliquid.PrivateKey != ""
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
