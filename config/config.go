// Package config loads service settings from .env, an optional
// pricewatch.yaml and the environment, and sets up logging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// ErrMissingSetting is returned by Validate when a required identifier is unset
var ErrMissingSetting = eris.New("missing required setting")

var (
	defaultProducts = []string{
		"iPhone 13 128",
		"iPhone 13 256",
		"iPhone 14 128",
		"iPhone 14 256",
		"iPhone 15 128",
		"iPhone 15 256",
	}
	defaultRetailers = []string{
		"Amazon",
		"Flipkart",
		"Vijay Sales",
		"Reliance Digital",
		"Jiomart",
		"Croma",
	}
)

// Config is the top-level service configuration
type Config struct {
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Scraper  ScraperConfig  `mapstructure:"scraper" yaml:"scraper"`
	Currency CurrencyConfig `mapstructure:"currency" yaml:"currency"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	// Catalog accepts both yaml lists and comma-separated env values, so it
	// is decoded by hand.
	Catalog CatalogConfig `mapstructure:"-" yaml:"catalog"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

type TelegramConfig struct {
	BotToken          string        `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID            int64         `mapstructure:"chat_id" yaml:"chat_id"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// TriggerRate is the number of manual sweep requests allowed per second
	TriggerRate float64 `mapstructure:"trigger_rate" yaml:"trigger_rate"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ScraperConfig struct {
	IntervalMinutes int           `mapstructure:"interval_minutes" yaml:"interval_minutes"`
	Autostart       bool          `mapstructure:"autostart" yaml:"autostart"`
	BrowserBin      string        `mapstructure:"browser_bin" yaml:"browser_bin"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	PageTimeout     time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ProductPause    time.Duration `mapstructure:"product_pause" yaml:"product_pause"`
	ProductTimeout  time.Duration `mapstructure:"product_timeout" yaml:"product_timeout"`
	SearchURL       string        `mapstructure:"search_url" yaml:"search_url"`
}

// Interval returns the sweep interval
func (s ScraperConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

type CatalogConfig struct {
	Products  []string `yaml:"products"`
	Retailers []string `yaml:"retailers"`
}

type CurrencyConfig struct {
	Symbol         string `mapstructure:"symbol" yaml:"symbol"`
	GroupSeparator string `mapstructure:"group_separator" yaml:"group_separator"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration. A missing .env or pricewatch.yaml is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("no .env file loaded", zap.Error(err))
	}

	v := viper.New()

	v.SetConfigName("pricewatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// deployment variable names
	bindings := map[string][]string{
		"store.driver":             {"STORE_DRIVER"},
		"store.database_url":       {"DATABASE_URL"},
		"telegram.bot_token":       {"TELEGRAM_BOT_TOKEN"},
		"telegram.chat_id":         {"TELEGRAM_GROUP_CHAT_ID"},
		"server.host":              {"HOST"},
		"server.port":              {"PORT"},
		"scraper.interval_minutes": {"SCRAPE_INTERVAL_MINUTES"},
		"scraper.browser_bin":      {"PUPPETEER_EXECUTABLE_PATH", "CHROMIUM_BIN"},
		"catalog.products":         {"CATALOG_PRODUCTS"},
		"catalog.retailers":        {"CATALOG_RETAILERS"},
		"currency.symbol":          {"CURRENCY_SYMBOL"},
		"currency.group_separator": {"CURRENCY_GROUP_SEPARATOR"},
		"log.level":                {"LOG_LEVEL"},
		"log.format":               {"LOG_FORMAT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("telegram.reconnect_delay", 10*time.Second)
	v.SetDefault("telegram.messages_per_minute", 20)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trigger_rate", 0.1)
	v.SetDefault("scraper.interval_minutes", 10)
	v.SetDefault("scraper.autostart", true)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.page_timeout", 10*time.Second)
	v.SetDefault("scraper.settle_delay", 5*time.Second)
	v.SetDefault("scraper.product_pause", 0)
	v.SetDefault("scraper.product_timeout", 2*time.Minute)
	v.SetDefault("scraper.search_url", "https://www.google.com/search")
	v.SetDefault("catalog.products", defaultProducts)
	v.SetDefault("catalog.retailers", defaultRetailers)
	v.SetDefault("currency.symbol", "₹")
	v.SetDefault("currency.group_separator", ",")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Catalog.Products = stringList(v.Get("catalog.products"))
	cfg.Catalog.Retailers = stringList(v.Get("catalog.retailers"))

	return &cfg, nil
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Telegram.BotToken == "" {
		return eris.Wrap(ErrMissingSetting, "TELEGRAM_BOT_TOKEN")
	}
	if c.Telegram.ChatID == 0 {
		return eris.Wrap(ErrMissingSetting, "TELEGRAM_GROUP_CHAT_ID")
	}
	return nil
}

// ValidateStore checks only the store settings, for read-only commands
func (c *Config) ValidateStore() error {
	if c.Store.DatabaseURL == "" {
		return eris.Wrap(ErrMissingSetting, "DATABASE_URL")
	}
	switch c.Store.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Dump renders the effective configuration as pricewatch.yaml content.
// The bot token is masked.
func (c *Config) Dump() ([]byte, error) {
	out := *c
	if out.Telegram.BotToken != "" {
		out.Telegram.BotToken = "********"
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal")
	}
	return data, nil
}

// stringList accepts a list or a comma-separated string
func stringList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// InitLogger builds the global zap logger
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
