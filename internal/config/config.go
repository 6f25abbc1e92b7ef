// Package config loads the application-level configuration — exchange
// credentials, notifier transports, storage paths, and runtime knobs —
// kept separate from core.Settings, the persisted trading-parameter row
// that chat commands reload at runtime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Exchange holds the credentials and mode for the live order/feed client.
type Exchange struct {
	APIKey     string
	APISecret  string
	UseTestnet bool
	PaperMode  bool
}

// Telegram holds the long-poller token and the chat IDs authorized to
// issue commands, mirroring the teacher's settings.Telegram.Users check.
type Telegram struct {
	Enabled bool
	Token   string
	Users   []int
}

// Mail holds SMTP delivery parameters for the secondary notifier.
type Mail struct {
	Enabled           bool
	SMTPServerAddress string
	SMTPServerPort    int
	From              string
	To                string
	Password          string
}

// Database holds the sqlite ledger and buntdb cache file paths.
type Database struct {
	LedgerPath string
	CachePath  string
}

// Log holds the console logger's formatting and verbosity.
type Log struct {
	Level     string
	Colored   bool
	JSONForm  bool
	TimeLayout string
}

// Config is the fully loaded, validated application configuration.
type Config struct {
	Exchange Exchange
	Telegram Telegram
	Mail     Mail
	Database Database
	Log      Log

	Symbols              []string
	Interval             string
	WarmupPeriod         int
	PollInterval         time.Duration
	MaxConcurrentFetches int
	InitialCash          float64
}

// Load reads configuration from (in ascending priority) defaults, an
// optional config file, and BACKNRUN_-prefixed environment variables,
// then validates it. Every out-of-range value is a fatal startup error
// (spec §7), returned here rather than panicked so cmd/backnrun can log
// and exit cleanly.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BACKNRUN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	cfg := Config{
		Exchange: Exchange{
			APIKey:     v.GetString("exchange.api_key"),
			APISecret:  v.GetString("exchange.api_secret"),
			UseTestnet: v.GetBool("exchange.testnet"),
			PaperMode:  v.GetBool("exchange.paper_mode"),
		},
		Telegram: Telegram{
			Enabled: v.GetBool("telegram.enabled"),
			Token:   v.GetString("telegram.token"),
			Users:   v.GetIntSlice("telegram.users"),
		},
		Mail: Mail{
			Enabled:           v.GetBool("mail.enabled"),
			SMTPServerAddress: v.GetString("mail.smtp_address"),
			SMTPServerPort:    v.GetInt("mail.smtp_port"),
			From:              v.GetString("mail.from"),
			To:                v.GetString("mail.to"),
			Password:          v.GetString("mail.password"),
		},
		Database: Database{
			LedgerPath: v.GetString("database.ledger_path"),
			CachePath:  v.GetString("database.cache_path"),
		},
		Log: Log{
			Level:      v.GetString("log.level"),
			Colored:    v.GetBool("log.colored"),
			JSONForm:   v.GetBool("log.json"),
			TimeLayout: v.GetString("log.time_layout"),
		},
		Symbols:              v.GetStringSlice("symbols"),
		Interval:             v.GetString("interval"),
		WarmupPeriod:         v.GetInt("warmup_period"),
		PollInterval:         v.GetDuration("poll_interval"),
		MaxConcurrentFetches: v.GetInt("max_concurrent_fetches"),
		InitialCash:          v.GetFloat64("initial_cash"),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.testnet", false)
	v.SetDefault("exchange.paper_mode", true)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("database.ledger_path", "./backnrun.db")
	v.SetDefault("database.cache_path", "./backnrun_regime.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.colored", true)
	v.SetDefault("log.json", false)
	v.SetDefault("log.time_layout", "2006-01-02 15:04:05")
	v.SetDefault("interval", "1h")
	v.SetDefault("warmup_period", 210)
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("max_concurrent_fetches", 5)
	v.SetDefault("initial_cash", 10000.0)
}

func validate(cfg Config) error {
	if !cfg.Exchange.PaperMode {
		if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
			return fmt.Errorf("config: exchange.api_key/api_secret required when paper_mode is false")
		}
	}
	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("config: telegram.token required when telegram.enabled is true")
		}
		if len(cfg.Telegram.Users) == 0 {
			return fmt.Errorf("config: telegram.users required when telegram.enabled is true")
		}
	}
	if cfg.Mail.Enabled {
		if cfg.Mail.SMTPServerAddress == "" || cfg.Mail.From == "" || cfg.Mail.To == "" {
			return fmt.Errorf("config: mail.smtp_address/from/to required when mail.enabled is true")
		}
	}
	if cfg.WarmupPeriod < 2 {
		return fmt.Errorf("config: warmup_period must be at least 2, got %d", cfg.WarmupPeriod)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if cfg.MaxConcurrentFetches < 1 {
		return fmt.Errorf("config: max_concurrent_fetches must be at least 1")
	}
	if cfg.Interval == "" {
		return fmt.Errorf("config: interval is required")
	}
	if cfg.InitialCash <= 0 {
		return fmt.Errorf("config: initial_cash must be positive")
	}
	return nil
}
