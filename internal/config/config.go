package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"wallet-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Detection DetectionConfig `mapstructure:"detection"`
	Sound     SoundConfig     `mapstructure:"sound"`
	Toast     ToastConfig     `mapstructure:"toast"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the session store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the balance refresh cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// WalletConfig covers the watched wallet and its chain access.
type WalletConfig struct {
	Chain          string        `mapstructure:"chain"`
	RPCURL         string        `mapstructure:"rpc_url"`
	WSURL          string        `mapstructure:"ws_url"`
	Addresses      []string      `mapstructure:"addresses"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DetectionConfig tunes the two detection strategies and the shared history.
type DetectionConfig struct {
	// BalancePathEnabled gates dispatch from the balance-diff path. Detection
	// still runs when disabled; the path false-positives on re-pricing, so it
	// ships off.
	BalancePathEnabled bool          `mapstructure:"balance_path_enabled"`
	BalanceDedupWindow time.Duration `mapstructure:"balance_dedup_window"`
	TxDedupWindow      time.Duration `mapstructure:"tx_dedup_window"`
	HistoryCap         int           `mapstructure:"history_cap"`
}

// SoundConfig tunes the audio sink.
type SoundConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Muted         bool          `mapstructure:"muted"`
	Volume        float64       `mapstructure:"volume"`
	MinInterval   time.Duration `mapstructure:"min_interval"`
	PlayerCommand string        `mapstructure:"player_command"`
	PlayerArgs    []string      `mapstructure:"player_args"`
}

// ToastConfig defines the visual notification channel.
type ToastConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 通知参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WALLETWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "walletwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "30s")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("wallet.chain", "ETH")
	v.SetDefault("wallet.request_timeout", "10s")

	v.SetDefault("detection.balance_path_enabled", false)
	v.SetDefault("detection.balance_dedup_window", "5s")
	v.SetDefault("detection.tx_dedup_window", "60s")
	v.SetDefault("detection.history_cap", 100)

	v.SetDefault("sound.enabled", true)
	v.SetDefault("sound.muted", false)
	v.SetDefault("sound.volume", 0.7)
	v.SetDefault("sound.min_interval", "3s")

	v.SetDefault("toast.telegram.enabled", false)
	v.SetDefault("toast.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Detection.BalanceDedupWindow <= 0 {
		return fmt.Errorf("detection.balance_dedup_window must be greater than zero")
	}
	if c.Detection.TxDedupWindow <= 0 {
		return fmt.Errorf("detection.tx_dedup_window must be greater than zero")
	}
	if c.Detection.HistoryCap <= 0 {
		return fmt.Errorf("detection.history_cap must be greater than zero")
	}
	if c.Sound.Volume < 0 || c.Sound.Volume > 1 {
		return fmt.Errorf("sound.volume must be within [0, 1]")
	}
	if c.Sound.MinInterval < 0 {
		return fmt.Errorf("sound.min_interval cannot be negative")
	}
	if c.Toast.Telegram.Enabled {
		if c.Toast.Telegram.BotToken == "" {
			return fmt.Errorf("toast.telegram.bot_token 必须配置")
		}
		if c.Toast.Telegram.ChatID == "" {
			return fmt.Errorf("toast.telegram.chat_id 必须配置")
		}
	}
	return nil
}
