package main

import (
	"errors"
	"fmt"
	"strings"

	"stars_referral_bot/internal/bot"
	"stars_referral_bot/internal/notify"
	"stars_referral_bot/internal/repository"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	LogLevel string            `mapstructure:"logLevel"`
	Server   ServerConfig      `mapstructure:"server"`
	Telegram bot.Config        `mapstructure:"telegram"`
	Storage  StorageConfig     `mapstructure:"storage"`
	Database repository.Config `mapstructure:"database"`
	Notify   notify.Config     `mapstructure:"notify"`
	Admin    AdminConfig       `mapstructure:"admin"`
}

type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	AuthDebug bool   `mapstructure:"authDebug"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type AdminConfig struct {
	TelegramIDs []int64 `mapstructure:"telegramIds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.authDebug", false)
	v.SetDefault("telegram.botToken", "")
	v.SetDefault("telegram.logsChatId", 0)
	v.SetDefault("telegram.sponsorLink", "https://t.me/")
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.workers", bot.DefaultWorkers)
	v.SetDefault("telegram.updateTimeout", bot.DefaultUpdateTimeout)
	v.SetDefault("telegram.timezone", "UTC")
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "referrals")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("notify.queueSize", notify.DefaultQueueSize)
	v.SetDefault("notify.workers", notify.DefaultWorkers)
	v.SetDefault("notify.deliveryTimeout", notify.DefaultDeliveryTimeout)
	v.SetDefault("admin.telegramIds", []int64{})
}

// LoadConfig reads config.yaml from dir, if present, with APP_* environment
// overrides. A .env file in the working directory is loaded first.
func LoadConfig(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath(dir)
	v.SetConfigType(configFormat)

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	// names used by the standalone bot deployment
	if err := v.BindEnv("telegram.botToken", "APP_TELEGRAM_BOTTOKEN", "BOT_TOKEN"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("telegram.logsChatId", "APP_TELEGRAM_LOGSCHATID", "LOGS_CHAT_ID"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.botToken is required")
	}
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
