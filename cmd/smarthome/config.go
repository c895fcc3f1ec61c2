package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nkiryanov/smarthome/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 24 * time.Hour
	defaultNotifier     = NotifierNone
)

// Where out of band notifications go
const (
	NotifierNone     = "none"
	NotifierTelegram = "telegram"
	NotifierMQTT     = "mqtt"
)

type Config struct {
	// Default logging level
	LogLevel string `yaml:"log_level"`

	// Address on which the smarthome service will be run
	ListenAddr string `yaml:"run_address"`

	// Database to connect to
	DatabaseDSN string `yaml:"database_uri"`

	// Secret key
	// Used to sign access and refresh tokens with HMAC
	SecretKey string `yaml:"secret_key"`

	// Environment
	Environment string `yaml:"environment"`

	// Session settings
	AccessTTL         time.Duration `yaml:"access_ttl"`
	RefreshTTL        time.Duration `yaml:"refresh_ttl"`
	AccessCookieName  string        `yaml:"access_cookie_name"`
	RefreshCookieName string        `yaml:"refresh_cookie_name"`

	// Notifications: 'none', 'telegram' or 'mqtt'
	Notifier string `yaml:"notifier"`

	TelegramBotToken    string `yaml:"telegram_bot_token"`
	TelegramAdminChatID int64  `yaml:"telegram_admin_chat_id"`
	TelegramAPIURL      string `yaml:"telegram_api_url"`

	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTUsername    string `yaml:"mqtt_username"`
	MQTTPassword    string `yaml:"mqtt_password"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,
		Notifier:    defaultNotifier,
	}
}

// Load options from yaml file. Options absent in file are not changed
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error while parsing config file %s: %w", path, err)
	}

	return nil
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt64 := func(o *int64) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"SECRET_KEY":             setString(&c.SecretKey),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"ACCESS_TTL":             setDuration(&c.AccessTTL),
		"REFRESH_TTL":            setDuration(&c.RefreshTTL),
		"ACCESS_COOKIE_NAME":     setString(&c.AccessCookieName),
		"REFRESH_COOKIE_NAME":    setString(&c.RefreshCookieName),
		"NOTIFIER":               setString(&c.Notifier),
		"TELEGRAM_BOT_TOKEN":     setString(&c.TelegramBotToken),
		"TELEGRAM_ADMIN_CHAT_ID": setInt64(&c.TelegramAdminChatID),
		"TELEGRAM_API_URL":       setString(&c.TelegramAPIURL),
		"MQTT_BROKER":            setString(&c.MQTTBroker),
		"MQTT_CLIENT_ID":         setString(&c.MQTTClientID),
		"MQTT_USERNAME":          setString(&c.MQTTUsername),
		"MQTT_PASSWORD":          setString(&c.MQTTPassword),
		"MQTT_TOPIC_PREFIX":      setString(&c.MQTTTopicPrefix),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("smarthome", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVarP(&c.Notifier, "notifier", "n", c.Notifier, "Notifications transport (none, telegram, mqtt)")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	switch c.Notifier {
	case NotifierNone, NotifierTelegram, NotifierMQTT:
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifier)
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}

	return nil
}
