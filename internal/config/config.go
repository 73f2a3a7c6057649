package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sms-support-server/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all configuration settings
type Config struct {
	Server struct {
		Port           int      `json:"port"`
		Host           string   `json:"host"`
		AllowedOrigins []string `json:"allowed_origins"`
		MaxBodyBytes   int64    `json:"max_body_bytes"`
		ForceHTTPS     bool     `json:"force_https"`
	} `json:"server"`
	Database struct {
		DSN string `json:"dsn"`
	} `json:"database"`
	JWT struct {
		Secret      string        `json:"secret"`
		TokenExpiry time.Duration `json:"token_expiry"`
	} `json:"jwt"`
	Logging struct {
		Level string `json:"level"`
		Path  string `json:"path"`
	} `json:"logging"`
	Carrier struct {
		BaseURL     string        `json:"base_url"`
		AccountSID  string        `json:"account_sid"`
		AuthToken   string        `json:"auth_token"`
		FromNumber  string        `json:"from_number"`
		SendTimeout time.Duration `json:"send_timeout"`
	} `json:"carrier"`
	Webhook struct {
		ValidateSignature bool    `json:"validate_signature"`
		PublicURL         string  `json:"public_url"`
		RatePerSecond     float64 `json:"rate_per_second"`
		Burst             int     `json:"burst"`
	} `json:"webhook"`
	Realtime struct {
		OutboxSize int `json:"outbox_size"`
	} `json:"realtime"`
	Redis struct {
		Addr    string        `json:"addr"`
		LockTTL time.Duration `json:"lock_ttl"`
	} `json:"redis"`
	AMQP struct {
		URL      string `json:"url"`
		Exchange string `json:"exchange"`
	} `json:"amqp"`
	Seed struct {
		Enable        bool   `json:"enable"`
		AdminEmail    string `json:"admin_email"`
		AdminPassword string `json:"admin_password"`
	} `json:"seed"`
}

// LoadConfig loads configuration from a JSON file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	var raw map[string]any
	decoder := json.NewDecoder(file)
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	if err := normalizeDurations(raw); err != nil {
		return nil, err
	}

	// Re-encode so duration strings reach the typed config as nanoseconds
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// durationFields lists the section and key of every time.Duration setting
var durationFields = [][2]string{
	{"jwt", "token_expiry"},
	{"carrier", "send_timeout"},
	{"redis", "lock_ttl"},
}

// normalizeDurations rewrites duration strings such as "10s" to nanoseconds.
// Plain numbers are already nanoseconds and are left alone.
func normalizeDurations(raw map[string]any) error {
	for _, field := range durationFields {
		section, ok := raw[field[0]].(map[string]any)
		if !ok {
			continue
		}
		s, ok := section[field[1]].(string)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid %s.%s: %w", field[0], field[1], err)
		}
		section[field[1]] = int64(d)
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = 3002
	config.Server.Host = "localhost"
	config.Server.AllowedOrigins = []string{"http://localhost:5174"}
	config.Server.MaxBodyBytes = 10 << 20
	config.Database.DSN = "file:support.db?cache=shared&mode=rwc"
	config.JWT.Secret = "your-secret-key" // This should be changed in production
	config.JWT.TokenExpiry = 7 * 24 * time.Hour
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	config.Carrier.BaseURL = "https://api.twilio.com"
	config.Carrier.SendTimeout = 10 * time.Second
	config.Webhook.RatePerSecond = 20
	config.Webhook.Burst = 40
	config.Realtime.OutboxSize = 64
	config.Redis.LockTTL = 10 * time.Second
	config.AMQP.Exchange = "support.events"
	return config
}

// ApplyEnv overrides settings from the environment. A .env file in the working
// directory is loaded first when present.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Server.Port = port
	}
	setString(&c.Server.Host, "HOST")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Path, "LOG_PATH")
	setString(&c.Carrier.BaseURL, "CARRIER_BASE_URL")
	setString(&c.Carrier.AccountSID, "CARRIER_ACCOUNT_SID")
	setString(&c.Carrier.AuthToken, "CARRIER_AUTH_TOKEN")
	setString(&c.Carrier.FromNumber, "CARRIER_PHONE_NUMBER")
	setString(&c.Webhook.PublicURL, "WEBHOOK_PUBLIC_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.AMQP.URL, "AMQP_URL")
	setString(&c.Seed.AdminEmail, "SEED_ADMIN_EMAIL")
	setString(&c.Seed.AdminPassword, "SEED_ADMIN_PASSWORD")

	if v := os.Getenv("WEB_URL"); v != "" {
		c.Server.AllowedOrigins = []string{v}
	}
	if v := os.Getenv("JWT_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRY: %w", err)
		}
		c.JWT.TokenExpiry = d
	}
	if v := os.Getenv("CARRIER_SEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CARRIER_SEND_TIMEOUT: %w", err)
		}
		c.Carrier.SendTimeout = d
	}
	if v := os.Getenv("SEED_ENABLE"); v != "" {
		enable, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SEED_ENABLE: %w", err)
		}
		c.Seed.Enable = enable
	}
	if v := os.Getenv("FORCE_HTTPS"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FORCE_HTTPS: %w", err)
		}
		c.Server.ForceHTTPS = force
	}
	if v := os.Getenv("WEBHOOK_VALIDATE_SIGNATURE"); v != "" {
		validate, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WEBHOOK_VALIDATE_SIGNATURE: %w", err)
		}
		c.Webhook.ValidateSignature = validate
	}

	return nil
}

// Validate checks that the configuration can start a server
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}
	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}
	if c.JWT.TokenExpiry <= 0 {
		return errors.New("JWT token expiry must be positive")
	}
	if c.Carrier.SendTimeout <= 0 {
		return errors.New("carrier send timeout must be positive")
	}
	if c.Webhook.ValidateSignature && c.Carrier.AuthToken == "" {
		return errors.New("webhook signature validation requires a carrier auth token")
	}
	if c.Seed.Enable && (c.Seed.AdminEmail == "" || c.Seed.AdminPassword == "") {
		return errors.New("seeding requires admin email and password")
	}
	return nil
}

// SandboxCarrier reports whether no carrier credentials are configured
func (c *Config) SandboxCarrier() bool {
	return c.Carrier.AccountSID == "" || c.Carrier.AuthToken == ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
