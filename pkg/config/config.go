package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"attendance-bridge/pkg/wecom"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StateBackendFile     = "file"
	StateBackendDatabase = "database"

	// EchoModeDecrypt answers the handshake with the decrypted echostr.
	EchoModeDecrypt = "decrypt"
	// EchoModePlain checks the signature and returns echostr unchanged.
	EchoModePlain = "plain"
	// EchoModeSealed returns the challenge re-encrypted in a signed reply.
	EchoModeSealed = "sealed"
)

type Config struct {
	Port         string `yaml:"port"`
	CallbackPath string `yaml:"callback_path"`
	// EchoMode selects the URL-verification variant. See the EchoMode
	// constants.
	EchoMode string `yaml:"echo_mode"`

	CorpID         string `yaml:"corp_id"`
	AgentID        int64  `yaml:"agent_id"`
	AgentSecret    string `yaml:"agent_secret"`
	CallbackToken  string `yaml:"callback_token"`
	EncodingAESKey string `yaml:"encoding_aes_key"`
	WeComBaseURL   string `yaml:"wecom_base_url"`

	HRBaseURL   string        `yaml:"hr_base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	PollInterval           time.Duration `yaml:"poll_interval"`
	Timezone               string        `yaml:"timezone"`
	WatermarkRetentionDays int           `yaml:"watermark_retention_days"`

	DedupTTL         time.Duration `yaml:"dedup_ttl"`
	CommandWorkers   int           `yaml:"command_workers"`
	CommandQueueSize int           `yaml:"command_queue_size"`

	StateBackend   string `yaml:"state_backend"`
	StateDir       string `yaml:"state_dir"`
	DatabaseDriver string `yaml:"database_driver"`
	DatabaseDSN    string `yaml:"database_dsn"`

	AdminJWTSecret   string        `yaml:"admin_jwt_secret"`
	AdminTokenExpiry time.Duration `yaml:"admin_token_expiry"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// AESKey is decoded from EncodingAESKey by Validate.
	AESKey   []byte         `yaml:"-"`
	Location *time.Location `yaml:"-"`
}

// Load reads .env (if present), the environment and then an optional YAML
// file named by CONFIG_FILE. Values in the YAML file win over the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the overlay.
func LoadFile(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "5000"),
		CallbackPath: getEnv("CALLBACK_PATH", "/callback"),
		EchoMode:     getEnv("ECHO_MODE", EchoModeDecrypt),

		CorpID:         getEnv("WECOM_CORP_ID", ""),
		AgentID:        getEnvInt64("WECOM_AGENT_ID", 0),
		AgentSecret:    getEnv("WECOM_AGENT_SECRET", ""),
		CallbackToken:  getEnv("WECOM_TOKEN", ""),
		EncodingAESKey: getEnv("WECOM_ENCODING_AES_KEY", ""),
		WeComBaseURL:   getEnv("WECOM_BASE_URL", "https://qyapi.weixin.qq.com"),

		HRBaseURL:   getEnv("HR_BASE_URL", "http://localhost:2007"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		PollInterval:           getEnvDuration("POLL_INTERVAL", 30*time.Second),
		Timezone:               getEnv("TIMEZONE", "Asia/Bangkok"),
		WatermarkRetentionDays: int(getEnvInt64("WATERMARK_RETENTION_DAYS", 3)),

		DedupTTL:         getEnvDuration("DEDUP_TTL", 10*time.Second),
		CommandWorkers:   int(getEnvInt64("COMMAND_WORKERS", 3)),
		CommandQueueSize: int(getEnvInt64("COMMAND_QUEUE_SIZE", 100)),

		StateBackend:   getEnv("STATE_BACKEND", StateBackendFile),
		StateDir:       getEnv("STATE_DIR", "state"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:    getEnv("DATABASE_DSN", ""),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenExpiry: getEnvDuration("ADMIN_TOKEN_EXPIRY", 24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if path != "" {
		if err := cfg.overlayYAML(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) overlayYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Port, file.Port)
	setString(&c.CallbackPath, file.CallbackPath)
	setString(&c.EchoMode, file.EchoMode)
	setString(&c.CorpID, file.CorpID)
	if file.AgentID != 0 {
		c.AgentID = file.AgentID
	}
	setString(&c.AgentSecret, file.AgentSecret)
	setString(&c.CallbackToken, file.CallbackToken)
	setString(&c.EncodingAESKey, file.EncodingAESKey)
	setString(&c.WeComBaseURL, file.WeComBaseURL)
	setString(&c.HRBaseURL, file.HRBaseURL)
	setDuration(&c.HTTPTimeout, file.HTTPTimeout)
	setDuration(&c.PollInterval, file.PollInterval)
	setString(&c.Timezone, file.Timezone)
	setInt(&c.WatermarkRetentionDays, file.WatermarkRetentionDays)
	setDuration(&c.DedupTTL, file.DedupTTL)
	setInt(&c.CommandWorkers, file.CommandWorkers)
	setInt(&c.CommandQueueSize, file.CommandQueueSize)
	setString(&c.StateBackend, file.StateBackend)
	setString(&c.StateDir, file.StateDir)
	setString(&c.DatabaseDriver, file.DatabaseDriver)
	setString(&c.DatabaseDSN, file.DatabaseDSN)
	setString(&c.AdminJWTSecret, file.AdminJWTSecret)
	setDuration(&c.AdminTokenExpiry, file.AdminTokenExpiry)
	setString(&c.LogLevel, file.LogLevel)
	setString(&c.LogFormat, file.LogFormat)
	return nil
}

// Validate checks the settings the service cannot start without and derives
// AESKey and Location. It must run before any traffic is accepted.
func (c *Config) Validate() error {
	var errs []error

	if c.CorpID == "" {
		errs = append(errs, errors.New("WECOM_CORP_ID is required"))
	}
	if c.CallbackToken == "" {
		errs = append(errs, errors.New("WECOM_TOKEN is required"))
	}
	key, err := wecom.DecodeKey(c.EncodingAESKey)
	if err != nil {
		errs = append(errs, fmt.Errorf("WECOM_ENCODING_AES_KEY: %w", err))
	}
	c.AESKey = key

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	c.Location = loc

	switch c.EchoMode {
	case EchoModeDecrypt, EchoModePlain, EchoModeSealed:
	default:
		errs = append(errs, fmt.Errorf("ECHO_MODE must be one of %q, %q, %q, got %q", EchoModeDecrypt, EchoModePlain, EchoModeSealed, c.EchoMode))
	}

	switch c.StateBackend {
	case StateBackendFile:
	case StateBackendDatabase:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the database state backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STATE_BACKEND must be %q or %q, got %q", StateBackendFile, StateBackendDatabase, c.StateBackend))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		errs = append(errs, errors.New("CALLBACK_PATH must start with /"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
