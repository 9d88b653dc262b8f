package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MFA       MFAConfig       `mapstructure:"mfa"`
	Lockout   LockoutConfig   `mapstructure:"lockout"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Account   AccountConfig   `mapstructure:"account"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MFAConfig carries the knobs of the verification core.
type MFAConfig struct {
	TOTPIssuerName string `mapstructure:"totp_issuer_name"`
	// TOTPSecretEncryptionKey is a hex-encoded 32-byte AES key.
	TOTPSecretEncryptionKey string        `mapstructure:"totp_secret_encryption_key"`
	ChannelCodeLength       int           `mapstructure:"channel_code_length"`
	ChannelCodeTTL          time.Duration `mapstructure:"channel_code_ttl"`
	ChannelCodeMaxAttempts  int           `mapstructure:"channel_code_max_attempts"`
	BackupCodeCount         int           `mapstructure:"backup_code_count"`
	DeviceTrustDurationDays int           `mapstructure:"device_trust_duration_days"`
	ChallengeTokenSecret    string        `mapstructure:"challenge_token_secret"`
	ChallengeTokenTTL       time.Duration `mapstructure:"challenge_token_ttl"`
	// CodeReaperInterval controls the optional expired-code sweep; zero
	// disables the reaper.
	CodeReaperInterval time.Duration `mapstructure:"code_reaper_interval"`
}

// LockoutConfig bounds the per-user consecutive-failure policy.
type LockoutConfig struct {
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	Cooldown               time.Duration `mapstructure:"cooldown"`
}

type SMSConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	Sender  string        `mapstructure:"sender"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type NotifierConfig struct {
	SMS   SMSConfig   `mapstructure:"sms"`
	Email EmailConfig `mapstructure:"email"`
}

// AccountConfig points at the account service that owns primary
// credentials.
type AccountConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Period  time.Duration `mapstructure:"period"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
