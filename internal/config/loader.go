package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from a yaml file and the environment.
// Environment variables use the MFA_ prefix with dots replaced by
// underscores, e.g. MFA_DATABASE_HOST.
func LoadConfig() (*Config, error) {
	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/mfa-service")
	}

	viper.SetEnvPrefix("MFA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; the environment alone can configure the
		// service.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 15*time.Second)
	viper.SetDefault("server.environment", "development")

	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.auto_migrate", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("mfa.totp_issuer_name", "FarmPlatform")
	viper.SetDefault("mfa.channel_code_length", 6)
	viper.SetDefault("mfa.channel_code_ttl", 10*time.Minute)
	viper.SetDefault("mfa.channel_code_max_attempts", 5)
	viper.SetDefault("mfa.backup_code_count", 10)
	viper.SetDefault("mfa.device_trust_duration_days", 30)
	viper.SetDefault("mfa.challenge_token_ttl", 5*time.Minute)
	viper.SetDefault("mfa.code_reaper_interval", time.Hour)

	viper.SetDefault("lockout.max_consecutive_failures", 5)
	viper.SetDefault("lockout.cooldown", 15*time.Minute)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.limit", 10)
	viper.SetDefault("rate_limit.period", time.Minute)

	viper.SetDefault("notifier.sms.timeout", 5*time.Second)

	viper.SetDefault("account.base_url", "http://account-service:8080")
	viper.SetDefault("account.timeout", 5*time.Second)

	viper.SetDefault("metrics.enabled", true)
}
