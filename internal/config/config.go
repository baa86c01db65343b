package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Booking  BookingConfig
	Outbox   OutboxConfig
	Email    EmailConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	RateLimitRPS   int `mapstructure:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// BookingConfig carries the lifecycle policy knobs.
type BookingConfig struct {
	CommissionRate            float64 `mapstructure:"commission_rate"`
	FirstConsultationDiscount float64 `mapstructure:"first_consultation_discount"`
	CancellationWindowHours   int     `mapstructure:"cancellation_window_hours"`
	MaxRangeDays              int     `mapstructure:"max_range_days"`
	MinSlotMinutes            int     `mapstructure:"min_slot_minutes"`
	MaxSlotMinutes            int     `mapstructure:"max_slot_minutes"`
	EscrowAutoReleaseDays     int     `mapstructure:"escrow_auto_release_days"`
	PaymentRefTTLHours        int     `mapstructure:"payment_ref_ttl_hours"`
	// BlockOverBookingPolicy decides what happens when a provider blocks a
	// window that already holds a confirmed booking: "allow" records the
	// block and flags the conflict, "reject" refuses it.
	BlockOverBookingPolicy string `mapstructure:"block_over_booking_policy"`
	ProviderCacheTTLMin    int    `mapstructure:"provider_cache_ttl_min"`
}

func (c BookingConfig) CancellationWindow() time.Duration {
	return time.Duration(c.CancellationWindowHours) * time.Hour
}

func (c BookingConfig) EscrowAutoRelease() time.Duration {
	return time.Duration(c.EscrowAutoReleaseDays) * 24 * time.Hour
}

func (c BookingConfig) PaymentRefTTL() time.Duration {
	return time.Duration(c.PaymentRefTTLHours) * time.Hour
}

type OutboxConfig struct {
	BatchSize            int `mapstructure:"batch_size"`
	PollIntervalSeconds  int `mapstructure:"poll_interval_seconds"`
	RetryAttempts        int `mapstructure:"retry_attempts"`
	RetryDelaySeconds    int `mapstructure:"retry_delay_seconds"`
	CleanupIntervalHours int `mapstructure:"cleanup_interval_hours"`
	RetentionDays        int `mapstructure:"retention_days"`
}

// PaymentConfig holds the gateway-facing settings. WebhookSecretHash is the
// bcrypt hash of the token the gateway sends on callbacks; empty disables
// the check.
type PaymentConfig struct {
	WebhookSecretHash string `mapstructure:"webhook_secret_hash"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
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
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("server.rate_limit_rps", 100)
	viper.SetDefault("server.rate_limit_burst", 200)

	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("booking.commission_rate", 0.10)
	viper.SetDefault("booking.first_consultation_discount", 0.50)
	viper.SetDefault("booking.cancellation_window_hours", 24)
	viper.SetDefault("booking.max_range_days", 30)
	viper.SetDefault("booking.min_slot_minutes", 15)
	viper.SetDefault("booking.max_slot_minutes", 480)
	viper.SetDefault("booking.escrow_auto_release_days", 7)
	viper.SetDefault("booking.payment_ref_ttl_hours", 48)
	viper.SetDefault("booking.block_over_booking_policy", "allow")
	viper.SetDefault("booking.provider_cache_ttl_min", 15)

	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_interval_seconds", 5)
	viper.SetDefault("outbox.retry_attempts", 3)
	viper.SetDefault("outbox.retry_delay_seconds", 5)
	viper.SetDefault("outbox.cleanup_interval_hours", 1)
	viper.SetDefault("outbox.retention_days", 7)
}
