package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type RedisConfig struct {
	Addr string
}

// BillingConfig carries every rate the calculator and schedulers use.
// VAT rates are percentages; rate changes must not require touching
// transition logic, so nothing here is duplicated at call sites.
type BillingConfig struct {
	ServiceVATRate      decimal.Decimal
	InstallationVATRate decimal.Decimal
	DueDays             int
	LateFee             decimal.Decimal
	MinContractDays     int
	SchedulerTick       time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Billing     BillingConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("REDIS_ADDR"),
		},
		Billing: BillingConfig{
			ServiceVATRate:      decimalOrDefault(v.GetString("BILLING_SERVICE_VAT_RATE"), "5"),
			InstallationVATRate: decimalOrDefault(v.GetString("BILLING_INSTALLATION_VAT_RATE"), "10"),
			DueDays:             v.GetInt("BILLING_DUE_DAYS"),
			LateFee:             decimalOrDefault(v.GetString("BILLING_LATE_FEE"), "35000"),
			MinContractDays:     v.GetInt("CONTRACT_MIN_DURATION_DAYS"),
			SchedulerTick:       v.GetDuration("BILLING_SCHEDULER_TICK"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Billing.DueDays == 0 {
		cfg.Billing.DueDays = 15
	}
	if cfg.Billing.MinContractDays == 0 {
		cfg.Billing.MinContractDays = 365
	}
	if cfg.Billing.SchedulerTick == 0 {
		cfg.Billing.SchedulerTick = time.Hour
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Billing.ServiceVATRate.IsNegative() || cfg.Billing.InstallationVATRate.IsNegative() {
		return fmt.Errorf("VAT rates must not be negative")
	}
	return nil
}

func decimalOrDefault(raw, fallback string) decimal.Decimal {
	if raw == "" {
		raw = fallback
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		value, _ = decimal.NewFromString(fallback)
	}
	return value
}
