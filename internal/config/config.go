package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Token    TokenConfig    `mapstructure:"token"`
	Points   PointsConfig   `mapstructure:"points"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type SecretsConfig struct {
	JWTKey              string `mapstructure:"jwtKey"`
	GeminiKey           string `mapstructure:"geminiKey"`
	StripeKey           string `mapstructure:"stripeKey"`
	StripeWebhookSecret string `mapstructure:"stripeWebhookSecret"`
	PixAppID            string `mapstructure:"pixAppId"`
	PixWebhookSecret    string `mapstructure:"pixWebhookSecret"`
}

type FirebaseConfig struct {
	ProjectID       string `mapstructure:"projectId"`
	CredentialsFile string `mapstructure:"credentialsFile"`
}

type StorageConfig struct {
	UserCollection  string `mapstructure:"userCollection"`
	OrderCollection string `mapstructure:"orderCollection"`
}

type GeminiConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

type TokenConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type PointsConfig struct {
	OnboardingBonus    int64  `mapstructure:"onboardingBonus"`
	DailyBase          int64  `mapstructure:"dailyBase"`
	DailyStreakStep    int64  `mapstructure:"dailyStreakStep"`
	DailyStreakMaxDays int64  `mapstructure:"dailyStreakMaxDays"`
	Timezone           string `mapstructure:"timezone"`
}

type PaymentsConfig struct {
	Currency   string          `mapstructure:"currency"`
	SuccessURL string          `mapstructure:"successUrl"`
	CancelURL  string          `mapstructure:"cancelUrl"`
	PixBaseURL string          `mapstructure:"pixBaseUrl"`
	Packages   []PackageConfig `mapstructure:"packages"`
}

type PackageConfig struct {
	ID         string `mapstructure:"id"`
	Name       string `mapstructure:"name"`
	Points     int64  `mapstructure:"points"`
	PriceCents int64  `mapstructure:"priceCents"`
}

type QueueConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// Load reads configs/<env>.yaml (or the given search paths) and applies
// environment overrides. A key such as "secrets.jwtKey" is overridden by
// SECRETS_JWTKEY.
func Load(env string, paths ...string) (*Config, error) {
	if env == "" {
		env = "default"
	}
	if len(paths) == 0 {
		paths = []string{"configs/"}
	}

	v := viper.New()
	v.SetConfigName(env)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %q: %w", env, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.userCollection", "users")
	v.SetDefault("storage.orderCollection", "orders")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.9)
	v.SetDefault("token.ttl", 30*24*time.Hour)
	v.SetDefault("points.onboardingBonus", 100)
	v.SetDefault("points.dailyBase", 10)
	v.SetDefault("points.dailyStreakStep", 5)
	v.SetDefault("points.dailyStreakMaxDays", 7)
	v.SetDefault("points.timezone", "America/Sao_Paulo")
	v.SetDefault("payments.currency", "brl")
	v.SetDefault("queue.exchange", "guia.payments")
	v.SetDefault("queue.queue", "payment.confirmed")
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Secrets.JWTKey == "" {
		errs = append(errs, errors.New("secrets.jwtKey is required"))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token.ttl must be positive"))
	}
	if c.Points.OnboardingBonus <= 0 || c.Points.DailyBase <= 0 {
		errs = append(errs, errors.New("points.onboardingBonus and points.dailyBase must be positive"))
	}
	if c.Points.DailyStreakStep < 0 || c.Points.DailyStreakMaxDays < 1 {
		errs = append(errs, errors.New("points.dailyStreakStep must be >= 0 and points.dailyStreakMaxDays >= 1"))
	}
	if _, err := time.LoadLocation(c.Points.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("points.timezone: %w", err))
	}

	seen := make(map[string]bool, len(c.Payments.Packages))
	for _, p := range c.Payments.Packages {
		switch {
		case p.ID == "":
			errs = append(errs, errors.New("payments.packages: id is required"))
		case seen[p.ID]:
			errs = append(errs, fmt.Errorf("payments.packages: duplicate id %q", p.ID))
		case p.Points <= 0 || p.PriceCents <= 0:
			errs = append(errs, fmt.Errorf("payments.packages: %q needs positive points and price", p.ID))
		}
		seen[p.ID] = true
	}

	return errors.Join(errs...)
}

// Location returns the timezone used to decide calendar days for the daily bonus.
func (p PointsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QueueEnabled reports whether payment confirmations go through AMQP.
func (c *Config) QueueEnabled() bool {
	return c.Queue.URL != ""
}
