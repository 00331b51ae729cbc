package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	MongoDBURI      string
	MongoDBPassword string
	MongoDBName     string
	Environment     string
	LogLevel        slog.Level

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	Currency              string

	JWTSecret string
	JWKSURL   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	RabbitMQURL string

	CORSOrigins          []string
	PendingRecoveryAfter time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnvWithDefault("PORT", "8080"),
		MongoDBURI:      os.Getenv("MONGODB_URI"),
		MongoDBPassword: os.Getenv("MONGODB_PASSWORD"),
		MongoDBName:     getEnvWithDefault("MONGODB_DB", "eventpass"),
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		Currency:              strings.ToUpper(getEnvWithDefault("CURRENCY", "INR")),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWKSURL:   os.Getenv("JWKS_URL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		CORSOrigins: splitList(getEnvWithDefault("CORS_ORIGINS", "http://localhost:3000")),
	}

	port, err := strconv.Atoi(getEnvWithDefault("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT must be a number: %w", err)
	}
	cfg.SMTPPort = port

	recovery, err := time.ParseDuration(getEnvWithDefault("PENDING_RECOVERY_AFTER", "2m"))
	if err != nil {
		return nil, fmt.Errorf("PENDING_RECOVERY_AFTER must be a duration: %w", err)
	}
	cfg.PendingRecoveryAfter = recovery

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvWithDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %w", err)
	}

	// Validate required fields
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.RazorpayKeyID == "" {
		return nil, fmt.Errorf("RAZORPAY_KEY_ID is required")
	}
	if cfg.RazorpayKeySecret == "" {
		return nil, fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}
	if cfg.RazorpayWebhookSecret == "" {
		return nil, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return nil, fmt.Errorf("JWT_SECRET or JWKS_URL is required")
	}
	if cfg.MailEnabled() && cfg.MailFrom == "" {
		return nil, fmt.Errorf("MAIL_FROM is required when SMTP_HOST is set")
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) BrokerEnabled() bool {
	return c.RabbitMQURL != ""
}
