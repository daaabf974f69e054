package config

import (
	"fmt"
	"os"
	"strings"
)

// Config carries everything the process needs. It is built once in main and
// handed to each component at construction; nothing reads the environment
// after boot.
type Config struct {
	Env      string // development|production
	HTTPAddr string
	DBDSN    string

	Razorpay RazorpayConfig
	SMTP     SMTPConfig

	// Secret for server-generated idempotency keys.
	IdemKeySecret string

	// Allowed CORS origin for the storefront.
	ClientURL string
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// SMTPConfig drives the capture-receipt mailer. Leaving SMTP_HOST unset
// disables receipts entirely; the ledger never depends on mail delivery.
type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // "", "tls" or "starttls"
	SkipVerifyTLS bool
	From          string
	FromName      string
}

func (s SMTPConfig) Enabled() bool { return s.Host != "" }

func (c Config) IsDev() bool { return c.Env != "production" }

// Load reads the environment into a Config and fails on missing required
// variables so a misconfigured deploy dies at boot, not on first request.
func Load() (Config, error) {
	cfg := Config{
		Env:      getenv("APP_ENV", "development"),
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		DBDSN:    os.Getenv("DB_DSN"),
		Razorpay: RazorpayConfig{
			KeyID:         os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
			WebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:          os.Getenv("SMTP_HOST"),
			Port:          getenv("SMTP_PORT", "587"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			TLSMode:       getenv("SMTP_TLS_MODE", "starttls"),
			SkipVerifyTLS: os.Getenv("SMTP_SKIP_VERIFY_TLS") == "true",
			From:          getenv("SMTP_FROM", "no-reply@srijanmithila.com"),
			FromName:      getenv("SMTP_FROM_NAME", "SrijanMithila"),
		},
		IdemKeySecret: os.Getenv("IDEM_KEY_SECRET"),
		ClientURL:     getenv("CLIENT_URL", "*"),
	}

	var missing []string
	for name, val := range map[string]string{
		"DB_DSN":                  cfg.DBDSN,
		"RAZORPAY_KEY_ID":         cfg.Razorpay.KeyID,
		"RAZORPAY_KEY_SECRET":     cfg.Razorpay.KeySecret,
		"RAZORPAY_WEBHOOK_SECRET": cfg.Razorpay.WebhookSecret,
		"IDEM_KEY_SECRET":         cfg.IdemKeySecret,
	} {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
