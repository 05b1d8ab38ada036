// Package shop is the storefront and order-management backend: product
// listings read from the admin grid's sheet store, order placement with
// per-tenant invoice numbering, payment webhooks, and the two admin consoles'
// permission layer.
package shop

import (
	"os"
	"strings"
	"time"
)

// Tenants are the two parallel admin consoles.
var Tenants = []string{"main", "virtual"}

// Config is read from the environment, one value per knob.
type Config struct {
	Port        string
	DatabaseURL string

	// ProductsSheetID designates which sheet the storefront serves.
	ProductsSheetID string

	// AdminEmails maps tenant -> allowlisted admin emails.
	AdminEmails map[string][]string
	PermTTL     time.Duration

	WompiSecret   string
	StripeSecret  string
	ResendAPIKey  string
	MailFrom      string
	OAuthClientID string
	OAuthSecret   string
	OAuthRedirect string
	SessionSecret string

	// DevMode trusts the X-Admin-Email header instead of OAuth.
	DevMode bool
}

// ConfigFromEnv loads the configuration with development defaults.
func ConfigFromEnv() Config {
	return Config{
		Port:            env("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ProductsSheetID: os.Getenv("PRODUCTS_SHEET_ID"),
		AdminEmails: map[string][]string{
			"main":    splitEnv("ADMIN_EMAILS_MAIN"),
			"virtual": splitEnv("ADMIN_EMAILS_VIRTUAL"),
		},
		PermTTL:       durationEnv("ADMIN_PERM_TTL", 5*time.Minute),
		WompiSecret:   os.Getenv("WOMPI_EVENTS_SECRET"),
		StripeSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		MailFrom:      env("MAIL_FROM", "pedidos@distrinaranjos.example"),
		OAuthClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		OAuthSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthRedirect: os.Getenv("GOOGLE_REDIRECT_URL"),
		SessionSecret: env("SESSION_SECRET", "dev-session-secret"),
		DevMode:       env("DEV_MODE", "") != "",
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
