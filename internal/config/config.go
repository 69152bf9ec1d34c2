// Package config handles loading and validation of service configuration.
// Supports development (.env file and env vars), a JSON CONFIG_FILE, and
// production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"golang.org/x/mod/semver"

	"aura-storefront/internal/model"
)

const (
	// DefaultAPIVersion is the Storefront API version used when SHOPIFY_API_VERSION is unset.
	DefaultAPIVersion = "2024-10"
	// minAPIVersion is the oldest Storefront API version with cartCreate checkoutUrl.
	minAPIVersion = "2024-01"

	defaultProductHandle = "auradroplet"
	defaultSecretName    = "storefront"
)

// Config holds all service configuration.
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretName string

	Shopify ShopifyConfig

	// DefaultVariantID is used by quick checkout when no variant is given.
	DefaultVariantID     string
	DefaultProductHandle string

	Storage  StorageConfig
	Shipping ShippingConfig

	// RateLimitRPS limits checkout creation per client. Zero disables limiting.
	RateLimitRPS float64
	// TrustedProxyHops is how many proxies append to X-Forwarded-For in
	// front of the service. Zero keys clients by remote address only.
	TrustedProxyHops int
	// ResolveVariants looks up missing catalog variants by handle at startup.
	ResolveVariants bool
}

// ShopifyConfig contains store credentials.
// In production the secret fields are loaded from Secret Manager as JSON.
type ShopifyConfig struct {
	StoreDomain     string `json:"store_domain"`
	StorefrontToken string `json:"storefront_token"`
	AdminToken      string `json:"admin_token,omitempty"`
	WebhookSecret   string `json:"webhook_secret,omitempty"`
	APIVersion      string `json:"api_version,omitempty"`
}

// StorageConfig selects the cart persistence backend.
type StorageConfig struct {
	Backend  string `json:"backend"` // "memory", "file" or "redis"
	Dir      string `json:"dir,omitempty"`
	RedisURL string `json:"redis_url,omitempty"`
}

// ShippingConfig holds shipping amounts in cents.
type ShippingConfig struct {
	FreeThreshold int64
	FlatRate      int64
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → .env + ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	if os.Getenv("ENVIRONMENT") != "production" {
		if err := loadDotEnv(envOrDefault("ENV_FILE", ".env")); err != nil {
			return nil, err
		}
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading shopify secrets: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		SecretName:  envOrDefault("SECRET_NAME", defaultSecretName),
		Shopify: ShopifyConfig{
			StoreDomain:     os.Getenv("SHOPIFY_STORE_DOMAIN"),
			StorefrontToken: os.Getenv("SHOPIFY_STOREFRONT_TOKEN"),
			AdminToken:      os.Getenv("SHOPIFY_ADMIN_TOKEN"),
			WebhookSecret:   os.Getenv("SHOPIFY_WEBHOOK_SECRET"),
			APIVersion:      envOrDefault("SHOPIFY_API_VERSION", DefaultAPIVersion),
		},
		DefaultVariantID: withDefault(
			os.Getenv("DEFAULT_VARIANT_ID"),
			os.Getenv("NEXT_PUBLIC_SHOPIFY_VARIANT_ID"),
		),
		DefaultProductHandle: envOrDefault("DEFAULT_PRODUCT_HANDLE", defaultProductHandle),
		Storage: StorageConfig{
			Backend:  envOrDefault("CART_STORAGE", "memory"),
			Dir:      os.Getenv("CART_STORAGE_DIR"),
			RedisURL: os.Getenv("REDIS_URL"),
		},
	}

	var err error
	if cfg.Shipping.FreeThreshold, err = parseDollars("FREE_SHIPPING_THRESHOLD", "50.00"); err != nil {
		return nil, err
	}
	if cfg.Shipping.FlatRate, err = parseDollars("SHIPPING_FLAT_RATE", "5.00"); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil || cfg.RateLimitRPS < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
	}
	if v := os.Getenv("TRUSTED_PROXY_HOPS"); v != "" {
		if cfg.TrustedProxyHops, err = strconv.Atoi(v); err != nil || cfg.TrustedProxyHops < 0 {
			return nil, fmt.Errorf("invalid TRUSTED_PROXY_HOPS %q", v)
		}
	}
	if v := os.Getenv("RESOLVE_VARIANTS"); v != "" {
		if cfg.ResolveVariants, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid RESOLVE_VARIANTS %q", v)
		}
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port                 string        `json:"port"`
		Environment          string        `json:"environment"`
		LogLevel             string        `json:"log_level"`
		Shopify              ShopifyConfig `json:"shopify"`
		DefaultVariantID     string        `json:"default_variant_id"`
		DefaultProductHandle string        `json:"default_product_handle"`
		Storage              StorageConfig `json:"storage"`
		FreeShippingAt       string        `json:"free_shipping_threshold"`
		ShippingFlatRate     string        `json:"shipping_flat_rate"`
		RateLimitRPS         float64       `json:"rate_limit_rps"`
		TrustedProxyHops     int           `json:"trusted_proxy_hops"`
		ResolveVariants      bool          `json:"resolve_variants"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:                 withDefault(fileConfig.Port, "8080"),
		Environment:          withDefault(fileConfig.Environment, "development"),
		LogLevel:             withDefault(fileConfig.LogLevel, "info"),
		Shopify:              fileConfig.Shopify,
		DefaultVariantID:     fileConfig.DefaultVariantID,
		DefaultProductHandle: withDefault(fileConfig.DefaultProductHandle, defaultProductHandle),
		Storage:              fileConfig.Storage,
		RateLimitRPS:         fileConfig.RateLimitRPS,
		TrustedProxyHops:     fileConfig.TrustedProxyHops,
		ResolveVariants:      fileConfig.ResolveVariants,
	}
	if cfg.Shipping.FreeThreshold, err = dollarsToCents("free_shipping_threshold", withDefault(fileConfig.FreeShippingAt, "50.00")); err != nil {
		return nil, err
	}
	if cfg.Shipping.FlatRate, err = dollarsToCents("shipping_flat_rate", withDefault(fileConfig.ShippingFlatRate, "5.00")); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS < 0 {
		return nil, fmt.Errorf("invalid rate_limit_rps %v", cfg.RateLimitRPS)
	}
	if cfg.TrustedProxyHops < 0 {
		return nil, fmt.Errorf("invalid trusted_proxy_hops %d", cfg.TrustedProxyHops)
	}
	cfg.Shopify.APIVersion = withDefault(cfg.Shopify.APIVersion, DefaultAPIVersion)
	cfg.Storage.Backend = withDefault(cfg.Storage.Backend, "memory")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// shopifySecrets is the Secret Manager payload.
type shopifySecrets struct {
	StorefrontToken string `json:"storefront_token"`
	WebhookSecret   string `json:"webhook_secret"`
	AdminToken      string `json:"admin_token"`
}

// loadFromSecretManager fetches Shopify credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_name}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretName)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}
	return c.applySecrets(result.Payload.Data)
}

// applySecrets overlays non-empty secret values onto the Shopify config.
func (c *Config) applySecrets(data []byte) error {
	var s shopifySecrets
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	c.Shopify.StorefrontToken = withDefault(s.StorefrontToken, c.Shopify.StorefrontToken)
	c.Shopify.WebhookSecret = withDefault(s.WebhookSecret, c.Shopify.WebhookSecret)
	c.Shopify.AdminToken = withDefault(s.AdminToken, c.Shopify.AdminToken)
	return nil
}

// validate checks that all required configuration fields are present.
// The webhook secret is optional; the webhook route reports it when unset.
func (c *Config) validate() error {
	c.Shopify.StoreDomain = normalizeDomain(c.Shopify.StoreDomain)
	if c.Shopify.StoreDomain == "" {
		return fmt.Errorf("SHOPIFY_STORE_DOMAIN is required")
	}
	if c.Shopify.StorefrontToken == "" {
		return fmt.Errorf("SHOPIFY_STOREFRONT_TOKEN is required")
	}
	if err := checkAPIVersion(c.Shopify.APIVersion); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case "memory":
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("CART_STORAGE_DIR is required for file storage")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown CART_STORAGE %q (memory, file or redis)", c.Storage.Backend)
	}

	if c.Shipping.FreeThreshold < 0 || c.Shipping.FlatRate < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	return nil
}

// checkAPIVersion validates a Storefront API version ("YYYY-MM") and
// rejects versions older than minAPIVersion.
func checkAPIVersion(v string) error {
	sv := toSemver(v)
	if !semver.IsValid(sv) {
		return fmt.Errorf("invalid SHOPIFY_API_VERSION %q (want YYYY-MM)", v)
	}
	if semver.Compare(sv, toSemver(minAPIVersion)) < 0 {
		return fmt.Errorf("SHOPIFY_API_VERSION %s is older than %s", v, minAPIVersion)
	}
	return nil
}

// toSemver maps "2024-10" to "v2024.10.0" so versions compare numerically.
func toSemver(v string) string {
	year, month, ok := strings.Cut(strings.TrimSpace(v), "-")
	if !ok || len(year) != 4 || len(month) != 2 {
		return ""
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return ""
	}
	return fmt.Sprintf("v%s.%d.0", year, m)
}

// normalizeDomain strips a scheme and path from a store domain.
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain, _, _ = strings.Cut(domain, "/")
	return domain
}

// parseDollars reads a dollar amount env var into cents.
func parseDollars(key, defaultVal string) (int64, error) {
	return dollarsToCents(key, envOrDefault(key, defaultVal))
}

// dollarsToCents converts a non-negative dollar string such as "$5.00".
// name labels the setting in the error.
func dollarsToCents(name, v string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(v), "$")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, v)
	}
	return model.ParseCents(s), nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
