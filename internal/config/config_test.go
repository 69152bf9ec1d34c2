package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var configEnvVars = []string{
	"CONFIG_FILE", "ENV_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT", "SECRET_NAME",
	"SHOPIFY_STORE_DOMAIN", "SHOPIFY_STOREFRONT_TOKEN", "SHOPIFY_ADMIN_TOKEN",
	"SHOPIFY_WEBHOOK_SECRET", "SHOPIFY_API_VERSION", "DEFAULT_VARIANT_ID",
	"NEXT_PUBLIC_SHOPIFY_VARIANT_ID", "DEFAULT_PRODUCT_HANDLE", "CART_STORAGE",
	"CART_STORAGE_DIR", "REDIS_URL", "FREE_SHIPPING_THRESHOLD", "SHIPPING_FLAT_RATE",
	"RATE_LIMIT_RPS", "TRUSTED_PROXY_HOPS", "RESOLVE_VARIANTS",
}

// setEnv unsets every config variable, then applies vars. t.Setenv
// restores the original values when the test ends.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"SHOPIFY_STORE_DOMAIN":     "aura.myshopify.com",
		"SHOPIFY_STOREFRONT_TOKEN": "sf_test",
	}
}

func TestLoadFromEnv(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["LOG_LEVEL"] = "debug"
	env["SHOPIFY_WEBHOOK_SECRET"] = "whsec"
	env["NEXT_PUBLIC_SHOPIFY_VARIANT_ID"] = "gid://shopify/ProductVariant/1"
	env["FREE_SHIPPING_THRESHOLD"] = "$75"
	env["SHIPPING_FLAT_RATE"] = "7.50"
	env["RATE_LIMIT_RPS"] = "2.5"
	env["TRUSTED_PROXY_HOPS"] = "1"
	env["RESOLVE_VARIANTS"] = "true"
	setEnv(t, env)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" || cfg.LogLevel != "debug" || cfg.Environment != "development" {
		t.Errorf("server settings = %s %s %s", cfg.Port, cfg.LogLevel, cfg.Environment)
	}
	if cfg.Shopify.APIVersion != "2024-10" {
		t.Errorf("APIVersion = %s, want 2024-10", cfg.Shopify.APIVersion)
	}
	if cfg.Shopify.WebhookSecret != "whsec" {
		t.Errorf("WebhookSecret = %s", cfg.Shopify.WebhookSecret)
	}
	if cfg.DefaultVariantID != "gid://shopify/ProductVariant/1" {
		t.Errorf("DefaultVariantID = %s", cfg.DefaultVariantID)
	}
	if cfg.DefaultProductHandle != "auradroplet" {
		t.Errorf("DefaultProductHandle = %s", cfg.DefaultProductHandle)
	}
	if cfg.Shipping.FreeThreshold != 7500 || cfg.Shipping.FlatRate != 750 {
		t.Errorf("Shipping = %+v", cfg.Shipping)
	}
	if cfg.TrustedProxyHops != 1 {
		t.Errorf("TrustedProxyHops = %d, want 1", cfg.TrustedProxyHops)
	}
	if cfg.RateLimitRPS != 2.5 || !cfg.ResolveVariants {
		t.Errorf("RateLimitRPS = %v, ResolveVariants = %v", cfg.RateLimitRPS, cfg.ResolveVariants)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %s, want memory", cfg.Storage.Backend)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, baseEnv())
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shipping.FreeThreshold != 5000 || cfg.Shipping.FlatRate != 500 {
		t.Errorf("Shipping = %+v, want 5000/500", cfg.Shipping)
	}
	if cfg.SecretName != "storefront" {
		t.Errorf("SecretName = %s", cfg.SecretName)
	}
	if cfg.Shopify.WebhookSecret != "" {
		t.Error("webhook secret should be optional")
	}
}

func TestDefaultVariantPrecedence(t *testing.T) {
	env := baseEnv()
	env["DEFAULT_VARIANT_ID"] = "gid://a"
	env["NEXT_PUBLIC_SHOPIFY_VARIANT_ID"] = "gid://b"
	setEnv(t, env)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultVariantID != "gid://a" {
		t.Errorf("DefaultVariantID = %s, want gid://a", cfg.DefaultVariantID)
	}
}

func TestLoadDotEnv(t *testing.T) {
	setEnv(t, nil)
	path := filepath.Join(t.TempDir(), ".env")
	content := "SHOPIFY_STORE_DOMAIN=dotenv.myshopify.com\nSHOPIFY_STOREFRONT_TOKEN=from_file\nPORT=7070\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("PORT", "6060") // already set, not overridden

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Shopify.StoreDomain != "dotenv.myshopify.com" || cfg.Shopify.StorefrontToken != "from_file" {
		t.Errorf("Shopify = %+v", cfg.Shopify)
	}
	if cfg.Port != "6060" {
		t.Errorf("Port = %s, want 6060", cfg.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing domain", map[string]string{"SHOPIFY_STOREFRONT_TOKEN": "t"}, "SHOPIFY_STORE_DOMAIN"},
		{"missing token", map[string]string{"SHOPIFY_STORE_DOMAIN": "a.myshopify.com"}, "SHOPIFY_STOREFRONT_TOKEN"},
		{"old api version", with(baseEnv(), "SHOPIFY_API_VERSION", "2023-07"), "older than"},
		{"bad api version", with(baseEnv(), "SHOPIFY_API_VERSION", "latest"), "invalid SHOPIFY_API_VERSION"},
		{"bad month", with(baseEnv(), "SHOPIFY_API_VERSION", "2024-13"), "invalid SHOPIFY_API_VERSION"},
		{"unknown storage", with(baseEnv(), "CART_STORAGE", "s3"), "unknown CART_STORAGE"},
		{"file without dir", with(baseEnv(), "CART_STORAGE", "file"), "CART_STORAGE_DIR"},
		{"redis without url", with(baseEnv(), "CART_STORAGE", "redis"), "REDIS_URL"},
		{"bad threshold", with(baseEnv(), "FREE_SHIPPING_THRESHOLD", "fifty"), "FREE_SHIPPING_THRESHOLD"},
		{"negative flat rate", with(baseEnv(), "SHIPPING_FLAT_RATE", "-5"), "SHIPPING_FLAT_RATE"},
		{"bad rps", with(baseEnv(), "RATE_LIMIT_RPS", "-1"), "RATE_LIMIT_RPS"},
		{"negative proxy hops", with(baseEnv(), "TRUSTED_PROXY_HOPS", "-1"), "TRUSTED_PROXY_HOPS"},
		{"bad bool", with(baseEnv(), "RESOLVE_VARIANTS", "maybe"), "RESOLVE_VARIANTS"},
		{"production without project", with(baseEnv(), "ENVIRONMENT", "production"), "GCP_PROJECT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := Load(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func with(env map[string]string, k, v string) map[string]string {
	env[k] = v
	return env
}

func TestLoadFromFile(t *testing.T) {
	setEnv(t, nil)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": "3000",
		"shopify": {
			"store_domain": "https://file.myshopify.com/",
			"storefront_token": "sf_file",
			"webhook_secret": "wh_file"
		},
		"storage": {"backend": "file", "dir": "/tmp/carts"},
		"shipping_flat_rate": "4.00"
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.Shopify.StoreDomain != "file.myshopify.com" {
		t.Errorf("StoreDomain = %s, want normalized domain", cfg.Shopify.StoreDomain)
	}
	if cfg.Shopify.APIVersion != DefaultAPIVersion {
		t.Errorf("APIVersion = %s", cfg.Shopify.APIVersion)
	}
	if cfg.Storage.Dir != "/tmp/carts" || cfg.Shipping.FlatRate != 400 || cfg.Shipping.FreeThreshold != 5000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	setEnv(t, nil)
	dir := t.TempDir()

	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.json"))
	if _, err := Load(context.Background()); err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("missing file err = %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0o600)
	t.Setenv("CONFIG_FILE", bad)
	if _, err := Load(context.Background()); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("bad json err = %v", err)
	}

	shop := `"shopify": {"store_domain": "a.myshopify.com", "storefront_token": "t"}`
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad threshold", `{` + shop + `, "free_shipping_threshold": "fifty"}`, "free_shipping_threshold"},
		{"bad flat rate", `{` + shop + `, "shipping_flat_rate": "five"}`, "shipping_flat_rate"},
		{"negative flat rate", `{` + shop + `, "shipping_flat_rate": "-1.00"}`, "shipping_flat_rate"},
		{"negative rps", `{` + shop + `, "rate_limit_rps": -2}`, "rate_limit_rps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "config.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			t.Setenv("CONFIG_FILE", path)
			_, err := Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{Shopify: ShopifyConfig{StorefrontToken: "env", WebhookSecret: "env_wh"}}
	if err := cfg.applySecrets([]byte(`{"storefront_token":"sm","admin_token":"adm"}`)); err != nil {
		t.Fatal(err)
	}
	if cfg.Shopify.StorefrontToken != "sm" || cfg.Shopify.WebhookSecret != "env_wh" || cfg.Shopify.AdminToken != "adm" {
		t.Errorf("Shopify = %+v", cfg.Shopify)
	}
	if err := cfg.applySecrets([]byte(`nope`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestCheckAPIVersion(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"2024-01", true},
		{"2024-10", true},
		{"2025-04", true},
		{"2023-10", false},
		{"2024-1", false},
		{"24-10", false},
		{"unstable", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkAPIVersion(tt.version)
			if (err == nil) != tt.ok {
				t.Errorf("checkAPIVersion(%s) = %v, want ok=%v", tt.version, err, tt.ok)
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct{ in, want string }{
		{"aura.myshopify.com", "aura.myshopify.com"},
		{"https://aura.myshopify.com", "aura.myshopify.com"},
		{"http://aura.myshopify.com/admin", "aura.myshopify.com"},
		{" aura.myshopify.com ", "aura.myshopify.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeDomain(tt.in); got != tt.want {
			t.Errorf("normalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_CONFIG_VAR", "custom")
	if got := envOrDefault("TEST_CONFIG_VAR", "default"); got != "custom" {
		t.Errorf("envOrDefault = %s, want custom", got)
	}
	if got := envOrDefault("TEST_CONFIG_VAR_UNSET", "default"); got != "default" {
		t.Errorf("envOrDefault = %s, want default", got)
	}
}

func TestWithDefault(t *testing.T) {
	if withDefault("", "x") != "x" || withDefault("y", "x") != "y" {
		t.Error("withDefault mismatch")
	}
}
