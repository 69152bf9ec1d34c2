package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err:  &APIError{Code: "TEST_ERROR", Message: "something went wrong"},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &APIError{Code: "TEST", Message: "test", Err: underlying}

	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}

	errNoWrap := &APIError{Code: "TEST", Message: "test"}
	if errNoWrap.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no wrapped error")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantCode   string
		wantMsg    string
		wantStatus int
		sentinel   error
	}{
		{"not found", NewNotFoundError("variant"), "NOT_FOUND", "variant not found", 404, ErrNotFound},
		{"validation", NewValidationError("lines", "cart is empty"), "VALIDATION_ERROR", "invalid lines: cart is empty", 400, ErrInvalidRequest},
		{"unauthorized", NewUnauthorizedError("invalid webhook signature"), "UNAUTHORIZED", "invalid webhook signature", 401, ErrUnauthorized},
		{"upstream", NewUpstreamError("Shopify", errors.New("connection refused")), "UPSTREAM_ERROR", "Shopify request failed", 502, ErrUpstreamError},
		{"platform user", NewPlatformUserError("Product is sold out"), "PLATFORM_USER_ERROR", "Product is sold out", 400, ErrPlatformUser},
		{"configuration", NewConfigError("missing variant for Lavender"), "CONFIGURATION_ERROR", "missing variant for Lavender", 500, ErrConfiguration},
		{"platform reported", NewPlatformError("Unable to create checkout"), "UPSTREAM_ERROR", "Unable to create checkout", 502, ErrUpstreamError},
		{"conflict", NewConflictError("checkout already in progress"), "CONFLICT", "checkout already in progress", 409, ErrConflict},
		{"rate limit", NewRateLimitError("checkout"), "RATE_LIMITED", "checkout rate limit exceeded, please retry later", 429, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.wantStatus)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
		})
	}
}

func TestNewInternalError(t *testing.T) {
	underlying := errors.New("nil map write")
	err := NewInternalError(underlying)

	if err.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", err.StatusCode)
	}
	if err.Message != "an internal error occurred" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Err != underlying {
		t.Error("wrapped error should be preserved")
	}
}

// Configuration and upstream failures must stay distinguishable for checkout callers.
func TestConfigAndUpstreamDistinct(t *testing.T) {
	cfg := NewConfigError("missing variant")
	up := NewUpstreamError("Shopify", errors.New("timeout"))

	if errors.Is(cfg, ErrUpstreamError) {
		t.Error("config error must not match ErrUpstreamError")
	}
	if errors.Is(up, ErrConfiguration) {
		t.Error("upstream error must not match ErrConfiguration")
	}
}

func TestAPIErrorWrapped(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewConfigError("x"))
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find *APIError in wrapped error")
	}
	if apiErr.Code != "CONFIGURATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}
