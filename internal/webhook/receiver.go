package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxBodySize caps webhook payloads at 1MB.
const maxBodySize = 1 << 20

// Shopify webhook headers.
const (
	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// Receiver is the HTTP endpoint for Shopify webhooks.
//
// Responses: 500 when no secret is configured, 401 on a bad signature,
// 400 when a signed body is not JSON, otherwise 200 {"ok":true}. Nothing is
// dispatched unless the signature verifies.
type Receiver struct {
	secret     string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewReceiver(secret string, d *Dispatcher, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{secret: secret, dispatcher: d, logger: logger}
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if rc.secret == "" {
		rc.logger.Error("webhook secret not configured")
		writeResponse(w, http.StatusInternalServerError, response{Error: "Webhook secret not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeResponse(w, http.StatusRequestEntityTooLarge, response{Error: "Payload too large"})
			return
		}
		writeResponse(w, http.StatusBadRequest, response{Error: "Unreadable body"})
		return
	}

	if !Verify(rc.secret, body, r.Header.Get(HeaderHMAC)) {
		rc.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		writeResponse(w, http.StatusUnauthorized, response{})
		return
	}

	ev := Event{
		Topic:      headerOr(r, HeaderTopic, "unknown"),
		ShopDomain: headerOr(r, HeaderShopDomain, "unknown"),
		WebhookID:  r.Header.Get(HeaderWebhookID),
	}
	if !json.Valid(body) {
		rc.logger.Warn("webhook payload is not JSON", "topic", ev.Topic, "shop", ev.ShopDomain)
		writeResponse(w, http.StatusBadRequest, response{Error: "Invalid JSON payload"})
		return
	}
	ev.Payload = body

	rc.logger.Info("shopify webhook received", "topic", ev.Topic, "shop", ev.ShopDomain, "webhook_id", ev.WebhookID)

	if _, err := rc.dispatcher.Dispatch(r.Context(), ev); err != nil {
		// Acknowledged regardless of handler outcome.
		rc.logger.Error("webhook handler failed", "topic", ev.Topic, "error", err)
	}
	writeResponse(w, http.StatusOK, response{OK: true})
}

func headerOr(r *http.Request, name, fallback string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return fallback
}

func writeResponse(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
