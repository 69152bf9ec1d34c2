package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// WithID returns a context carrying the session ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the session ID stored by Middleware.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Middleware resolves the request's cart session. A request without a
// Cart-Session header gets a new session; the ID is echoed in the response
// header either way. A malformed header is rejected with 400.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if header := r.Header.Get(Header); header != "" {
				parsed, err := Parse(header)
				if err != nil {
					logger.Warn("invalid Cart-Session header",
						slog.String("header", header),
						slog.String("error", err.Error()))
					writeSessionError(w, "Invalid Cart-Session header: "+err.Error())
					return
				}
				id = parsed
			} else {
				id = New()
				logger.Debug("cart session issued", slog.String("session", id))
			}

			w.Header().Set(Header, Format(id))
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}{Error: message, Code: "INVALID_SESSION"})
}
