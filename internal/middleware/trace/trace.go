// Package trace tags each request with an id and a request-scoped logger.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"moneybook/internal/log"
)

type ContextKey string

const RequestIDKey ContextKey = "request_id"

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

// Middleware reuses a well-formed incoming X-Request-ID or mints one, echoes
// it on the response and derives a logger carrying it from the one that
// log.Middleware put in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !validID(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		logger := log.FromContext(ctx).With(log.FieldRequestID, id)
		ctx = log.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// GetRequestID extracts the request id from ctx.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
