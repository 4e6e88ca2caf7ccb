package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareGeneratesID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("request id = %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
	}
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	tests := []struct {
		incoming string
		keep     bool
	}{
		{"abc-123_X", true},
		{"has space", false},
		{strings.Repeat("a", 65), false},
		{"", false},
	}
	for _, tt := range tests {
		var seen string
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, tt.incoming)
		h.ServeHTTP(httptest.NewRecorder(), r)

		if (seen == tt.incoming) != tt.keep {
			t.Errorf("incoming %q: got %q, keep=%v", tt.incoming, seen, tt.keep)
		}
	}
}
