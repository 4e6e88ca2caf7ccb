package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"moneybook/internal/log"
)

// handleStream serves GET /api/stream/{collection} as Server-Sent Events.
// The full ordered list is sent on connect and after every change. A slow
// client only ever receives the latest snapshot; intermediate ones are
// dropped so that writers are never blocked by a reader. Streams end when
// the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ctx := r.Context()
	collection := r.PathValue("collection")
	logger := log.FromContext(ctx)

	updates := make(chan []byte, 1)
	unsubscribe, err := s.svc.Subscribe(ctx, userID(r), collection, func(v any) {
		b, err := json.Marshal(v)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to encode snapshot",
				log.FieldCollection, collection,
				log.FieldError, err)
			return
		}
		for {
			select {
			case updates <- b:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(s.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case b := <-updates:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", collection, b); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
