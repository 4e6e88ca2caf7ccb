package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"
	"moneybook/internal/services"
	"moneybook/internal/session"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// validationErrors are reported to the client verbatim with a 400.
var validationErrors = []error{
	errBadRequest,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrInvalidWalletType,
	core.ErrEmptyCategory,
	core.ErrEmptyWallet,
	core.ErrEmptyName,
	core.ErrInvalidDate,
	core.ErrPasswordMismatch,
	core.ErrWeakPassword,
	services.ErrInvalidPeriod,
	docstore.ErrInvalidPath,
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldComponent, log.ComponentHTTP, log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps err onto a status code. Server-side failures are logged and
// hidden from the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case isValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON reads one JSON object from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// yearMonth parses year and month from query parameters, defaulting to the
// current month in loc.
func yearMonth(r *http.Request, loc *time.Location) (year, month int, err error) {
	now := time.Now().In(loc)
	year, month = now.Year(), int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: year %q", errBadRequest, v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: month %q", errBadRequest, v)
		}
	}
	return year, month, nil
}

type createdResponse struct {
	ID string `json:"id"`
}
