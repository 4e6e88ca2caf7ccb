package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"moneybook/internal/core"
	"moneybook/internal/log"
	"moneybook/internal/session"
)

type identityKey struct{}

func withIdentity(ctx context.Context, id *session.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// identityFrom returns the caller resolved by requireUser.
func identityFrom(ctx context.Context) *session.Identity {
	id, _ := ctx.Value(identityKey{}).(*session.Identity)
	return id
}

func userID(r *http.Request) string {
	if id := identityFrom(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireUser rejects requests without a valid bearer token and puts the
// caller's identity in the context. Authenticating seeds a new user's
// default data.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.sessions.Authenticate(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			fail(w, r, err)
			return
		}
		ctx := withIdentity(r.Context(), id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, id.UserID))
		next(w, r.WithContext(ctx))
	}
}

type sessionRequest struct {
	Token string `json:"token"`
}

// handleSession exchanges an identity token for the resolved identity.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.sessions.Authenticate(r.Context(), req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, session.SignInFailure(""))
		return
	}
	writeJSON(w, http.StatusOK, id)
}

type registrationRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirmPassword"`
}

// handleValidateRegistration runs the checks made before an account is
// created with the identity provider.
func handleValidateRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := session.ValidateRegistration(req.Password, req.Confirm); err != nil {
		msg := "Passwords do not match"
		if errors.Is(err, core.ErrWeakPassword) {
			msg = "Password must be at least 6 characters"
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
