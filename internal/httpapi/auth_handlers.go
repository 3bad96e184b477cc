package httpapi

import (
	"net/http"
	"strings"
	"time"

	"aulared.org/internal/audit"
)

type tokenRequest struct {
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.deps.Tokens.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "token issuance is not configured")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	// Tokens carry identity only: roles and permissions are resolved from the
	// database on every request, so nothing privilege-related is baked in here.
	signed, err := a.deps.Tokens.Generate(userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(a.deps.Tokens.TTL())
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user_id":    userID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
	})
}
