package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/auricex/auricex/internal/domain"
)

// AccountReader defines what the account handler needs from the service
// layer.
type AccountReader interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
}

// AccountHandler serves the user-facing account endpoint.
type AccountHandler struct {
	accounts AccountReader
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountReader, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// GetAccount returns the balance context for a user.
// GET /api/account/{user_id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	profile, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "failed to get account")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
