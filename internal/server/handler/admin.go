package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
)

// AdminTradeService defines the administrative lifecycle operations.
type AdminTradeService interface {
	SettleByAdmin(ctx context.Context, tradeID string, outcome domain.Outcome) (domain.Trade, error)
	Reject(ctx context.Context, tradeID string) (domain.Trade, error)
	SettleExpired(ctx context.Context, limit int) (int, error)
}

// AdminAccountService defines the administrative account operations.
type AdminAccountService interface {
	AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	SetOutcomeMode(ctx context.Context, userID string, mode domain.OutcomeMode) error
	SetKycApproved(ctx context.Context, userID string, approved bool) error
	ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AdminHandler serves the admin console endpoints.
type AdminHandler struct {
	trades    AdminTradeService
	accounts  AdminAccountService
	sweepSize int
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler. sweepSize bounds how many trades
// a manually triggered sweep settles in one call.
func NewAdminHandler(trades AdminTradeService, accounts AdminAccountService, sweepSize int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		trades:    trades,
		accounts:  accounts,
		sweepSize: sweepSize,
		logger:    logger,
	}
}

// SettleTrade force-settles a trade with the given outcome.
// POST /api/admin/trades/{id}/settle
func (h *AdminHandler) SettleTrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	var body struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	trade, err := h.trades.SettleByAdmin(r.Context(), id, domain.Outcome(body.Outcome))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: admin settle failed",
			slog.String("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to settle trade")
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// RejectTrade cancels a trade and refunds the stake.
// POST /api/admin/trades/{id}/reject
func (h *AdminHandler) RejectTrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	trade, err := h.trades.Reject(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: admin reject failed",
			slog.String("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to reject trade")
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// SettleExpired runs one settlement sweep on demand.
// POST /api/admin/settle-expired
func (h *AdminHandler) SettleExpired(w http.ResponseWriter, r *http.Request) {
	settled, err := h.trades.SettleExpired(r.Context(), h.sweepSize)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: manual sweep failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"settled": settled})
}

// AdjustBalance credits or debits a user's balance.
// POST /api/admin/users/{id}/adjust
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var body struct {
		Amount string `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+body.Amount)
		return
	}

	balance, err := h.accounts.AdjustBalance(r.Context(), userID, amount, body.Reason)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: balance adjust failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to adjust balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": userID,
		"balance": balance.String(),
	})
}

// SetOutcomeMode sets a user's forced settlement mode.
// PUT /api/admin/users/{id}/outcome-mode
func (h *AdminHandler) SetOutcomeMode(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.accounts.SetOutcomeMode(r.Context(), userID, domain.OutcomeMode(body.Mode)); err != nil {
		writeDomainError(w, err, "failed to set outcome mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": userID,
		"mode":    body.Mode,
	})
}

// SetKyc sets a user's KYC flag.
// PUT /api/admin/users/{id}/kyc
func (h *AdminHandler) SetKyc(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var body struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.accounts.SetKycApproved(r.Context(), userID, body.Approved); err != nil {
		writeDomainError(w, err, "failed to set kyc")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"approved": body.Approved,
	})
}

// ListAudit returns audit entries, newest first.
// GET /api/admin/audit?limit=50&offset=0
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.accounts.ListAudit(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
