package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
	"github.com/auricex/auricex/internal/service"
)

// TradeService defines what the trade handler needs from the service layer.
type TradeService interface {
	Open(ctx context.Context, req service.OpenRequest) (domain.Trade, error)
	GetTrade(ctx context.Context, id string) (domain.Trade, error)
	ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error)
	ListByStatus(ctx context.Context, status domain.TradeStatus, opts domain.ListOpts) ([]domain.Trade, error)
}

// TradeHandler serves the trade lifecycle endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// openTradeRequest is the JSON body for POST /api/trades. Stake and payout
// rate travel as strings so no float precision is lost in transit.
type openTradeRequest struct {
	UserID           string `json:"user_id"`
	AssetClass       string `json:"asset_class"`
	AssetID          string `json:"asset_id"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	Stake            string `json:"stake"`
	PayoutRate       string `json:"payout_rate,omitempty"`
	TimeFrameSeconds int64  `json:"time_frame_seconds"`
}

type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// OpenTrade opens a trade for a user.
// POST /api/trades
func (h *TradeHandler) OpenTrade(w http.ResponseWriter, r *http.Request) {
	var body openTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID == "" || body.AssetID == "" || body.Stake == "" {
		writeError(w, http.StatusBadRequest, "user_id, asset_id and stake are required")
		return
	}

	stake, err := decimal.NewFromString(body.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid stake: "+body.Stake)
		return
	}
	rate := decimal.Zero
	if body.PayoutRate != "" {
		if rate, err = decimal.NewFromString(body.PayoutRate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payout_rate: "+body.PayoutRate)
			return
		}
	}

	trade, err := h.trades.Open(r.Context(), service.OpenRequest{
		UserID:     body.UserID,
		AssetClass: body.AssetClass,
		AssetID:    body.AssetID,
		Symbol:     body.Symbol,
		Side:       domain.Side(body.Side),
		Stake:      stake,
		PayoutRate: rate,
		TimeFrame:  time.Duration(body.TimeFrameSeconds) * time.Second,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: open trade failed",
			slog.String("user_id", body.UserID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to open trade")
		return
	}

	writeJSON(w, http.StatusCreated, trade)
}

// GetTrade returns one trade by ID.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	trade, err := h.trades.GetTrade(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get trade")
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// ListTrades lists trades by user or by status.
// GET /api/trades?user_id=...&status=...&limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	status := q.Get("status")

	if userID == "" && status == "" {
		writeError(w, http.StatusBadRequest, "user_id or status query parameter required")
		return
	}

	opts := parseListOpts(r)

	var (
		trades []domain.Trade
		err    error
	)
	if userID != "" {
		trades, err = h.trades.ListByUser(r.Context(), userID, opts)
	} else {
		trades, err = h.trades.ListByStatus(r.Context(), domain.TradeStatus(status), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
