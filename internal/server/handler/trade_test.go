package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auricex/auricex/internal/domain"
	"github.com/auricex/auricex/internal/service"
)

type stubTradeService struct {
	openErr   error
	openTrade domain.Trade
	getErr    error
	getTrade  domain.Trade
	listErr   error
	list      []domain.Trade

	gotOpen service.OpenRequest
}

func (s *stubTradeService) Open(_ context.Context, req service.OpenRequest) (domain.Trade, error) {
	s.gotOpen = req
	return s.openTrade, s.openErr
}

func (s *stubTradeService) GetTrade(_ context.Context, _ string) (domain.Trade, error) {
	return s.getTrade, s.getErr
}

func (s *stubTradeService) ListByUser(_ context.Context, _ string, _ domain.ListOpts) ([]domain.Trade, error) {
	return s.list, s.listErr
}

func (s *stubTradeService) ListByStatus(_ context.Context, _ domain.TradeStatus, _ domain.ListOpts) ([]domain.Trade, error) {
	return s.list, s.listErr
}

func newTradeHandler(stub *stubTradeService) *TradeHandler {
	return NewTradeHandler(stub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newRouter(h *TradeHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/trades", h.OpenTrade)
	mux.HandleFunc("GET /api/trades", h.ListTrades)
	mux.HandleFunc("GET /api/trades/{id}", h.GetTrade)
	return mux
}

const openBody = `{
	"user_id": "u1",
	"asset_class": "crypto",
	"asset_id": "BTCUSDT",
	"symbol": "BTC/USD",
	"side": "long",
	"stake": "100",
	"payout_rate": "80",
	"time_frame_seconds": 60
}`

func TestOpenTradeCreated(t *testing.T) {
	stub := &stubTradeService{openTrade: domain.Trade{ID: "t1", UserID: "u1"}}
	router := newRouter(newTradeHandler(stub))

	req := httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader(openBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", stub.gotOpen.UserID)
	assert.Equal(t, domain.SideLong, stub.gotOpen.Side)
	assert.Equal(t, "100", stub.gotOpen.Stake.String())
	assert.Contains(t, rec.Body.String(), `"id":"t1"`)
}

func TestOpenTradeErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"kyc required", domain.ErrKycRequired, http.StatusForbidden},
		{"active trade exists", domain.ErrActiveTradeExists, http.StatusConflict},
		{"invalid stake", domain.ErrInvalidStakeOrPrice, http.StatusBadRequest},
		{"unknown user", domain.ErrNotFound, http.StatusNotFound},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(newTradeHandler(&stubTradeService{openErr: tc.err}))

			req := httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader(openBody))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestOpenTradeRejectsMalformedBody(t *testing.T) {
	router := newRouter(newTradeHandler(&stubTradeService{}))

	req := httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader(`{"stake": 100`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader(`{"user_id":"u1"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/trades",
		strings.NewReader(`{"user_id":"u1","asset_id":"BTCUSDT","stake":"abc"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTradeNotFound(t *testing.T) {
	router := newRouter(newTradeHandler(&stubTradeService{getErr: domain.ErrNotFound}))

	req := httptest.NewRequest(http.MethodGet, "/api/trades/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTradesRequiresFilter(t *testing.T) {
	router := newRouter(newTradeHandler(&stubTradeService{}))

	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTradesEmptyResultIsArray(t *testing.T) {
	router := newRouter(newTradeHandler(&stubTradeService{}))

	req := httptest.NewRequest(http.MethodGet, "/api/trades?user_id=u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"trades":[]}`, rec.Body.String())
}
