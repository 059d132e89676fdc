// Package feed keeps the price cache fresh. The websocket stream is the
// primary source; the REST poller backfills assets the stream has not ticked
// recently.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auricex/auricex/internal/domain"
)

const (
	reconnectDelay = 2 * time.Second
	readDeadline   = 30 * time.Second

	// PriceChannel is the Pub/Sub channel ticks are fanned out on.
	PriceChannel = "prices"
)

// PriceTick is the JSON shape published on PriceChannel.
type PriceTick struct {
	Event   string  `json:"event"`
	AssetID string  `json:"asset_id"`
	Price   float64 `json:"price"`
	At      string  `json:"at"`
}

// ExchangeWSFeed subscribes to exchange miniTicker streams over a websocket
// and writes each tick into the price cache. It reconnects with a fixed
// delay on disconnect.
type ExchangeWSFeed struct {
	wsURL  string
	assets []string
	prices domain.PriceCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewExchangeWSFeed creates a feed for the given asset symbols. The bus is
// optional; when nil, ticks are cached but not fanned out.
func NewExchangeWSFeed(wsURL string, assets []string, prices domain.PriceCache, bus domain.SignalBus, logger *slog.Logger) *ExchangeWSFeed {
	return &ExchangeWSFeed{
		wsURL:  wsURL,
		assets: assets,
		prices: prices,
		bus:    bus,
		logger: logger.With(slog.String("component", "exchange_ws_feed")),
	}
}

// miniTicker is the exchange's 24h rolling ticker event. Only the symbol,
// last price and event time are used.
type miniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Run connects, subscribes and processes ticks until ctx is cancelled.
func (f *ExchangeWSFeed) Run(ctx context.Context) error {
	if len(f.assets) == 0 {
		f.logger.Info("no assets configured, feed exiting")
		return nil
	}

	for {
		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("exchange ws disconnected, reconnecting",
				slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *ExchangeWSFeed) runConnection(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	params := make([]string, 0, len(f.assets))
	for _, a := range f.assets {
		params = append(params, strings.ToLower(a)+"@miniTicker")
	}
	if err := conn.WriteJSON(subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: 1}); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("exchange ws subscribed", slog.Int("assets", len(f.assets)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(ctx, msg)
	}
}

func (f *ExchangeWSFeed) handleMessage(ctx context.Context, msg []byte) {
	var tick miniTicker
	if err := json.Unmarshal(msg, &tick); err != nil {
		return
	}
	// Subscription acks and other control frames carry no event type.
	if tick.EventType != "24hrMiniTicker" || tick.Symbol == "" {
		return
	}

	price, err := strconv.ParseFloat(tick.LastPrice, 64)
	if err != nil || price <= 0 {
		return
	}

	at := time.Now()
	if tick.EventTime > 0 {
		at = time.UnixMilli(tick.EventTime)
	}

	if err := f.prices.SetPrice(ctx, tick.Symbol, price, at); err != nil {
		f.logger.Debug("price cache write failed",
			slog.String("asset", tick.Symbol),
			slog.String("error", err.Error()))
		return
	}

	if f.bus != nil {
		payload, err := json.Marshal(PriceTick{
			Event:   "price_tick",
			AssetID: tick.Symbol,
			Price:   price,
			At:      at.UTC().Format(time.RFC3339Nano),
		})
		if err == nil {
			_ = f.bus.Publish(ctx, PriceChannel, payload)
		}
	}
}
