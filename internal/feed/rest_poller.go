package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/auricex/auricex/internal/domain"
)

// RestPoller polls the exchange ticker endpoint on a fixed interval and
// writes prices into the cache. It covers gaps when the websocket stream is
// down or an asset trades too thinly to tick.
type RestPoller struct {
	baseURL  string
	assets   []string
	interval time.Duration
	prices   domain.PriceCache
	client   *http.Client
	logger   *slog.Logger
}

// NewRestPoller creates a poller for the given asset symbols.
func NewRestPoller(baseURL string, assets []string, interval time.Duration, prices domain.PriceCache, logger *slog.Logger) *RestPoller {
	return &RestPoller{
		baseURL:  strings.TrimRight(baseURL, "/"),
		assets:   assets,
		interval: interval,
		prices:   prices,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(slog.String("component", "rest_poller")),
	}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Run polls until ctx is cancelled. An initial poll happens immediately so
// the cache is warm before the first trade open.
func (p *RestPoller) Run(ctx context.Context) error {
	if len(p.assets) == 0 {
		p.logger.Info("no assets configured, poller exiting")
		return nil
	}

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *RestPoller) pollOnce(ctx context.Context) {
	ticks, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("ticker poll failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	for _, t := range ticks {
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		if err := p.prices.SetPrice(ctx, t.Symbol, price, now); err != nil {
			p.logger.Debug("price cache write failed",
				slog.String("asset", t.Symbol),
				slog.String("error", err.Error()))
		}
	}
}

// fetch requests /api/v3/ticker/price for the configured symbols.
func (p *RestPoller) fetch(ctx context.Context) ([]tickerPrice, error) {
	symbols, err := json.Marshal(p.assets)
	if err != nil {
		return nil, fmt.Errorf("feed: marshal symbols: %w", err)
	}

	endpoint := p.baseURL + "/api/v3/ticker/price?symbols=" + url.QueryEscape(string(symbols))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: ticker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("feed: ticker status %d: %s", resp.StatusCode, string(body))
	}

	var ticks []tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&ticks); err != nil {
		return nil, fmt.Errorf("feed: decode ticker response: %w", err)
	}
	return ticks, nil
}
