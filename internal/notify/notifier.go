// Package notify delivers operator alerts for trade lifecycle events over
// one or more channels (Telegram, Discord). Events can be filtered so
// operators only see the alerts they subscribed to.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/auricex/auricex/internal/domain"
)

// Event types emitted by the trade lifecycle.
const (
	EventTradeOpened     = "trade_opened"
	EventTradeSettled    = "trade_settled"
	EventTradeRejected   = "trade_rejected"
	EventBalanceAdjusted = "balance_adjusted"
	EventError           = "error"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel (e.g. "telegram").
	Name() string
}

// Notifier dispatches lifecycle events to all registered senders, filtered by
// event type. An empty event list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders when the event type passes the
// configured filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// TradeOpened formats and delivers an open alert.
func (n *Notifier) TradeOpened(ctx context.Context, t domain.Trade) error {
	msg := fmt.Sprintf("user %s %s %s stake %s @ %s, expires %s",
		t.UserID, t.Side, t.Symbol, t.Stake, t.ReferencePrice,
		t.ExpiresAt.UTC().Format("15:04:05 MST"))
	return n.Notify(ctx, EventTradeOpened, "Trade opened", msg)
}

// TradeSettled formats and delivers a settlement alert.
func (n *Notifier) TradeSettled(ctx context.Context, t domain.Trade) error {
	payout := "0"
	closing := "-"
	if t.Payout != nil {
		payout = t.Payout.String()
	}
	if t.ClosingPrice != nil {
		closing = t.ClosingPrice.String()
	}
	msg := fmt.Sprintf("trade %s for %s settled %s: stake %s, close %s, payout %s",
		t.ID, t.UserID, t.Outcome, t.Stake, closing, payout)
	return n.Notify(ctx, EventTradeSettled, "Trade settled", msg)
}

// TradeRejected formats and delivers a rejection alert.
func (n *Notifier) TradeRejected(ctx context.Context, t domain.Trade) error {
	msg := fmt.Sprintf("trade %s for %s rejected, stake %s refunded",
		t.ID, t.UserID, t.Stake)
	return n.Notify(ctx, EventTradeRejected, "Trade rejected", msg)
}

// dispatch fans out to every sender. One failing channel does not stop
// delivery to the others; failures are combined into a single error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
