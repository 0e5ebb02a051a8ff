// Package notifier turns change events into chat announcements.
package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pricewatch/metrics"
	"pricewatch/models"
)

// Sender delivers a text message to a chat
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Notifier announces Created and PriceChanged events to one chat. Delivery
// is best effort: failures are logged and counted, never returned.
type Notifier struct {
	sender   Sender
	chatID   int64
	renderer Renderer
	limiter  *rate.Limiter
}

// NewNotifier builds a Notifier that sends at most perMinute messages a
// minute. perMinute <= 0 disables the limit.
func NewNotifier(sender Sender, chatID int64, renderer Renderer, perMinute int) *Notifier {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &Notifier{
		sender:   sender,
		chatID:   chatID,
		renderer: renderer,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Notify sends the announcement for event, if it has one
func (n *Notifier) Notify(ctx context.Context, event models.ChangeEvent) {
	text, ok := n.renderer.Render(event)
	if !ok {
		return
	}

	log := zap.L().With(
		zap.String("kind", event.Kind.String()),
		zap.String("retailer", event.Record.Retailer),
		zap.String("product", event.Record.Product),
	)

	if err := n.limiter.Wait(ctx); err != nil {
		metrics.NotifyFailures.Inc()
		log.Warn("notification dropped", zap.Error(err))
		return
	}
	if err := n.sender.Send(ctx, n.chatID, text); err != nil {
		metrics.NotifyFailures.Inc()
		log.Error("failed to send notification", zap.Error(err))
		return
	}
	log.Debug("notification sent")
}

// NotifyAll announces every event in order
func (n *Notifier) NotifyAll(ctx context.Context, events []models.ChangeEvent) {
	for _, event := range events {
		n.Notify(ctx, event)
	}
}
