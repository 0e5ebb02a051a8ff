package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"pricewatch/matcher"
	"pricewatch/metrics"
	"pricewatch/models"
	"pricewatch/notifier"
)

// RecordReader reads the latest prices of a catalog product
type RecordReader interface {
	FindAll(ctx context.Context, product string) ([]models.PriceRecord, error)
}

// QueryHandler answers "what does X cost" messages in the group chat
type QueryHandler struct {
	catalog  *matcher.Catalog
	records  RecordReader
	sender   notifier.Sender
	renderer notifier.Renderer
	chatID   int64
}

func NewQueryHandler(catalog *matcher.Catalog, records RecordReader, sender notifier.Sender, renderer notifier.Renderer, chatID int64) *QueryHandler {
	return &QueryHandler{
		catalog:  catalog,
		records:  records,
		sender:   sender,
		renderer: renderer,
		chatID:   chatID,
	}
}

// Handle replies to msg. Messages from other chats are ignored.
func (h *QueryHandler) Handle(ctx context.Context, msg Message) {
	if msg.ChatID != h.chatID {
		metrics.ChatQueries.WithLabelValues("ignored").Inc()
		zap.L().Debug("ignoring message from other chat", zap.Int64("chat_id", msg.ChatID))
		return
	}

	reply := h.Answer(ctx, msg.Text)
	if err := h.sender.Send(ctx, msg.ChatID, reply); err != nil {
		metrics.NotifyFailures.Inc()
		zap.L().Error("failed to reply to chat query", zap.String("text", msg.Text), zap.Error(err))
	}
}

// Answer returns the reply text for a query
func (h *QueryHandler) Answer(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	product, ok := h.catalog.LookupProduct(text)
	if !ok {
		metrics.ChatQueries.WithLabelValues("unrecognized").Inc()
		return notifier.MsgNotRecognized
	}

	records, err := h.records.FindAll(ctx, product)
	if err != nil {
		metrics.ChatQueries.WithLabelValues("error").Inc()
		zap.L().Error("chat query failed", zap.String("product", product), zap.Error(err))
		return notifier.MsgQueryFailed
	}

	metrics.ChatQueries.WithLabelValues("answered").Inc()
	zap.L().Info("answered price query", zap.String("product", product), zap.Int("records", len(records)))
	return h.renderer.RenderQuery(product, records)
}
