package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pricewatch/matcher"
	"pricewatch/models"
	"pricewatch/notifier"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const groupID int64 = -1001

type fakeRecords struct {
	records map[string][]models.PriceRecord
	err     error
}

func (f *fakeRecords) FindAll(ctx context.Context, product string) ([]models.PriceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[product], nil
}

type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSender) Send(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return nil
}

func newTestHandler(t *testing.T, records RecordReader, sender notifier.Sender) *QueryHandler {
	t.Helper()
	catalog, err := matcher.NewCatalog(
		[]string{"iPhone 13 128", "iPhone 13 256", "iPhone 14 128", "iPhone 14 256"},
		[]string{"Amazon", "Flipkart", "Croma"},
	)
	require.NoError(t, err)
	return NewQueryHandler(catalog, records, sender, notifier.NewRenderer("₹"), groupID)
}

func TestQueryHandler_Answer(t *testing.T) {
	records := &fakeRecords{records: map[string][]models.PriceRecord{
		"iPhone 13 128": {
			{Retailer: "Flipkart", Product: "iPhone 13 128", Price: 52999},
			{Retailer: "Croma", Product: "iPhone 13 128", Price: 53990},
		},
	}}
	h := newTestHandler(t, records, &captureSender{})
	ctx := context.Background()

	assert.Equal(t,
		"Prices for iPhone 13 128:\nCompany: Flipkart\nPrice: ₹52999\n\nCompany: Croma\nPrice: ₹53990\n\n",
		h.Answer(ctx, "iphone 13 128gb"))
	assert.Equal(t, "No data found for iPhone 14 256.", h.Answer(ctx, "iPhone 14 (256 GB)"))
	assert.Equal(t, notifier.MsgNotRecognized, h.Answer(ctx, "galaxy s23"))
	assert.Equal(t, notifier.MsgNotRecognized, h.Answer(ctx, "   "))
}

func TestQueryHandler_StoreError(t *testing.T) {
	h := newTestHandler(t, &fakeRecords{err: eris.New("db down")}, &captureSender{})
	assert.Equal(t, notifier.MsgQueryFailed, h.Answer(context.Background(), "iPhone 13 128"))
}

func TestQueryHandler_IgnoresOtherChats(t *testing.T) {
	sender := &captureSender{}
	h := newTestHandler(t, &fakeRecords{}, sender)

	h.Handle(context.Background(), Message{ChatID: 42, Text: "iPhone 13 128"})
	assert.Empty(t, sender.msgs)

	h.Handle(context.Background(), Message{ChatID: groupID, Text: "iPhone 13 128"})
	assert.Equal(t, []string{"No data found for iPhone 13 128."}, sender.msgs)
}

// fakeBot fails the first failures polls, then serves updates once
type fakeBot struct {
	mu       sync.Mutex
	failures int
	updates  []tgbotapi.Update
	offsets  []int
	sent     []tgbotapi.MessageConfig
	polled   chan struct{}
}

func (f *fakeBot) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, cfg.Offset)
	if f.failures > 0 {
		f.failures--
		return nil, eris.New("connection reset by peer")
	}
	updates := f.updates
	f.updates = nil
	if updates == nil {
		select {
		case f.polled <- struct{}{}:
		default:
		}
		// emulate an empty long poll
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
	}
	return updates, nil
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{UserName: "asha"},
			Text: text,
		},
	}
}

func TestTelegramTransport_PollReconnectsAndDelivers(t *testing.T) {
	bot := &fakeBot{
		failures: 2,
		updates: []tgbotapi.Update{
			textUpdate(7, groupID, "iPhone 14 128"),
			{UpdateID: 8},
			textUpdate(9, groupID, "iPhone 13 256"),
		},
		polled: make(chan struct{}, 1),
	}
	transport := newTelegramTransport(bot, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var got []Message
	done := make(chan error, 1)
	go func() {
		done <- transport.Poll(ctx, func(ctx context.Context, msg Message) {
			got = append(got, msg)
		})
	}()

	select {
	case <-bot.polled:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never drained the updates")
	}
	cancel()
	require.NoError(t, <-done)

	require.Len(t, got, 2)
	assert.Equal(t, Message{ChatID: groupID, From: "asha", Text: "iPhone 14 128"}, got[0])
	assert.Equal(t, "iPhone 13 256", got[1].Text)

	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.Equal(t, []int{0, 0, 0}, bot.offsets[:3])
	assert.Equal(t, 10, bot.offsets[3])
}

func TestTelegramTransport_Send(t *testing.T) {
	bot := &fakeBot{}
	transport := newTelegramTransport(bot, 0)

	require.NoError(t, transport.Send(context.Background(), groupID, "hello"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, groupID, bot.sent[0].ChatID)
	assert.Equal(t, "hello", bot.sent[0].Text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, transport.Send(ctx, groupID, "late"))
	assert.Len(t, bot.sent, 1)
}
