package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalTrackerBot/internal/app"
	"signalTrackerBot/internal/automation"
	"signalTrackerBot/internal/delivery"
	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
	"signalTrackerBot/internal/risk"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockTradeRepo struct {
	trades map[int64]*domain.Trade
	nextID int64
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	m.nextID++
	trade.ID = m.nextID
	cp := *trade
	m.trades[trade.ID] = &cp
	return trade.ID, nil
}

func (m *mockTradeRepo) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	cp := *trade
	m.trades[trade.ID] = &cp
	return nil
}

func (m *mockTradeRepo) FindTradeByID(ctx context.Context, id int64) (*domain.Trade, error) {
	t, ok := m.trades[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockTradeRepo) FindActiveTrades(ctx context.Context) ([]*domain.Trade, error) {
	return nil, nil
}

type mockAutomationRepo struct{}

func (m *mockAutomationRepo) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]*domain.Automation, error) {
	return nil, nil
}

type mockTemplateRepo struct{}

func (m *mockTemplateRepo) FindTemplateByID(ctx context.Context, id int64) (*domain.MessageTemplate, error) {
	return nil, nil
}

type mockChannelRepo struct{}

func (m *mockChannelRepo) FindChannelByID(ctx context.Context, id int64) (*domain.Channel, error) {
	return nil, nil
}

type mockMessageRepo struct{}

func (m *mockMessageRepo) RecordMessage(ctx context.Context, msg *domain.ChannelMessage) (int64, error) {
	return 1, nil
}

func (m *mockMessageRepo) FindAnnouncement(ctx context.Context, tradeID, channelID int64) (*domain.ChannelMessage, error) {
	return nil, nil
}

type mockTransport struct{ texts []string }

func (m *mockTransport) SendText(ctx context.Context, chatID int64, text string, opts ports.SendOptions) (int, error) {
	m.texts = append(m.texts, text)
	return len(m.texts), nil
}

func (m *mockTransport) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ports.SendOptions) (int, error) {
	return 0, nil
}

type mockDeliveryRepo struct{}

func (m *mockDeliveryRepo) AppendDelivery(ctx context.Context, rec *domain.DeliveryRecord) (int64, error) {
	return 1, nil
}

type mockFollowerRepo struct{}

func (m *mockFollowerRepo) FindActiveFollowers(ctx context.Context) ([]*domain.FollowerAccount, error) {
	return nil, nil
}

func (m *mockFollowerRepo) UpdateFollowerBalance(ctx context.Context, followerID int64, balance float64) error {
	return nil
}

func (m *mockFollowerRepo) CountFollowerTradesToday(ctx context.Context, followerID int64) (int, error) {
	return 0, nil
}

func (m *mockFollowerRepo) FindOpenMirrorPositions(ctx context.Context) ([]*domain.MirrorPosition, error) {
	return nil, nil
}

func (m *mockFollowerRepo) UpdateMirrorPNL(ctx context.Context, positionID int64, pnl float64) error {
	return nil
}

func newHandler(t *testing.T) (*Handler, *mockTradeRepo) {
	t.Helper()

	logger := &mockLogger{}
	pipeline, err := delivery.NewPipeline(&mockTransport{}, &mockDeliveryRepo{}, logger)
	require.NoError(t, err)
	dispatcher, err := automation.NewDispatcher(
		&mockAutomationRepo{}, &mockTemplateRepo{}, &mockChannelRepo{}, &mockMessageRepo{}, pipeline, logger)
	require.NoError(t, err)

	trades := &mockTradeRepo{trades: make(map[int64]*domain.Trade)}
	calc := risk.NewCalculator(risk.Config{})
	svc, err := app.NewService(logger, trades, &mockFollowerRepo{}, dispatcher, calc)
	require.NoError(t, err)

	h, err := NewHandler(svc, &mockTransport{}, logger)
	require.NoError(t, err)
	return h, trades
}

func TestHandleCommand_RegisterAndHit(t *testing.T) {
	h, trades := newHandler(t)
	ctx := context.Background()

	reply := h.HandleCommand(ctx, "/register BTC_USDT buy 45000 44000")
	assert.Contains(t, reply, "Trade 1 registered")
	require.Contains(t, trades.trades, int64(1))
	assert.Equal(t, domain.OrderSide("BUY"), trades.trades[1].Side)

	reply = h.HandleCommand(ctx, "/hit 1 t1")
	assert.Contains(t, reply, "t1 hit recorded")
	assert.True(t, trades.trades[1].Targets.Target1)

	reply = h.HandleCommand(ctx, "/hit 1 t1 off")
	assert.Contains(t, reply, "flag cleared")
	assert.False(t, trades.trades[1].Targets.Target1)
}

func TestHandleCommand_HitAutoCompletes(t *testing.T) {
	h, trades := newHandler(t)
	ctx := context.Background()

	h.HandleCommand(ctx, "/register BTC_USDT buy 45000 44000")
	reply := h.HandleCommand(ctx, "/hit 1 stop_loss")
	assert.Contains(t, reply, "hit recorded")
	assert.Equal(t, domain.StatusCompleted, trades.trades[1].Status)
}

func TestHandleCommand_CompleteAndReopen(t *testing.T) {
	h, trades := newHandler(t)
	ctx := context.Background()

	h.HandleCommand(ctx, "/register BTC_USDT buy 45000 44000")

	reply := h.HandleCommand(ctx, "/complete 1 manual closing early")
	assert.Contains(t, reply, "Trade 1 completed")
	assert.Equal(t, "closing early", trades.trades[1].Notes)

	reply = h.HandleCommand(ctx, "/reopen 1")
	assert.Contains(t, reply, "Trade 1 reopened")
	assert.Equal(t, domain.StatusActive, trades.trades[1].Status)
}

func TestHandleCommand_Errors(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	assert.Contains(t, h.HandleCommand(ctx, "/hit 404 t1"), "failed")
	assert.Contains(t, h.HandleCommand(ctx, "/hit abc t1"), "Invalid trade ID")
	assert.Contains(t, h.HandleCommand(ctx, "/register BTC_USDT buy notaprice 44000"), "Invalid price")
	assert.Contains(t, h.HandleCommand(ctx, "/unknown"), "Commands:")
	assert.Contains(t, h.HandleCommand(ctx, "/hit"), "Usage:")
}

func TestHandleCommand_GroupMentionSuffix(t *testing.T) {
	h, _ := newHandler(t)

	reply := h.HandleCommand(context.Background(), "/register@SignalTrackerBot BTC_USDT buy 45000 44000")
	assert.Contains(t, reply, "Trade 1 registered")
}
