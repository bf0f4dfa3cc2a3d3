package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// eventLog records the interleaving of sends and commits so ordering
// contracts can be asserted.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

type mockTradeRepo struct {
	log    *eventLog
	trades map[int64]*domain.Trade
	nextID int64
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	m.nextID++
	trade.ID = m.nextID
	cp := *trade
	m.trades[trade.ID] = &cp
	m.log.add("create")
	return trade.ID, nil
}

func (m *mockTradeRepo) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	cp := *trade
	m.trades[trade.ID] = &cp
	m.log.add("commit:" + string(trade.Status))
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
	var out []*domain.Trade
	for _, t := range m.trades {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockAutomationRepo struct {
	byTrigger map[domain.TriggerType][]*domain.Automation
}

func (m *mockAutomationRepo) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]*domain.Automation, error) {
	return m.byTrigger[trigger], nil
}

type mockTemplateRepo struct{ tpl *domain.MessageTemplate }

func (m *mockTemplateRepo) FindTemplateByID(ctx context.Context, id int64) (*domain.MessageTemplate, error) {
	return m.tpl, nil
}

type mockChannelRepo struct{ ch *domain.Channel }

func (m *mockChannelRepo) FindChannelByID(ctx context.Context, id int64) (*domain.Channel, error) {
	return m.ch, nil
}

type mockMessageRepo struct {
	recorded []*domain.ChannelMessage
	lookups  []int64
}

func (m *mockMessageRepo) RecordMessage(ctx context.Context, msg *domain.ChannelMessage) (int64, error) {
	m.recorded = append(m.recorded, msg)
	return int64(len(m.recorded)), nil
}

func (m *mockMessageRepo) FindAnnouncement(ctx context.Context, tradeID, channelID int64) (*domain.ChannelMessage, error) {
	m.lookups = append(m.lookups, tradeID)
	return nil, nil
}

type mockTransport struct {
	log   *eventLog
	texts []string
}

func (m *mockTransport) SendText(ctx context.Context, chatID int64, text string, opts ports.SendOptions) (int, error) {
	m.texts = append(m.texts, text)
	m.log.add("send")
	return len(m.texts), nil
}

func (m *mockTransport) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ports.SendOptions) (int, error) {
	return 0, errors.New("unexpected photo send")
}

type mockDeliveryRepo struct{}

func (m *mockDeliveryRepo) AppendDelivery(ctx context.Context, rec *domain.DeliveryRecord) (int64, error) {
	return 1, nil
}

type mockFollowerRepo struct {
	tradesToday int
	countErr    error
}

func (m *mockFollowerRepo) FindActiveFollowers(ctx context.Context) ([]*domain.FollowerAccount, error) {
	return nil, nil
}

func (m *mockFollowerRepo) UpdateFollowerBalance(ctx context.Context, followerID int64, balance float64) error {
	return nil
}

func (m *mockFollowerRepo) CountFollowerTradesToday(ctx context.Context, followerID int64) (int, error) {
	return m.tradesToday, m.countErr
}

func (m *mockFollowerRepo) FindOpenMirrorPositions(ctx context.Context) ([]*domain.MirrorPosition, error) {
	return nil, nil
}

func (m *mockFollowerRepo) UpdateMirrorPNL(ctx context.Context, positionID int64, pnl float64) error {
	return nil
}

type fixture struct {
	svc       *Service
	trades    *mockTradeRepo
	transport *mockTransport
	messages  *mockMessageRepo
	followers *mockFollowerRepo
	log       *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := &eventLog{}
	logger := &mockLogger{}
	transport := &mockTransport{log: log}
	pipeline, err := delivery.NewPipeline(transport, &mockDeliveryRepo{}, logger)
	require.NoError(t, err)

	autoRepo := &mockAutomationRepo{byTrigger: map[domain.TriggerType][]*domain.Automation{
		domain.TriggerTradeRegistered: {
			{ID: 1, Trigger: domain.TriggerTradeRegistered, ChannelID: 1, TemplateID: 1, IsActive: true},
		},
		domain.TriggerStopLossHit: {
			{ID: 2, Trigger: domain.TriggerStopLossHit, ChannelID: 1, TemplateID: 1, IsActive: true},
		},
		domain.TriggerTarget1Hit: {
			{ID: 3, Trigger: domain.TriggerTarget1Hit, ChannelID: 1, TemplateID: 1, IsActive: true},
		},
		domain.TriggerTarget3Hit: {
			{ID: 4, Trigger: domain.TriggerTarget3Hit, ChannelID: 1, TemplateID: 1, IsActive: true},
		},
	}}
	messages := &mockMessageRepo{}
	dispatcher, err := automation.NewDispatcher(
		autoRepo,
		&mockTemplateRepo{tpl: &domain.MessageTemplate{ID: 1, Kind: domain.TemplateTrade, Body: "{pair} update", IsActive: true}},
		&mockChannelRepo{ch: &domain.Channel{ID: 1, ChatID: 42, IsActive: true}},
		messages,
		pipeline,
		logger,
	)
	require.NoError(t, err)

	trades := &mockTradeRepo{log: log, trades: make(map[int64]*domain.Trade)}
	followers := &mockFollowerRepo{}
	calc := risk.NewCalculator(risk.Config{MinNotional: 5, MinQuantity: 0.001})
	svc, err := NewService(logger, trades, followers, dispatcher, calc)
	require.NoError(t, err)

	return &fixture{svc: svc, trades: trades, transport: transport, messages: messages, followers: followers, log: log}
}

func (f *fixture) seedTrade(t *testing.T) int64 {
	t.Helper()
	trade := &domain.Trade{
		Pair:          "BTC_USDT",
		Side:          domain.Buy,
		Price:         50,
		StopLossPrice: 45,
		Status:        domain.StatusActive,
	}
	id, err := f.trades.CreateTrade(context.Background(), trade)
	require.NoError(t, err)
	f.log.events = nil
	return id
}

func TestApplyTargetHit_AutoCompleteDispatchesBeforeCommit(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.ApplyTargetHit(context.Background(), id, "stop_loss", true)
	require.NoError(t, err)

	// The notification goes out while the trade is still active; the
	// completed state is committed afterwards.
	require.Equal(t, []string{"send", "commit:completed"}, f.log.events)

	stored := f.trades.trades[id]
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, domain.CompletionReason("stop_loss_hit"), stored.CompletionReason)
	assert.True(t, stored.Targets.StopLoss)
	assert.False(t, stored.CompletedAt.IsZero())
}

func TestApplyTargetHit_Target3AutoCompletes(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.ApplyTargetHit(context.Background(), id, "t3", true)
	require.NoError(t, err)

	require.Equal(t, []string{"send", "commit:completed"}, f.log.events)
	assert.Equal(t, domain.CompletionReason("target_3_hit"), f.trades.trades[id].CompletionReason)
}

func TestApplyTargetHit_NonAutoCommitsBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.ApplyTargetHit(context.Background(), id, "target_1", true)
	require.NoError(t, err)

	require.Equal(t, []string{"commit:active", "send"}, f.log.events)
	stored := f.trades.trades[id]
	assert.True(t, stored.Targets.Target1)
	assert.Equal(t, domain.StatusActive, stored.Status)
}

func TestApplyTargetHit_RepeatedHitRedispatches(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	require.NoError(t, f.svc.ApplyTargetHit(context.Background(), id, "target_1", true))
	require.NoError(t, f.svc.ApplyTargetHit(context.Background(), id, "target_1", true))

	assert.Len(t, f.transport.texts, 2)
}

func TestApplyTargetHit_ClearingFlagStaysSilent(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	require.NoError(t, f.svc.ApplyTargetHit(context.Background(), id, "target_1", true))
	f.transport.texts = nil

	require.NoError(t, f.svc.ApplyTargetHit(context.Background(), id, "target_1", false))

	assert.Empty(t, f.transport.texts)
	assert.False(t, f.trades.trades[id].Targets.Target1)
}

func TestApplyTargetHit_AliasKeysNormalize(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.ApplyTargetHit(context.Background(), id, "SL", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, f.trades.trades[id].Status)
}

func TestApplyTargetHit_UnknownKeyRejected(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.ApplyTargetHit(context.Background(), id, "target_9", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrValidation)
	assert.Empty(t, f.log.events)
}

func TestApplyTargetHit_MissingTrade(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ApplyTargetHit(context.Background(), 404, "target_1", true)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestApplyTargetHit_CompletedTradeRejected(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)
	require.NoError(t, f.svc.ApplyTargetHit(context.Background(), id, "stop_loss", true))
	f.log.events = nil

	err := f.svc.ApplyTargetHit(context.Background(), id, "target_1", true)
	assert.ErrorIs(t, err, ports.ErrInvalidState)
	assert.Empty(t, f.log.events)
}

func TestCompleteManually_SafeBookRequiresRecordedPrice(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.CompleteManually(context.Background(), id, domain.ReasonSafeBook, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrValidation)
	assert.Equal(t, domain.StatusActive, f.trades.trades[id].Status)
}

func TestCompleteManually_SafeBookWithPrice(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)
	f.trades.trades[id].SafebookPrice = 48

	err := f.svc.CompleteManually(context.Background(), id, domain.ReasonSafeBook, "locked in")
	require.NoError(t, err)

	stored := f.trades.trades[id]
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, domain.ReasonSafeBook, stored.CompletionReason)
	assert.Equal(t, "locked in", stored.Notes)
}

func TestCompleteManually_TargetHitReasonDispatchesBeforeCommit(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.CompleteManually(context.Background(), id, domain.CompletionReason("stop_loss_hit"), "")
	require.NoError(t, err)

	require.Equal(t, []string{"send", "commit:completed"}, f.log.events)
}

func TestCompleteManually_PlainReasonSendsNothing(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.CompleteManually(context.Background(), id, domain.ReasonManual, "")
	require.NoError(t, err)

	assert.Empty(t, f.transport.texts)
	assert.Equal(t, domain.StatusCompleted, f.trades.trades[id].Status)
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)
	require.NoError(t, f.svc.CompleteManually(context.Background(), id, domain.ReasonManual, ""))

	err := f.svc.Reopen(context.Background(), id)
	require.NoError(t, err)

	stored := f.trades.trades[id]
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.Empty(t, stored.CompletionReason)
	assert.True(t, stored.CompletedAt.IsZero())
}

func TestReopen_ActiveTradeRejected(t *testing.T) {
	f := newFixture(t)
	id := f.seedTrade(t)

	err := f.svc.Reopen(context.Background(), id)
	assert.ErrorIs(t, err, ports.ErrInvalidState)
}

func TestRegisterTrade_AnnouncesAndTags(t *testing.T) {
	f := newFixture(t)

	id, err := f.svc.RegisterTrade(context.Background(), &domain.Trade{
		Pair: "ETH_USDT", Side: domain.Sell, Price: 3000,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Len(t, f.transport.texts, 1)
	assert.Equal(t, "ETH_USDT update", f.transport.texts[0])
	require.Len(t, f.messages.recorded, 1)
	assert.Equal(t, domain.TagRegistered, f.messages.recorded[0].Tag)
}

func TestRegisterTrade_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterTrade(context.Background(), &domain.Trade{Price: 100})
	assert.ErrorIs(t, err, ports.ErrValidation)

	_, err = f.svc.RegisterTrade(context.Background(), &domain.Trade{Pair: "BTC_USDT"})
	assert.ErrorIs(t, err, ports.ErrValidation)
}

func TestDispatch_RejectsUnknownTrigger(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Dispatch(context.Background(), domain.TriggerType("liquidation"), nil)
	assert.ErrorIs(t, err, ports.ErrValidation)
}

func TestPlanMirrorOrder_Sizes(t *testing.T) {
	f := newFixture(t)
	follower := &domain.FollowerAccount{ID: 1, RiskPercent: 10, FundAmount: 100, MaxTradesPerDay: 5}
	trade := &domain.Trade{ID: 7, Pair: "BTC_USDT", Price: 50, StopLossPrice: 45}

	plan, err := f.svc.PlanMirrorOrder(context.Background(), follower, trade)
	require.NoError(t, err)

	// 100 * 10% / |50-45| = 2 units at entry 50.
	assert.Equal(t, 2.0, plan.Quantity)
	assert.Equal(t, 1.0, plan.Leverage)
}

func TestPlanMirrorOrder_DailyLimit(t *testing.T) {
	f := newFixture(t)
	f.followers.tradesToday = 5
	follower := &domain.FollowerAccount{ID: 1, RiskPercent: 10, FundAmount: 100, MaxTradesPerDay: 5}
	trade := &domain.Trade{ID: 7, Price: 50, StopLossPrice: 45}

	_, err := f.svc.PlanMirrorOrder(context.Background(), follower, trade)
	assert.ErrorIs(t, err, ports.ErrValidation)
}

func TestPlanMirrorOrder_ZeroQuantityFailsClosed(t *testing.T) {
	f := newFixture(t)
	follower := &domain.FollowerAccount{ID: 1, RiskPercent: 10, FundAmount: 100}
	// Stop price equal to entry makes the risk distance zero.
	trade := &domain.Trade{ID: 7, Price: 50, StopLossPrice: 50}

	_, err := f.svc.PlanMirrorOrder(context.Background(), follower, trade)
	assert.ErrorIs(t, err, ports.ErrValidation)
}
