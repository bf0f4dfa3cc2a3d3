package ports

import (
	"context"

	"signalTrackerBot/internal/domain"
)

// TradeRepository stores tracked trades. Trades are mutated only through the
// state machine's transition operations and never deleted by the core.
type TradeRepository interface {
	// CreateTrade saves a new trade and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// UpdateTrade persists the trade's current state (flags, status, reason).
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradeByID retrieves a trade by ID. Returns nil, nil if not found.
	FindTradeByID(ctx context.Context, id int64) (*domain.Trade, error)
	// FindActiveTrades retrieves all trades still in active status.
	FindActiveTrades(ctx context.Context) ([]*domain.Trade, error)
}

// AutomationRepository reads operator-configured automations.
type AutomationRepository interface {
	// ListActiveByTrigger returns all active automations for the trigger.
	ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]*domain.Automation, error)
}

// TemplateRepository reads message templates.
type TemplateRepository interface {
	// FindTemplateByID retrieves a template by ID. Returns nil, nil if not found.
	FindTemplateByID(ctx context.Context, id int64) (*domain.MessageTemplate, error)
}

// ChannelRepository reads delivery channels.
type ChannelRepository interface {
	// FindChannelByID retrieves a channel by ID. Returns nil, nil if not found.
	FindChannelByID(ctx context.Context, id int64) (*domain.Channel, error)
}

// ChannelMessageRepository tracks messages delivered per trade and channel so
// later notifications can reply to them.
type ChannelMessageRepository interface {
	// RecordMessage appends a delivered channel message.
	RecordMessage(ctx context.Context, msg *domain.ChannelMessage) (int64, error)
	// FindAnnouncement returns the message to reply to for a trade/channel:
	// the one tagged as the registration event if present, otherwise the
	// earliest successfully sent message. Returns nil, nil if none exists.
	FindAnnouncement(ctx context.Context, tradeID, channelID int64) (*domain.ChannelMessage, error)
}

// DeliveryRepository appends immutable delivery audit records.
type DeliveryRepository interface {
	// AppendDelivery writes one delivery record and returns its assigned ID.
	AppendDelivery(ctx context.Context, rec *domain.DeliveryRecord) (int64, error)
}

// FollowerRepository stores follower accounts and their mirror positions.
type FollowerRepository interface {
	// FindActiveFollowers returns all followers eligible for mirroring.
	FindActiveFollowers(ctx context.Context) ([]*domain.FollowerAccount, error)
	// UpdateFollowerBalance writes a refreshed wallet balance.
	UpdateFollowerBalance(ctx context.Context, followerID int64, balance float64) error
	// CountFollowerTradesToday counts mirror positions opened today.
	CountFollowerTradesToday(ctx context.Context, followerID int64) (int, error)
	// FindOpenMirrorPositions returns all open mirrored positions.
	FindOpenMirrorPositions(ctx context.Context) ([]*domain.MirrorPosition, error)
	// UpdateMirrorPNL writes a refreshed P&L figure for a mirror position.
	UpdateMirrorPNL(ctx context.Context, positionID int64, pnl float64) error
}
