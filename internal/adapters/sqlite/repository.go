package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the store ports (trades, automations, templates,
// channels, channel messages, deliveries, followers) using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/signal_tracker.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		leverage REAL NOT NULL DEFAULT 0,
		stop_loss_price REAL NOT NULL DEFAULT 0,
		safebook_price REAL NOT NULL DEFAULT 0,
		target_1_price REAL NOT NULL DEFAULT 0,
		target_2_price REAL NOT NULL DEFAULT 0,
		target_3_price REAL NOT NULL DEFAULT 0,
		hit_stop_loss INTEGER NOT NULL DEFAULT 0,
		hit_safebook INTEGER NOT NULL DEFAULT 0,
		hit_target_1 INTEGER NOT NULL DEFAULT 0,
		hit_target_2 INTEGER NOT NULL DEFAULT 0,
		hit_target_3 INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		completion_reason TEXT DEFAULT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS automations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		channel_id INTEGER NOT NULL,
		template_id INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		run_at TEXT NOT NULL DEFAULT '',
		weekdays TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		body TEXT NOT NULL,
		include_fields TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		buttons TEXT NOT NULL DEFAULT '',
		parse_mode TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		chat_id INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS channel_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id INTEGER NOT NULL,
		channel_id INTEGER NOT NULL,
		message_id INTEGER NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		sent_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS delivery_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		automation_id INTEGER NOT NULL,
		trade_id INTEGER DEFAULT NULL,
		channel_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		kind TEXT NOT NULL,
		message_id INTEGER NOT NULL DEFAULT 0,
		reply_to INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS followers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		api_key TEXT NOT NULL,
		secret_key TEXT NOT NULL,
		risk_percent REAL NOT NULL DEFAULT 0,
		fund_amount REAL NOT NULL DEFAULT 0,
		max_trades_per_day INTEGER NOT NULL DEFAULT 0,
		quote_asset TEXT NOT NULL DEFAULT 'USDT',
		is_active INTEGER NOT NULL DEFAULT 1,
		wallet_balance REAL NOT NULL DEFAULT 0,
		balance_refreshed_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS mirror_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		follower_id INTEGER NOT NULL,
		trade_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		leverage REAL NOT NULL,
		entry_price REAL NOT NULL,
		pnl REAL NOT NULL DEFAULT 0,
		is_open INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_automations_trigger_active ON automations (trigger_type, is_active);
	CREATE INDEX IF NOT EXISTS idx_channel_messages_trade_channel ON channel_messages (trade_id, channel_id);
	CREATE INDEX IF NOT EXISTS idx_delivery_records_automation ON delivery_records (automation_id);
	CREATE INDEX IF NOT EXISTS idx_mirror_positions_open ON mirror_positions (is_open);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository ---

// CreateTrade saves a new trade and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (pair, side, price, leverage, stop_loss_price, safebook_price,
	                    target_1_price, target_2_price, target_3_price,
	                    hit_stop_loss, hit_safebook, hit_target_1, hit_target_2, hit_target_3,
	                    status, completion_reason, notes, created_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.Pair, trade.Side, trade.Price, trade.Leverage,
		trade.StopLossPrice, trade.SafebookPrice,
		trade.Target1Price, trade.Target2Price, trade.Target3Price,
		trade.Targets.StopLoss, trade.Targets.Safebook,
		trade.Targets.Target1, trade.Targets.Target2, trade.Targets.Target3,
		trade.Status, nullString(string(trade.CompletionReason)), trade.Notes,
		trade.CreatedAt, nullTime(trade.CompletedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for pair %s: %w", trade.Pair, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Pair, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "pair": trade.Pair})
	return id, nil
}

// UpdateTrade modifies an existing trade based on its ID.
func (r *Repository) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET pair = ?, side = ?, price = ?, leverage = ?,
	    stop_loss_price = ?, safebook_price = ?,
	    target_1_price = ?, target_2_price = ?, target_3_price = ?,
	    hit_stop_loss = ?, hit_safebook = ?, hit_target_1 = ?, hit_target_2 = ?, hit_target_3 = ?,
	    status = ?, completion_reason = ?, notes = ?, completed_at = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		trade.Pair, trade.Side, trade.Price, trade.Leverage,
		trade.StopLossPrice, trade.SafebookPrice,
		trade.Target1Price, trade.Target2Price, trade.Target3Price,
		trade.Targets.StopLoss, trade.Targets.Safebook,
		trade.Targets.Target1, trade.Targets.Target2, trade.Targets.Target3,
		trade.Status, nullString(string(trade.CompletionReason)), trade.Notes,
		nullTime(trade.CompletedAt),
		trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w", trade.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade ID %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status})
	return nil
}

const tradeColumns = `id, pair, side, price, leverage,
       stop_loss_price, safebook_price, target_1_price, target_2_price, target_3_price,
       hit_stop_loss, hit_safebook, hit_target_1, hit_target_2, hit_target_3,
       status, COALESCE(completion_reason, ''), notes, created_at, completed_at`

// FindTradeByID retrieves a trade by its unique ID.
func (r *Repository) FindTradeByID(ctx context.Context, id int64) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w", id, err)
	}
	return trade, nil
}

// FindActiveTrades retrieves all active trades, newest first.
func (r *Repository) FindActiveTrades(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindActiveTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- AutomationRepository ---

// CreateAutomation saves a new automation and returns its assigned ID.
func (r *Repository) CreateAutomation(ctx context.Context, a *domain.Automation) (int64, error) {
	const query = `
	INSERT INTO automations (name, trigger_type, channel_id, template_id, is_active, run_at, weekdays)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		a.Name, a.Trigger, a.ChannelID, a.TemplateID, a.IsActive, a.RunAt, encodeWeekdays(a.Weekdays))
	if err != nil {
		return 0, fmt.Errorf("failed to insert automation %s: %w", a.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for automation %s: %w", a.Name, err)
	}
	a.ID = id
	return id, nil
}

// ListActiveByTrigger retrieves every active automation for a trigger.
func (r *Repository) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]*domain.Automation, error) {
	const query = `
	SELECT id, name, trigger_type, channel_id, template_id, is_active, run_at, weekdays
	FROM automations
	WHERE trigger_type = ? AND is_active = 1
	ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations for trigger %s: %w", trigger, err)
	}
	defer rows.Close()

	autos := make([]*domain.Automation, 0)
	for rows.Next() {
		a := &domain.Automation{}
		var trig, weekdays string
		if err := rows.Scan(&a.ID, &a.Name, &trig, &a.ChannelID, &a.TemplateID, &a.IsActive, &a.RunAt, &weekdays); err != nil {
			return nil, fmt.Errorf("failed to scan automation during ListActiveByTrigger: %w", err)
		}
		a.Trigger = domain.TriggerType(trig)
		a.Weekdays, err = decodeWeekdays(weekdays)
		if err != nil {
			return nil, fmt.Errorf("failed to decode weekdays for automation %d: %w", a.ID, err)
		}
		autos = append(autos, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation rows: %w", err)
	}
	return autos, nil
}

// --- TemplateRepository ---

// CreateTemplate saves a new message template and returns its assigned ID.
func (r *Repository) CreateTemplate(ctx context.Context, tpl *domain.MessageTemplate) (int64, error) {
	buttons, err := encodeButtons(tpl.Buttons)
	if err != nil {
		return 0, fmt.Errorf("failed to encode buttons for template %s: %w", tpl.Name, err)
	}

	const query = `
	INSERT INTO templates (name, kind, body, include_fields, image_url, buttons, parse_mode, is_active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		tpl.Name, tpl.Kind, tpl.Body, strings.Join(tpl.IncludeFields, ","),
		tpl.ImageURL, buttons, tpl.ParseMode, tpl.IsActive)
	if err != nil {
		return 0, fmt.Errorf("failed to insert template %s: %w", tpl.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for template %s: %w", tpl.Name, err)
	}
	tpl.ID = id
	return id, nil
}

// FindTemplateByID retrieves a template by its unique ID.
func (r *Repository) FindTemplateByID(ctx context.Context, id int64) (*domain.MessageTemplate, error) {
	const query = `
	SELECT id, name, kind, body, include_fields, image_url, buttons, parse_mode, is_active
	FROM templates
	WHERE id = ?`

	tpl := &domain.MessageTemplate{}
	var kind, includeFields, buttons, parseMode string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tpl.ID, &tpl.Name, &kind, &tpl.Body, &includeFields, &tpl.ImageURL, &buttons, &parseMode, &tpl.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query template by ID %d: %w", id, err)
	}
	tpl.Kind = domain.TemplateKind(kind)
	tpl.ParseMode = domain.ParseMode(parseMode)
	if includeFields != "" {
		tpl.IncludeFields = strings.Split(includeFields, ",")
	}
	tpl.Buttons, err = decodeButtons(buttons)
	if err != nil {
		return nil, fmt.Errorf("failed to decode buttons for template %d: %w", id, err)
	}
	return tpl, nil
}

// --- ChannelRepository ---

// CreateChannel saves a new channel and returns its assigned ID.
func (r *Repository) CreateChannel(ctx context.Context, ch *domain.Channel) (int64, error) {
	const query = `INSERT INTO channels (name, chat_id, is_active) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, ch.Name, ch.ChatID, ch.IsActive)
	if err != nil {
		return 0, fmt.Errorf("failed to insert channel %s: %w", ch.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for channel %s: %w", ch.Name, err)
	}
	ch.ID = id
	return id, nil
}

// FindChannelByID retrieves a channel by its unique ID.
func (r *Repository) FindChannelByID(ctx context.Context, id int64) (*domain.Channel, error) {
	const query = `SELECT id, name, chat_id, is_active FROM channels WHERE id = ?`

	ch := &domain.Channel{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ch.ID, &ch.Name, &ch.ChatID, &ch.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query channel by ID %d: %w", id, err)
	}
	return ch, nil
}

// --- ChannelMessageRepository ---

// RecordMessage stores a sent channel message for later reply chaining.
func (r *Repository) RecordMessage(ctx context.Context, msg *domain.ChannelMessage) (int64, error) {
	const query = `
	INSERT INTO channel_messages (trade_id, channel_id, message_id, tag, sent_at)
	VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, msg.TradeID, msg.ChannelID, msg.MessageID, msg.Tag, msg.SentAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert channel message for trade %d: %w", msg.TradeID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for channel message: %w", err)
	}
	msg.ID = id
	return id, nil
}

// FindAnnouncement retrieves the trade's announcement message in a channel:
// the tagged registration message when present, otherwise the earliest sent
// message. Returns nil when the trade was never announced there.
func (r *Repository) FindAnnouncement(ctx context.Context, tradeID, channelID int64) (*domain.ChannelMessage, error) {
	const query = `
	SELECT id, trade_id, channel_id, message_id, tag, sent_at
	FROM channel_messages
	WHERE trade_id = ? AND channel_id = ?
	ORDER BY CASE WHEN tag = ? THEN 0 ELSE 1 END, sent_at ASC
	LIMIT 1`

	msg := &domain.ChannelMessage{}
	err := r.db.QueryRowContext(ctx, query, tradeID, channelID, domain.TagRegistered).Scan(
		&msg.ID, &msg.TradeID, &msg.ChannelID, &msg.MessageID, &msg.Tag, &msg.SentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query announcement for trade %d in channel %d: %w", tradeID, channelID, err)
	}
	return msg, nil
}

// --- DeliveryRepository ---

// AppendDelivery stores one delivery record. The log is append-only; records
// are never updated or deleted.
func (r *Repository) AppendDelivery(ctx context.Context, rec *domain.DeliveryRecord) (int64, error) {
	const query = `
	INSERT INTO delivery_records (automation_id, trade_id, channel_id, text, kind,
	                              message_id, reply_to, outcome, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var tradeID sql.NullInt64
	if rec.TradeID != 0 {
		tradeID = sql.NullInt64{Int64: rec.TradeID, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		rec.AutomationID, tradeID, rec.ChannelID, rec.Text, rec.Kind,
		rec.MessageID, rec.ReplyTo, rec.Outcome, rec.Error, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert delivery record for automation %d: %w", rec.AutomationID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for delivery record: %w", err)
	}
	rec.ID = id
	return id, nil
}

// ListDeliveriesByAutomation retrieves an automation's delivery history,
// newest first, up to a limit.
func (r *Repository) ListDeliveriesByAutomation(ctx context.Context, automationID int64, limit int) ([]*domain.DeliveryRecord, error) {
	const query = `
	SELECT id, automation_id, COALESCE(trade_id, 0), channel_id, text, kind,
	       message_id, reply_to, outcome, error, created_at
	FROM delivery_records
	WHERE automation_id = ?
	ORDER BY created_at DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery records for automation %d: %w", automationID, err)
	}
	defer rows.Close()

	records := make([]*domain.DeliveryRecord, 0)
	for rows.Next() {
		rec := &domain.DeliveryRecord{}
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.AutomationID, &rec.TradeID, &rec.ChannelID, &rec.Text, &rec.Kind,
			&rec.MessageID, &rec.ReplyTo, &outcome, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		rec.Outcome = domain.DeliveryOutcome(outcome)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery record rows: %w", err)
	}
	return records, nil
}

// --- FollowerRepository ---

// CreateFollower saves a new follower account and returns its assigned ID.
func (r *Repository) CreateFollower(ctx context.Context, f *domain.FollowerAccount) (int64, error) {
	const query = `
	INSERT INTO followers (name, api_key, secret_key, risk_percent, fund_amount,
	                       max_trades_per_day, quote_asset, is_active, wallet_balance, balance_refreshed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		f.Name, f.Credentials.APIKey, f.Credentials.SecretKey, f.RiskPercent, f.FundAmount,
		f.MaxTradesPerDay, f.QuoteAsset, f.IsActive, f.WalletBalance, nullTime(f.BalanceRefreshedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert follower %s: %w", f.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for follower %s: %w", f.Name, err)
	}
	f.ID = id
	return id, nil
}

// FindActiveFollowers retrieves every active follower account.
func (r *Repository) FindActiveFollowers(ctx context.Context) ([]*domain.FollowerAccount, error) {
	const query = `
	SELECT id, name, api_key, secret_key, risk_percent, fund_amount,
	       max_trades_per_day, quote_asset, is_active, wallet_balance, balance_refreshed_at
	FROM followers
	WHERE is_active = 1
	ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active followers: %w", err)
	}
	defer rows.Close()

	followers := make([]*domain.FollowerAccount, 0)
	for rows.Next() {
		f := &domain.FollowerAccount{}
		var refreshedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.Name, &f.Credentials.APIKey, &f.Credentials.SecretKey,
			&f.RiskPercent, &f.FundAmount, &f.MaxTradesPerDay, &f.QuoteAsset,
			&f.IsActive, &f.WalletBalance, &refreshedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		if refreshedAt.Valid {
			f.BalanceRefreshedAt = refreshedAt.Time
		}
		followers = append(followers, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follower rows: %w", err)
	}
	return followers, nil
}

// UpdateFollowerBalance stores a refreshed wallet balance.
func (r *Repository) UpdateFollowerBalance(ctx context.Context, followerID int64, balance float64) error {
	const query = `UPDATE followers SET wallet_balance = ?, balance_refreshed_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, balance, time.Now().UTC(), followerID)
	if err != nil {
		return fmt.Errorf("failed to update balance for follower %d: %w", followerID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for follower %d balance update: %w", followerID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("follower %d not found for balance update: %w", followerID, ports.ErrNotFound)
	}
	return nil
}

// CountFollowerTradesToday counts mirror positions opened today for a follower.
func (r *Repository) CountFollowerTradesToday(ctx context.Context, followerID int64) (int, error) {
	const query = `
	SELECT COUNT(*) FROM mirror_positions
	WHERE follower_id = ? AND date(updated_at) = date('now', 'localtime')`
	var count int
	err := r.db.QueryRowContext(ctx, query, followerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades today for follower %d: %w", followerID, err)
	}
	return count, nil
}

// CreateMirrorPosition saves a new mirrored position and returns its ID.
func (r *Repository) CreateMirrorPosition(ctx context.Context, pos *domain.MirrorPosition) (int64, error) {
	const query = `
	INSERT INTO mirror_positions (follower_id, trade_id, symbol, quantity, leverage, entry_price, pnl, is_open, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.FollowerID, pos.TradeID, pos.Symbol, pos.Quantity, pos.Leverage,
		pos.EntryPrice, pos.PNL, pos.IsOpen, pos.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert mirror position for follower %d: %w", pos.FollowerID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for mirror position: %w", err)
	}
	pos.ID = id
	return id, nil
}

// FindOpenMirrorPositions retrieves every open mirrored position.
func (r *Repository) FindOpenMirrorPositions(ctx context.Context) ([]*domain.MirrorPosition, error) {
	const query = `
	SELECT id, follower_id, trade_id, symbol, quantity, leverage, entry_price, pnl, is_open, updated_at
	FROM mirror_positions
	WHERE is_open = 1
	ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open mirror positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.MirrorPosition, 0)
	for rows.Next() {
		pos := &domain.MirrorPosition{}
		if err := rows.Scan(&pos.ID, &pos.FollowerID, &pos.TradeID, &pos.Symbol, &pos.Quantity,
			&pos.Leverage, &pos.EntryPrice, &pos.PNL, &pos.IsOpen, &pos.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mirror position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mirror position rows: %w", err)
	}
	return positions, nil
}

// UpdateMirrorPNL stores a refreshed unrealized P&L figure.
func (r *Repository) UpdateMirrorPNL(ctx context.Context, positionID int64, pnl float64) error {
	const query = `UPDATE mirror_positions SET pnl = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, pnl, time.Now().UTC(), positionID)
	if err != nil {
		return fmt.Errorf("failed to update P&L for mirror position %d: %w", positionID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for mirror position %d: %w", positionID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("mirror position %d not found: %w", positionID, ports.ErrNotFound)
	}
	return nil
}

// --- Helper Scan and Encode Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, status, reason string
	var completedAt sql.NullTime
	err := s.Scan(
		&t.ID, &t.Pair, &side, &t.Price, &t.Leverage,
		&t.StopLossPrice, &t.SafebookPrice, &t.Target1Price, &t.Target2Price, &t.Target3Price,
		&t.Targets.StopLoss, &t.Targets.Safebook, &t.Targets.Target1, &t.Targets.Target2, &t.Targets.Target3,
		&status, &reason, &t.Notes, &t.CreatedAt, &completedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Side = domain.OrderSide(side)
	t.Status = domain.TradeStatus(status)
	t.CompletionReason = domain.CompletionReason(reason)
	if completedAt.Valid {
		t.CompletedAt = completedAt.Time
	}
	return t, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// encodeWeekdays serializes weekdays as comma-joined integers; an empty
// string means every day.
func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(raw string) ([]time.Weekday, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q: %w", p, err)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

// encodeButtons serializes the button matrix as JSON; an empty string means
// no buttons.
func encodeButtons(buttons [][]domain.Button) (string, error) {
	if len(buttons) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(buttons)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeButtons(raw string) ([][]domain.Button, error) {
	if raw == "" {
		return nil, nil
	}
	var buttons [][]domain.Button
	if err := json.Unmarshal([]byte(raw), &buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}
