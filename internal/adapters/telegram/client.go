// Package telegram implements ports.Transport on top of the Telegram Bot
// API. Reply failures are classified so the delivery pipeline can retry
// without the reply parameter.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

// Client sends messages through a Telegram bot, rate limited per chat.
type Client struct {
	api    *tgbotapi.BotAPI
	logger ports.Logger

	rateMu   sync.Mutex
	limiters map[int64]*rate.Limiter
}

// Config holds configuration for the Telegram transport.
type Config struct {
	Token  string
	Logger ports.Logger
}

// NewClient creates a Telegram transport and verifies the bot token.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram client")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required: %w", ports.ErrConfiguration)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate telegram bot: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Telegram bot authenticated", map[string]interface{}{"username": api.Self.UserName})
	return &Client{
		api:      api,
		logger:   cfg.Logger,
		limiters: make(map[int64]*rate.Limiter),
	}, nil
}

// Updates returns the long-polling update channel for command handling.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return c.api.GetUpdatesChan(u)
}

// StopUpdates stops the long-polling loop behind Updates.
func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

// getRateLimiter returns the per-chat limiter, creating it on first use.
// Telegram allows roughly one message per second per chat.
func (c *Client) getRateLimiter(chatID int64) *rate.Limiter {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	limiter, exists := c.limiters[chatID]
	if !exists {
		limiter = rate.NewLimiter(1, 3)
		c.limiters[chatID] = limiter
	}
	return limiter
}

// SendText sends a text message and returns the Telegram message ID.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts ports.SendOptions) (int, error) {
	if err := c.getRateLimiter(chatID).Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait for chat %d: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = string(opts.ParseMode)
	msg.ReplyToMessageID = opts.ReplyTo
	if markup, ok := buildKeyboard(opts.Buttons); ok {
		msg.ReplyMarkup = markup
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, c.wrapSendError(ctx, chatID, opts.ReplyTo, err)
	}
	return sent.MessageID, nil
}

// SendPhoto sends an image by URL with a caption and returns the Telegram
// message ID.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ports.SendOptions) (int, error) {
	if err := c.getRateLimiter(chatID).Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait for chat %d: %w", chatID, err)
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	msg.Caption = caption
	msg.ParseMode = string(opts.ParseMode)
	msg.ReplyToMessageID = opts.ReplyTo
	if markup, ok := buildKeyboard(opts.Buttons); ok {
		msg.ReplyMarkup = markup
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, c.wrapSendError(ctx, chatID, opts.ReplyTo, err)
	}
	return sent.MessageID, nil
}

// wrapSendError tags errors caused by a stale reply target so the pipeline
// retries without the reply parameter instead of giving up.
func (c *Client) wrapSendError(ctx context.Context, chatID int64, replyTo int, err error) error {
	if replyTo != 0 && isReplyNotFound(err) {
		c.logger.Warn(ctx, "Reply target rejected by Telegram", map[string]interface{}{
			"chatID":  chatID,
			"replyTo": replyTo,
		})
		return fmt.Errorf("send to chat %d: %v: %w", chatID, err, ports.ErrReplyTargetInvalid)
	}
	return fmt.Errorf("send to chat %d: %w", chatID, err)
}

func isReplyNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "replied message not found") ||
		strings.Contains(msg, "message to reply not found")
}

// buildKeyboard converts the button matrix into an inline keyboard. Buttons
// with neither URL nor callback data are skipped; Telegram rejects them.
func buildKeyboard(buttons [][]domain.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			switch {
			case b.URL != "":
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			case b.CallbackData != "":
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
			}
		}
		if len(btns) > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(btns...))
		}
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
