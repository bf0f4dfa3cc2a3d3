// Package bot is the operator command surface. It parses slash commands from
// Telegram updates and drives the application service.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signalTrackerBot/internal/app"
	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

const usage = `Commands:
/register <pair> <side> <price> <stop> - register a trade
/hit <tradeID> <target> [off] - set or clear a target flag
/complete <tradeID> <reason> [notes] - complete a trade manually
/reopen <tradeID> - reopen a completed trade`

// Handler executes operator commands against the application service.
type Handler struct {
	svc       *app.Service
	transport ports.Transport
	logger    ports.Logger
}

// NewHandler creates a command handler.
func NewHandler(svc *app.Service, transport ports.Transport, logger ports.Logger) (*Handler, error) {
	if svc == nil || transport == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Handler")
	}
	return &Handler{svc: svc, transport: transport, logger: logger}, nil
}

// Run consumes Telegram updates until the context is cancelled or the
// channel closes. Non-command messages are ignored.
func (h *Handler) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			reply := h.HandleCommand(ctx, update.Message.Text)
			if _, err := h.transport.SendText(ctx, update.Message.Chat.ID, reply, ports.SendOptions{}); err != nil {
				h.logger.Error(ctx, err, "Failed to send command reply", map[string]interface{}{
					"chatID": update.Message.Chat.ID,
				})
			}
		}
	}
}

// HandleCommand parses one command line and returns the reply text.
func (h *Handler) HandleCommand(ctx context.Context, text string) string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return usage
	}

	cmd := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	// Strip the bot mention suffix used in groups (/hit@MyBot).
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	args := parts[1:]

	switch cmd {
	case "register":
		return h.register(ctx, args)
	case "hit":
		return h.hit(ctx, args)
	case "complete":
		return h.complete(ctx, args)
	case "reopen":
		return h.reopen(ctx, args)
	default:
		return usage
	}
}

func (h *Handler) register(ctx context.Context, args []string) string {
	if len(args) < 4 {
		return "Usage: /register <pair> <side> <price> <stop>"
	}
	price, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Sprintf("Invalid price %q", args[2])
	}
	stop, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Sprintf("Invalid stop price %q", args[3])
	}

	trade := &domain.Trade{
		Pair:          args[0],
		Side:          domain.OrderSide(strings.ToUpper(args[1])),
		Price:         price,
		StopLossPrice: stop,
	}
	id, err := h.svc.RegisterTrade(ctx, trade)
	if err != nil {
		return fmt.Sprintf("Registration failed: %v", err)
	}
	return fmt.Sprintf("Trade %d registered for %s", id, trade.Pair)
}

func (h *Handler) hit(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "Usage: /hit <tradeID> <target> [off]"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Invalid trade ID %q", args[0])
	}
	hit := !(len(args) > 2 && strings.EqualFold(args[2], "off"))

	if err := h.svc.ApplyTargetHit(ctx, id, args[1], hit); err != nil {
		return fmt.Sprintf("Target update failed: %v", err)
	}
	if !hit {
		return fmt.Sprintf("Trade %d: %s flag cleared", id, args[1])
	}
	return fmt.Sprintf("Trade %d: %s hit recorded", id, args[1])
}

func (h *Handler) complete(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "Usage: /complete <tradeID> <reason> [notes]"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Invalid trade ID %q", args[0])
	}
	notes := strings.Join(args[2:], " ")

	if err := h.svc.CompleteManually(ctx, id, domain.CompletionReason(args[1]), notes); err != nil {
		return fmt.Sprintf("Completion failed: %v", err)
	}
	return fmt.Sprintf("Trade %d completed (%s)", id, args[1])
}

func (h *Handler) reopen(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return "Usage: /reopen <tradeID>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Invalid trade ID %q", args[0])
	}
	if err := h.svc.Reopen(ctx, id); err != nil {
		return fmt.Sprintf("Reopen failed: %v", err)
	}
	return fmt.Sprintf("Trade %d reopened", id)
}
