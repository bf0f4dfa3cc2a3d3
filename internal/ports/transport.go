package ports

import (
	"context"

	"signalTrackerBot/internal/domain"
)

// SendOptions carry the per-message routing policy for a transport send.
type SendOptions struct {
	ParseMode domain.ParseMode
	ReplyTo   int // Message id to reply to, 0 for a fresh message
	Buttons   [][]domain.Button
}

// Transport is the channel-specific send capability consumed by the delivery
// pipeline. Implementations return the delivered message id on success and
// wrap reply-target failures with ErrReplyTargetInvalid.
type Transport interface {
	// SendText delivers a plain text message to a chat.
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	// SendPhoto delivers an image by URL with the given caption.
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts SendOptions) (int, error)
}
