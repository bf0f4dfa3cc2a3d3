// Package delivery pushes a rendered message through the transport with a
// deterministic fallback cascade (photo→text, reply→plain) and persists one
// append-only audit record per attempt sequence.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

// CaptionLimit is the transport's photo caption length ceiling. Captions
// longer than this skip the photo stage entirely.
const CaptionLimit = 1024

// replyErrorMarkers are the transport error substrings that identify a
// reply-target failure (case-insensitive match). Anything not matching is a
// non-retryable failure for that stage.
var replyErrorMarkers = []string{
	"replied message not found",
	"message to reply not found",
	"reply message not found",
	"message_id_invalid",
}

// Request is one delivery order: rendered text plus routing policy.
type Request struct {
	AutomationID int64
	TradeID      int64 // 0 for schedule-only automations
	ChannelID    int64
	ChatID       int64
	Text         string
	ParseMode    domain.ParseMode
	ImageURL     string
	ReplyTo      int // Message id to reply to, 0 for none
	Buttons      [][]domain.Button
}

// Pipeline implements the fallback cascade over a Transport capability.
type Pipeline struct {
	transport  ports.Transport
	deliveries ports.DeliveryRepository
	logger     ports.Logger
}

// NewPipeline creates a delivery pipeline.
func NewPipeline(transport ports.Transport, deliveries ports.DeliveryRepository, logger ports.Logger) (*Pipeline, error) {
	if transport == nil || deliveries == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Pipeline")
	}
	return &Pipeline{transport: transport, deliveries: deliveries, logger: logger}, nil
}

// Deliver runs the cascade and records its final outcome. It never returns a
// transport error to the caller: failures are persisted on the delivery
// record so automation processing continues with the next automation.
func (p *Pipeline) Deliver(ctx context.Context, req Request) *domain.DeliveryRecord {
	rec := p.run(ctx, req)
	rec.CreatedAt = time.Now().UTC()

	if _, err := p.deliveries.AppendDelivery(ctx, rec); err != nil {
		// The audit row is required for operators; losing it is worth an
		// error-level log, but the send result still stands.
		p.logger.Error(ctx, err, "Failed to persist delivery record", map[string]interface{}{
			"automationID": req.AutomationID,
			"channelID":    req.ChannelID,
			"outcome":      rec.Outcome,
		})
	}

	p.logger.Info(ctx, "Delivery finished", map[string]interface{}{
		"automationID": req.AutomationID,
		"tradeID":      req.TradeID,
		"channelID":    req.ChannelID,
		"outcome":      rec.Outcome,
		"kind":         rec.Kind,
		"messageID":    rec.MessageID,
	})
	return rec
}

func (p *Pipeline) run(ctx context.Context, req Request) *domain.DeliveryRecord {
	rec := &domain.DeliveryRecord{
		AutomationID: req.AutomationID,
		TradeID:      req.TradeID,
		ChannelID:    req.ChannelID,
		Text:         req.Text,
	}

	opts := ports.SendOptions{ParseMode: req.ParseMode, ReplyTo: req.ReplyTo, Buttons: req.Buttons}

	imageAsLink := false
	if req.ImageURL != "" {
		if len(req.Text) > CaptionLimit {
			// Caption cannot fit; never attempt the photo stage.
			imageAsLink = true
		} else {
			msgID, err := p.transport.SendPhoto(ctx, req.ChatID, req.ImageURL, req.Text, opts)
			if err == nil {
				rec.Outcome = domain.DeliverySent
				rec.Kind = domain.DeliveryKindPhoto
				rec.MessageID = msgID
				rec.ReplyTo = opts.ReplyTo
				return rec
			}
			if isReplyError(err) && opts.ReplyTo != 0 {
				opts.ReplyTo = 0
				msgID, err = p.transport.SendPhoto(ctx, req.ChatID, req.ImageURL, req.Text, opts)
				if err == nil {
					rec.Outcome = domain.DeliverySent
					rec.Kind = domain.DeliveryKindPhotoNoReply
					rec.MessageID = msgID
					return rec
				}
			}
			// Photo undeliverable; carry the image as a visible link. The
			// reply-target survives unless the failure was reply-related.
			imageAsLink = true
		}
	}

	text := req.Text
	kind := domain.DeliveryKindText
	if imageAsLink {
		text = req.Text + "\n\n" + req.ImageURL
	}

	rec.Text = text
	msgID, err := p.transport.SendText(ctx, req.ChatID, text, opts)
	if err != nil && isReplyError(err) && opts.ReplyTo != 0 {
		opts.ReplyTo = 0
		kind = domain.DeliveryKindTextNoReply
		msgID, err = p.transport.SendText(ctx, req.ChatID, text, opts)
	}
	if err != nil {
		rec.Outcome = domain.DeliveryFailed
		rec.Kind = kind
		rec.Error = err.Error()
		return rec
	}

	rec.Outcome = domain.DeliverySent
	rec.Kind = kind
	rec.MessageID = msgID
	rec.ReplyTo = opts.ReplyTo
	return rec
}

// isReplyError classifies a transport failure as caused by an invalid
// reply-target, either via the sentinel or a known error substring.
func isReplyError(err error) bool {
	if errors.Is(err, ports.ErrReplyTargetInvalid) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range replyErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
