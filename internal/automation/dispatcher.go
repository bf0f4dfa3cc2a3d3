// Package automation matches trigger events to operator-configured
// automations and hands the rendered result to the delivery pipeline.
package automation

import (
	"context"
	"fmt"
	"time"

	"signalTrackerBot/internal/delivery"
	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
	"signalTrackerBot/internal/render"
)

// Dispatcher resolves automations for a trigger and executes each one.
// Failures are isolated per automation: a broken channel, template or send
// never aborts sibling automations.
type Dispatcher struct {
	automations ports.AutomationRepository
	templates   ports.TemplateRepository
	channels    ports.ChannelRepository
	messages    ports.ChannelMessageRepository
	pipeline    *delivery.Pipeline
	logger      ports.Logger
}

// NewDispatcher creates an automation dispatcher.
func NewDispatcher(
	automations ports.AutomationRepository,
	templates ports.TemplateRepository,
	channels ports.ChannelRepository,
	messages ports.ChannelMessageRepository,
	pipeline *delivery.Pipeline,
	logger ports.Logger,
) (*Dispatcher, error) {
	if automations == nil || templates == nil || channels == nil || messages == nil || pipeline == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Dispatcher")
	}
	return &Dispatcher{
		automations: automations,
		templates:   templates,
		channels:    channels,
		messages:    messages,
		pipeline:    pipeline,
		logger:      logger,
	}, nil
}

// Dispatch executes every active automation for the trigger against the
// trade snapshot (nil for schedule-only triggers). It returns an error only
// when the automation list itself cannot be loaded.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger domain.TriggerType, trade *domain.Trade) error {
	autos, err := d.automations.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return fmt.Errorf("failed to list automations for trigger %s: %w", trigger, err)
	}
	if len(autos) == 0 {
		d.logger.Debug(ctx, "No active automations for trigger", map[string]interface{}{"trigger": trigger})
		return nil
	}
	for _, a := range autos {
		d.Execute(ctx, a, trade)
	}
	return nil
}

// Execute runs a single automation. Configuration problems (missing or
// inactive channel/template) skip the automation with a log entry; delivery
// outcomes are recorded by the pipeline either way.
func (d *Dispatcher) Execute(ctx context.Context, a *domain.Automation, trade *domain.Trade) {
	channel, tpl, err := d.resolve(ctx, a)
	if err != nil {
		d.logger.Warn(ctx, "Skipping automation", map[string]interface{}{
			"automationID": a.ID,
			"trigger":      a.Trigger,
			"reason":       err.Error(),
		})
		return
	}

	// Target-hit notifications chain onto the message that announced the
	// trade. When no announcement can be found the notification still goes
	// out as a fresh message; it is never silently dropped.
	replyTo := 0
	if a.Trigger.IsTargetHit() && trade != nil {
		announcement, err := d.messages.FindAnnouncement(ctx, trade.ID, a.ChannelID)
		if err != nil {
			d.logger.Warn(ctx, "Reply-target lookup failed, sending fresh message", map[string]interface{}{
				"automationID": a.ID,
				"tradeID":      trade.ID,
				"channelID":    a.ChannelID,
				"error":        err.Error(),
			})
		} else if announcement != nil {
			replyTo = announcement.MessageID
		}
	}

	fields := render.Fields(trade)
	var tradeID int64
	if trade != nil {
		tradeID = trade.ID
	}

	rec := d.pipeline.Deliver(ctx, delivery.Request{
		AutomationID: a.ID,
		TradeID:      tradeID,
		ChannelID:    channel.ID,
		ChatID:       channel.ChatID,
		Text:         render.Render(tpl.Body, tpl.IncludeFields, fields),
		ParseMode:    tpl.ParseMode,
		ImageURL:     tpl.ImageURL,
		ReplyTo:      replyTo,
		Buttons:      render.RenderButtons(tpl.Buttons, tpl.IncludeFields, fields),
	})

	if rec.Outcome == domain.DeliverySent && trade != nil {
		tag := ""
		if a.Trigger == domain.TriggerTradeRegistered {
			tag = domain.TagRegistered
		}
		msg := &domain.ChannelMessage{
			TradeID:   trade.ID,
			ChannelID: channel.ID,
			MessageID: rec.MessageID,
			Tag:       tag,
			SentAt:    time.Now().UTC(),
		}
		if _, err := d.messages.RecordMessage(ctx, msg); err != nil {
			d.logger.Error(ctx, err, "Failed to record channel message", map[string]interface{}{
				"tradeID":   trade.ID,
				"channelID": channel.ID,
				"messageID": rec.MessageID,
			})
		}
	}
}

// resolve loads the automation's channel and template, wrapping every
// missing or inactive piece with ErrConfiguration.
func (d *Dispatcher) resolve(ctx context.Context, a *domain.Automation) (*domain.Channel, *domain.MessageTemplate, error) {
	channel, err := d.channels.FindChannelByID(ctx, a.ChannelID)
	if err != nil {
		return nil, nil, fmt.Errorf("channel %d lookup failed: %w", a.ChannelID, err)
	}
	if channel == nil {
		return nil, nil, fmt.Errorf("channel %d not found: %w", a.ChannelID, ports.ErrConfiguration)
	}
	if !channel.IsActive {
		return nil, nil, fmt.Errorf("channel %d is inactive: %w", a.ChannelID, ports.ErrConfiguration)
	}

	tpl, err := d.templates.FindTemplateByID(ctx, a.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("template %d lookup failed: %w", a.TemplateID, err)
	}
	if tpl == nil {
		return nil, nil, fmt.Errorf("template %d not found: %w", a.TemplateID, ports.ErrConfiguration)
	}
	if !tpl.IsActive {
		return nil, nil, fmt.Errorf("template %d is inactive: %w", a.TemplateID, ports.ErrConfiguration)
	}
	return channel, tpl, nil
}
