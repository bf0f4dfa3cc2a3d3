package domain

import "time"

// TriggerType identifies the event class an automation reacts to.
type TriggerType string

const (
	TriggerTradeRegistered TriggerType = "trade_registered"
	TriggerStopLossHit     TriggerType = "stop_loss_hit"
	TriggerSafebookHit     TriggerType = "safebook_hit"
	TriggerTarget1Hit      TriggerType = "target_1_hit"
	TriggerTarget2Hit      TriggerType = "target_2_hit"
	TriggerTarget3Hit      TriggerType = "target_3_hit"
	TriggerScheduled       TriggerType = "scheduled"
)

// IsValid reports whether t is a known trigger type.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerTradeRegistered, TriggerStopLossHit, TriggerSafebookHit,
		TriggerTarget1Hit, TriggerTarget2Hit, TriggerTarget3Hit, TriggerScheduled:
		return true
	}
	return false
}

// IsTargetHit reports whether t is one of the five "<target>_hit" triggers.
// Those are the triggers that reply to the trade's original channel message.
func (t TriggerType) IsTargetHit() bool {
	switch t {
	case TriggerStopLossHit, TriggerSafebookHit, TriggerTarget1Hit, TriggerTarget2Hit, TriggerTarget3Hit:
		return true
	}
	return false
}

// Automation binds a trigger to a channel and a message template.
// Created and edited by operators; read-only to the core.
type Automation struct {
	ID         int64
	Name       string
	Trigger    TriggerType
	ChannelID  int64
	TemplateID int64
	IsActive   bool

	// Only meaningful for TriggerScheduled.
	RunAt    string // "HH:MM", 24h clock
	Weekdays []time.Weekday
}

// RunsOn reports whether a scheduled automation fires on the given weekday.
// An empty weekday set means every day.
func (a *Automation) RunsOn(day time.Weekday) bool {
	if len(a.Weekdays) == 0 {
		return true
	}
	for _, d := range a.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// ParseMode selects the transport's text markup flavor.
type ParseMode string

const (
	ParseModeHTML     ParseMode = "HTML"
	ParseModeMarkdown ParseMode = "Markdown"
)

// TemplateKind distinguishes templates rendered against a trade snapshot
// from "simple" templates that must contain no placeholders at all.
type TemplateKind string

const (
	TemplateTrade  TemplateKind = "trade"
	TemplateSimple TemplateKind = "simple"
)

// Button is one cell of a template's inline button matrix. A button carrying
// a URL sends a link button; one carrying CallbackData sends a callback
// button; one carrying neither renders text-only.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// MessageTemplate is the operator-authored message body with {placeholder}
// tokens, an optional allow-list restricting which fields are substituted,
// and optional image/button decoration. Immutable from the core's view.
type MessageTemplate struct {
	ID            int64
	Name          string
	Kind          TemplateKind
	Body          string
	IncludeFields []string // Empty = include all known fields
	ImageURL      string
	Buttons       [][]Button
	ParseMode     ParseMode
	IsActive      bool
}

// Channel is a delivery destination (a Telegram chat or channel).
type Channel struct {
	ID       int64
	Name     string
	ChatID   int64
	IsActive bool
}
