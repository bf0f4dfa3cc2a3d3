package domain

import "time"

// DeliveryOutcome is the terminal result of one delivery attempt sequence.
type DeliveryOutcome string

const (
	DeliverySent   DeliveryOutcome = "sent"
	DeliveryFailed DeliveryOutcome = "failed"
)

// Delivery kinds describing which cascade stage ultimately ran.
const (
	DeliveryKindPhoto        = "photo"
	DeliveryKindPhotoNoReply = "photo without reply"
	DeliveryKindText         = "text"
	DeliveryKindTextNoReply  = "text without reply"
)

// DeliveryRecord is the append-only audit row for one notification attempt
// sequence. Exactly one record is written per pipeline invocation, whatever
// stage the fallback cascade ended on; it is never mutated afterwards.
type DeliveryRecord struct {
	ID           int64
	AutomationID int64
	TradeID      int64 // 0 for schedule-only automations
	ChannelID    int64
	Text         string
	Kind         string
	MessageID    int // Delivered message id, 0 on failure
	ReplyTo      int // Reply-target message id actually used, 0 if none
	Outcome      DeliveryOutcome
	Error        string
	CreatedAt    time.Time
}

// ChannelMessage records a message successfully delivered to a channel for a
// trade, so later target-hit notifications can reply to it. The message
// announcing the trade is tagged with TagRegistered.
type ChannelMessage struct {
	ID        int64
	TradeID   int64
	ChannelID int64
	MessageID int
	Tag       string
	SentAt    time.Time
}

// TagRegistered marks the channel message that announced the trade.
const TagRegistered = "registered"
