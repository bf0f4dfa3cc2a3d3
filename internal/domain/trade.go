package domain

import "time"

// TradeStatus represents the lifecycle status of a tracked trade.
type TradeStatus string

const (
	StatusActive    TradeStatus = "active"
	StatusCompleted TradeStatus = "completed"
)

// OrderSide represents the side of a trade (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// TargetType identifies one of the five price triggers a trade can carry.
type TargetType string

const (
	TargetStopLoss TargetType = "stop_loss"
	TargetSafebook TargetType = "safebook"
	TargetOne      TargetType = "target_1"
	TargetTwo      TargetType = "target_2"
	TargetThree    TargetType = "target_3"
)

// TargetTypes lists every valid target in a fixed order.
var TargetTypes = []TargetType{TargetStopLoss, TargetSafebook, TargetOne, TargetTwo, TargetThree}

// IsValid reports whether t is one of the five known targets.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetStopLoss, TargetSafebook, TargetOne, TargetTwo, TargetThree:
		return true
	}
	return false
}

// AutoCompletes reports whether hitting this target closes the trade in the
// same operation. Only stop_loss and target_3 do; target_1/target_2 leave the
// trade running. That asymmetry is business policy, not an oversight.
func (t TargetType) AutoCompletes() bool {
	return t == TargetStopLoss || t == TargetThree
}

// Trigger returns the automation trigger fired when this target is hit.
func (t TargetType) Trigger() TriggerType {
	return TriggerType(string(t) + "_hit")
}

// CompletionReason returns the reason recorded when this target closes the trade.
func (t TargetType) CompletionReason() CompletionReason {
	return CompletionReason(string(t) + "_hit")
}

// CompletionReason records why a trade transitioned to completed: one of the
// "<target>_hit" values, or a manual reason supplied by an operator.
type CompletionReason string

const (
	ReasonManual   CompletionReason = "manual"
	ReasonSafeBook CompletionReason = "safe_book"
)

// TargetStatus holds the five independent trigger flags of a trade.
type TargetStatus struct {
	StopLoss bool
	Safebook bool
	Target1  bool
	Target2  bool
	Target3  bool
}

// Get returns the flag for the given target.
func (s TargetStatus) Get(t TargetType) bool {
	switch t {
	case TargetStopLoss:
		return s.StopLoss
	case TargetSafebook:
		return s.Safebook
	case TargetOne:
		return s.Target1
	case TargetTwo:
		return s.Target2
	case TargetThree:
		return s.Target3
	}
	return false
}

// Set writes the flag for the given target.
func (s *TargetStatus) Set(t TargetType, v bool) {
	switch t {
	case TargetStopLoss:
		s.StopLoss = v
	case TargetSafebook:
		s.Safebook = v
	case TargetOne:
		s.Target1 = v
	case TargetTwo:
		s.Target2 = v
	case TargetThree:
		s.Target3 = v
	}
}

// Trade represents a leveraged trading signal tracked through its lifecycle.
// Trigger prices of 0 mean the level was never configured.
type Trade struct {
	ID       int64
	Pair     string  // Trading pair (e.g., "BTC_USDT")
	Side     OrderSide
	Price    float64 // Entry price
	Leverage float64

	StopLossPrice float64
	SafebookPrice float64
	Target1Price  float64
	Target2Price  float64
	Target3Price  float64

	Targets          TargetStatus
	Status           TradeStatus
	CompletionReason CompletionReason // Set iff Status == StatusCompleted
	Notes            string           // Free text, untrusted

	CreatedAt   time.Time
	CompletedAt time.Time // Zero value while active
}

// IsActive reports whether the trade may still receive transitions.
func (t *Trade) IsActive() bool {
	return t.Status == StatusActive
}
