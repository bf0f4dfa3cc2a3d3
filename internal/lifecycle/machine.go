// Package lifecycle owns the transition rules for a trade's five target
// flags and its status. All functions are pure: they mutate the passed trade
// in memory and leave persistence and automation dispatch to the caller.
package lifecycle

import (
	"fmt"
	"time"

	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

// HitResult describes what a target-hit transition did, so the boundary can
// decide whether and when to dispatch automations.
type HitResult struct {
	// FlagChanged is false when the flag already held the requested value.
	FlagChanged bool
	// AutoCompleted is true when the hit also closed the trade.
	AutoCompleted bool
	// Trigger is the automation trigger for this hit; empty when hit=false.
	Trigger domain.TriggerType
}

// ApplyHit applies a hit(target, value) event to the trade.
//
// Setting the flag on stop_loss or target_3 also completes the trade with the
// matching "<target>_hit" reason in the same operation. Clearing a flag
// (hit=false) never completes and fires no trigger; it exists to undo a
// mistaken hit. Re-setting an already-set flag is a no-op at the flag level
// but still reports its trigger: a repeated hit re-fires its automations on
// purpose ("hit happened again" semantics).
func ApplyHit(trade *domain.Trade, target domain.TargetType, hit bool) (HitResult, error) {
	var res HitResult
	if !target.IsValid() {
		return res, fmt.Errorf("unknown target type %q: %w", target, ports.ErrValidation)
	}
	if !trade.IsActive() {
		return res, fmt.Errorf("trade %d is %s: %w", trade.ID, trade.Status, ports.ErrInvalidState)
	}

	res.FlagChanged = trade.Targets.Get(target) != hit
	trade.Targets.Set(target, hit)

	if !hit {
		return res, nil
	}

	res.Trigger = target.Trigger()
	if target.AutoCompletes() {
		trade.Status = domain.StatusCompleted
		trade.CompletionReason = target.CompletionReason()
		trade.CompletedAt = time.Now().UTC()
		res.AutoCompleted = true
	}
	return res, nil
}

// CompleteManually closes an active trade with an operator-supplied reason,
// independent of the target flags. The safe_book precondition (a safebook
// price must have been recorded) is validated by the boundary, not here.
func CompleteManually(trade *domain.Trade, reason domain.CompletionReason, notes string) error {
	if reason == "" {
		return fmt.Errorf("completion reason is required: %w", ports.ErrValidation)
	}
	if !trade.IsActive() {
		return fmt.Errorf("trade %d is %s: %w", trade.ID, trade.Status, ports.ErrInvalidState)
	}
	trade.Status = domain.StatusCompleted
	trade.CompletionReason = reason
	trade.CompletedAt = time.Now().UTC()
	if notes != "" {
		trade.Notes = notes
	}
	return nil
}

// Reopen returns a completed trade to active status and clears the
// completion reason, unfreezing the target flags.
func Reopen(trade *domain.Trade) error {
	if trade.IsActive() {
		return fmt.Errorf("trade %d is already active: %w", trade.ID, ports.ErrInvalidState)
	}
	trade.Status = domain.StatusActive
	trade.CompletionReason = ""
	trade.CompletedAt = time.Time{}
	return nil
}
