// Package app exposes the trade-update boundary: target hits, manual
// completion, reopen, registration and mirror sizing. It owns the ordering
// contract between automation dispatch and state commits.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalTrackerBot/internal/automation"
	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/lifecycle"
	"signalTrackerBot/internal/ports"
	"signalTrackerBot/internal/risk"
)

// Service orchestrates trade lifecycle operations and their notifications.
type Service struct {
	logger     ports.Logger
	trades     ports.TradeRepository
	followers  ports.FollowerRepository
	dispatcher *automation.Dispatcher
	calc       *risk.Calculator

	// Serializes boundary operations. Per-trade locking is left to the
	// caller; a single mutex is the pragmatic stand-in for now.
	mu sync.Mutex
}

// NewService creates the boundary service.
func NewService(
	logger ports.Logger,
	trades ports.TradeRepository,
	followers ports.FollowerRepository,
	dispatcher *automation.Dispatcher,
	calc *risk.Calculator,
) (*Service, error) {
	if logger == nil || trades == nil || followers == nil || dispatcher == nil || calc == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	return &Service{
		logger:     logger,
		trades:     trades,
		followers:  followers,
		dispatcher: dispatcher,
		calc:       calc,
	}, nil
}

// RegisterTrade stores a newly ingested trade and announces it through the
// trade_registered automations. The announcement message becomes the
// reply-target for every later target-hit notification.
func (s *Service) RegisterTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	op := "RegisterTrade"
	if trade.Pair == "" {
		return 0, fmt.Errorf("%s: pair is required: %w", op, ports.ErrValidation)
	}
	if trade.Price <= 0 {
		return 0, fmt.Errorf("%s: entry price must be positive: %w", op, ports.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade.Status = domain.StatusActive
	trade.CompletionReason = ""
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}

	id, err := s.trades.CreateTrade(ctx, trade)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to store trade: %w", op, err)
	}
	s.logger.Info(ctx, op+": trade registered", map[string]interface{}{"tradeID": id, "pair": trade.Pair})

	if err := s.dispatcher.Dispatch(ctx, domain.TriggerTradeRegistered, trade); err != nil {
		// The trade is stored; announcement failure is an automation
		// problem, not a registration failure.
		s.logger.Error(ctx, err, op+": registration dispatch failed", map[string]interface{}{"tradeID": id})
	}
	return id, nil
}

// ApplyTargetHit applies a hit(target, value) event to a trade. The target
// key may be a canonical name or a legacy alias; anything else is rejected.
//
// Auto-completing targets (stop_loss, target_3) follow the two-phase
// contract: automations are dispatched against the pre-transition snapshot,
// while the trade is still active and its announcement is reply-addressable,
// and only then is the completed state committed. Non-auto-completing hits
// commit the flag first and dispatch afterwards.
func (s *Service) ApplyTargetHit(ctx context.Context, tradeID int64, targetKey string, hit bool) error {
	op := "ApplyTargetHit"
	target, ok := domain.NormalizeTargetKey(targetKey)
	if !ok {
		return fmt.Errorf("%s: unknown target %q: %w", op, targetKey, ports.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.trades.FindTradeByID(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("%s: failed to load trade %d: %w", op, tradeID, err)
	}
	if trade == nil {
		return fmt.Errorf("%s: trade %d: %w", op, tradeID, ports.ErrNotFound)
	}

	snapshot := *trade
	res, err := lifecycle.ApplyHit(trade, target, hit)
	if err != nil {
		return err
	}

	if res.AutoCompleted {
		// Phase one: notify while the trade is still active.
		if err := s.dispatcher.Dispatch(ctx, res.Trigger, &snapshot); err != nil {
			s.logger.Error(ctx, err, op+": pre-commit dispatch failed", map[string]interface{}{
				"tradeID": tradeID,
				"trigger": res.Trigger,
			})
		}
		// Phase two: commit the completed state.
		if err := s.trades.UpdateTrade(ctx, trade); err != nil {
			return fmt.Errorf("%s: failed to commit completion of trade %d: %w", op, tradeID, err)
		}
		s.logger.Info(ctx, op+": trade auto-completed", map[string]interface{}{
			"tradeID": tradeID,
			"target":  target,
			"reason":  trade.CompletionReason,
		})
		return nil
	}

	if err := s.trades.UpdateTrade(ctx, trade); err != nil {
		return fmt.Errorf("%s: failed to update trade %d: %w", op, tradeID, err)
	}
	s.logger.Info(ctx, op+": target flag updated", map[string]interface{}{
		"tradeID":     tradeID,
		"target":      target,
		"hit":         hit,
		"flagChanged": res.FlagChanged,
	})

	// A repeated hit re-fires its automations on purpose; only clearing a
	// flag stays silent.
	if res.Trigger != "" {
		if err := s.dispatcher.Dispatch(ctx, res.Trigger, trade); err != nil {
			s.logger.Error(ctx, err, op+": post-commit dispatch failed", map[string]interface{}{
				"tradeID": tradeID,
				"trigger": res.Trigger,
			})
		}
	}
	return nil
}

// CompleteManually closes an active trade with an operator reason. A
// safe_book completion requires that a safebook price was ever recorded.
// When the reason names one of the five target-hit values, the matching
// automations fire before the completion commits, like an auto-completing
// hit would.
func (s *Service) CompleteManually(ctx context.Context, tradeID int64, reason domain.CompletionReason, notes string) error {
	op := "CompleteManually"

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.trades.FindTradeByID(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("%s: failed to load trade %d: %w", op, tradeID, err)
	}
	if trade == nil {
		return fmt.Errorf("%s: trade %d: %w", op, tradeID, ports.ErrNotFound)
	}
	if reason == domain.ReasonSafeBook && trade.SafebookPrice == 0 {
		return fmt.Errorf("%s: no safebook price recorded for trade %d: %w", op, tradeID, ports.ErrValidation)
	}

	snapshot := *trade
	if err := lifecycle.CompleteManually(trade, reason, notes); err != nil {
		return err
	}

	if trigger := domain.TriggerType(reason); trigger.IsTargetHit() {
		if err := s.dispatcher.Dispatch(ctx, trigger, &snapshot); err != nil {
			s.logger.Error(ctx, err, op+": pre-commit dispatch failed", map[string]interface{}{
				"tradeID": tradeID,
				"trigger": trigger,
			})
		}
	}

	if err := s.trades.UpdateTrade(ctx, trade); err != nil {
		return fmt.Errorf("%s: failed to commit completion of trade %d: %w", op, tradeID, err)
	}
	s.logger.Info(ctx, op+": trade completed", map[string]interface{}{"tradeID": tradeID, "reason": reason})
	return nil
}

// Reopen returns a completed trade to active status.
func (s *Service) Reopen(ctx context.Context, tradeID int64) error {
	op := "Reopen"

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.trades.FindTradeByID(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("%s: failed to load trade %d: %w", op, tradeID, err)
	}
	if trade == nil {
		return fmt.Errorf("%s: trade %d: %w", op, tradeID, ports.ErrNotFound)
	}
	if err := lifecycle.Reopen(trade); err != nil {
		return err
	}
	if err := s.trades.UpdateTrade(ctx, trade); err != nil {
		return fmt.Errorf("%s: failed to update trade %d: %w", op, tradeID, err)
	}
	s.logger.Info(ctx, op+": trade reopened", map[string]interface{}{"tradeID": tradeID})
	return nil
}

// Dispatch forwards an externally observed trigger to the automation
// matcher. Exposed for boundaries that already hold the trade snapshot.
func (s *Service) Dispatch(ctx context.Context, trigger domain.TriggerType, trade *domain.Trade) error {
	if !trigger.IsValid() {
		return fmt.Errorf("unknown trigger %q: %w", trigger, ports.ErrValidation)
	}
	return s.dispatcher.Dispatch(ctx, trigger, trade)
}

// MirrorPlan is the sized order for mirroring a trade onto a follower.
type MirrorPlan struct {
	Quantity float64
	Leverage float64
}

// PlanMirrorOrder sizes a mirrored order for a follower from its risk
// settings and the trade's entry/stop distance. A zero quantity from the
// calculator means "do not place order" and is surfaced as a validation
// error, as is a follower over its daily trade budget.
func (s *Service) PlanMirrorOrder(ctx context.Context, follower *domain.FollowerAccount, trade *domain.Trade) (MirrorPlan, error) {
	op := "PlanMirrorOrder"
	var plan MirrorPlan

	if follower.MaxTradesPerDay > 0 {
		count, err := s.followers.CountFollowerTradesToday(ctx, follower.ID)
		if err != nil {
			return plan, fmt.Errorf("%s: failed to count follower %d trades: %w", op, follower.ID, err)
		}
		if count >= follower.MaxTradesPerDay {
			return plan, fmt.Errorf("%s: follower %d reached daily trade limit (%d/%d): %w",
				op, follower.ID, count, follower.MaxTradesPerDay, ports.ErrValidation)
		}
	}

	qty := s.calc.Quantity(follower.FundAmount, follower.RiskPercent, trade.Price, trade.StopLossPrice)
	if qty == 0 {
		return plan, fmt.Errorf("%s: sizing failed closed for follower %d on trade %d: %w",
			op, follower.ID, trade.ID, ports.ErrValidation)
	}
	if err := s.calc.ValidateOrder(qty, trade.Price); err != nil {
		return plan, fmt.Errorf("%s: %v: %w", op, err, ports.ErrValidation)
	}

	plan.Quantity = qty
	plan.Leverage = s.calc.Leverage(qty, trade.Price, follower.FundAmount)
	s.logger.Debug(ctx, op+": mirror order sized", map[string]interface{}{
		"followerID": follower.ID,
		"tradeID":    trade.ID,
		"quantity":   plan.Quantity,
		"leverage":   plan.Leverage,
	})
	return plan, nil
}
