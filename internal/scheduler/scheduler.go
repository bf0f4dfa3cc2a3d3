// Package scheduler drives the periodic work: time-of-day automations,
// follower wallet refresh and mirror position P&L refresh. One tick source
// feeds three independent jobs; a failing item never blocks its siblings and
// the loop never stops on a job error.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalTrackerBot/internal/automation"
	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

// Config holds the scheduler's cadence settings.
type Config struct {
	// TickInterval is the base tick granularity. Defaults to one minute.
	TickInterval time.Duration
	// BalanceEvery is the wallet refresh period. Defaults to 5 minutes.
	BalanceEvery time.Duration
	// PNLEvery is the mirror P&L refresh period. Defaults to 15 minutes.
	PNLEvery time.Duration
	// Ticks overrides the internal ticker when non-nil. Used by tests to
	// drive the loop deterministically.
	Ticks <-chan time.Time
}

// Scheduler owns the tick loop. Start/Stop bound its lifetime explicitly.
type Scheduler struct {
	cfg         Config
	automations ports.AutomationRepository
	followers   ports.FollowerRepository
	exchange    ports.Exchange
	dispatcher  *automation.Dispatcher
	logger      ports.Logger

	mu          sync.Mutex
	lastBalance time.Time
	lastPNL     time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler.
func New(
	cfg Config,
	automations ports.AutomationRepository,
	followers ports.FollowerRepository,
	exchange ports.Exchange,
	dispatcher *automation.Dispatcher,
	logger ports.Logger,
) (*Scheduler, error) {
	if automations == nil || followers == nil || exchange == nil || dispatcher == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Scheduler")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.BalanceEvery <= 0 {
		cfg.BalanceEvery = 5 * time.Minute
	}
	if cfg.PNLEvery <= 0 {
		cfg.PNLEvery = 15 * time.Minute
	}
	return &Scheduler{
		cfg:         cfg,
		automations: automations,
		followers:   followers,
		exchange:    exchange,
		dispatcher:  dispatcher,
		logger:      logger,
		stop:        make(chan struct{}),
	}, nil
}

// Start launches the tick loop. It returns immediately; use Stop or cancel
// the context to shut the loop down, then Wait to drain in-flight work.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info(ctx, "Scheduler started", map[string]interface{}{
		"tickInterval": s.cfg.TickInterval.String(),
		"balanceEvery": s.cfg.BalanceEvery.String(),
		"pnlEvery":     s.cfg.PNLEvery.String(),
	})
}

// Stop signals the loop to exit. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Wait blocks until the loop and all in-flight tick work have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticks := s.cfg.Ticks
	if ticks == nil {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Scheduler stopping (context done)")
			return
		case <-s.stop:
			s.logger.Info(ctx, "Scheduler stopping (stop requested)")
			return
		case now, ok := <-ticks:
			if !ok {
				return
			}
			s.tick(ctx, now)
		}
	}
}

// tick runs the three jobs for one tick. Jobs are independent I/O-bound
// work, so they run concurrently and are joined before the next tick.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	var jobs sync.WaitGroup

	jobs.Add(1)
	go func() {
		defer jobs.Done()
		s.runScheduledAutomations(ctx, now)
	}()

	if s.due(&s.lastBalance, now, s.cfg.BalanceEvery) {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			s.refreshBalances(ctx)
		}()
	}

	if s.due(&s.lastPNL, now, s.cfg.PNLEvery) {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			s.refreshMirrorPNL(ctx)
		}()
	}

	jobs.Wait()
}

// due reports whether a periodic job should run at now, updating its
// last-run marker when it is.
func (s *Scheduler) due(last *time.Time, now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !last.IsZero() && now.Sub(*last) < every {
		return false
	}
	*last = now
	return true
}

// runScheduledAutomations fires every active scheduled automation whose
// time-of-day and weekday match this tick. Each executes as a simple render
// with no trade context.
func (s *Scheduler) runScheduledAutomations(ctx context.Context, now time.Time) {
	autos, err := s.automations.ListActiveByTrigger(ctx, domain.TriggerScheduled)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to list scheduled automations")
		return
	}

	hhmm := now.Format("15:04")
	for _, a := range autos {
		if a.RunAt != hhmm || !a.RunsOn(now.Weekday()) {
			continue
		}
		s.logger.Info(ctx, "Firing scheduled automation", map[string]interface{}{
			"automationID": a.ID,
			"runAt":        a.RunAt,
		})
		s.dispatcher.Execute(ctx, a, nil)
	}
}

// refreshBalances fetches every active follower's wallet balance. Followers
// are refreshed concurrently; one follower's failure is logged and does not
// block the others.
func (s *Scheduler) refreshBalances(ctx context.Context) {
	followers, err := s.followers.FindActiveFollowers(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to list followers for balance refresh")
		return
	}

	var wg sync.WaitGroup
	for _, f := range followers {
		wg.Add(1)
		go func(f *domain.FollowerAccount) {
			defer wg.Done()
			balance, err := s.exchange.AccountBalance(ctx, f.Credentials, f.QuoteAsset)
			if err != nil {
				s.logger.Warn(ctx, "Wallet balance refresh failed", map[string]interface{}{
					"followerID": f.ID,
					"error":      err.Error(),
				})
				return
			}
			if err := s.followers.UpdateFollowerBalance(ctx, f.ID, balance); err != nil {
				s.logger.Error(ctx, err, "Failed to store refreshed balance", map[string]interface{}{"followerID": f.ID})
			}
		}(f)
	}
	wg.Wait()
}

// refreshMirrorPNL updates unrealized P&L for every open mirrored position.
func (s *Scheduler) refreshMirrorPNL(ctx context.Context) {
	positions, err := s.followers.FindOpenMirrorPositions(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to list open mirror positions")
		return
	}

	followers, err := s.followers.FindActiveFollowers(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to list followers for P&L refresh")
		return
	}
	creds := make(map[int64]domain.Credentials, len(followers))
	for _, f := range followers {
		creds[f.ID] = f.Credentials
	}

	var wg sync.WaitGroup
	for _, pos := range positions {
		c, ok := creds[pos.FollowerID]
		if !ok {
			continue // Follower deactivated; leave the stale figure
		}
		wg.Add(1)
		go func(pos *domain.MirrorPosition, c domain.Credentials) {
			defer wg.Done()
			pnl, err := s.exchange.PositionPNL(ctx, c, pos.Symbol)
			if err != nil {
				s.logger.Warn(ctx, "P&L refresh failed", map[string]interface{}{
					"positionID": pos.ID,
					"symbol":     pos.Symbol,
					"error":      err.Error(),
				})
				return
			}
			if err := s.followers.UpdateMirrorPNL(ctx, pos.ID, pnl); err != nil {
				s.logger.Error(ctx, err, "Failed to store refreshed P&L", map[string]interface{}{"positionID": pos.ID})
			}
		}(pos, c)
	}
	wg.Wait()
}
