// Package scheduler runs the rule engine on a periodic timer and exposes
// runtime controls for the interval and enabled state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/autobank/internal/engine"
)

// ErrPollInProgress is returned by TriggerPoll when an evaluation cycle is
// already running.
var ErrPollInProgress = errors.New("an evaluation cycle is already running")

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 300 * time.Second

// Config holds the scheduler's initial settings.
type Config struct {
	Interval time.Duration
	Enabled  bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Enabled:  true,
	}
}

// Scheduler triggers evaluation cycles on a timer. Settings can be changed
// while it runs; a manual trigger shares the same single-flight guard as
// the timer so cycles never overlap.
type Scheduler struct {
	engine *engine.RuleEngine
	logger *slog.Logger

	mu       sync.RWMutex
	enabled  bool
	interval time.Duration

	// pollMu is held for the duration of one evaluation cycle.
	pollMu sync.Mutex
}

// New creates a scheduler around the given engine.
func New(ruleEngine *engine.RuleEngine, config Config, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:   ruleEngine,
		logger:   logger,
		enabled:  config.Enabled,
		interval: config.Interval,
	}
}

// Run loops until the context is canceled. Each tick runs one evaluation
// cycle unless the scheduler is disabled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.Interval(), "enabled", s.IsEnabled())

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			if s.IsEnabled() {
				s.poll(ctx)
			} else {
				s.logger.Debug("scheduler disabled, skipping cycle")
			}
			timer.Reset(s.Interval())
		}
	}
}

// TriggerPoll runs one evaluation cycle immediately. If a cycle is already
// running, it reports that instead of starting a second one.
func (s *Scheduler) TriggerPoll(ctx context.Context) (*engine.CycleStats, error) {
	if !s.pollMu.TryLock() {
		return nil, ErrPollInProgress
	}
	defer s.pollMu.Unlock()

	return s.engine.EvaluateAll(ctx)
}

// Enable turns the periodic timer's cycles back on.
func (s *Scheduler) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

// Disable stops the periodic timer from running cycles. Manual triggers
// still work while disabled.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// IsEnabled reports whether timer-driven cycles are on.
func (s *Scheduler) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetInterval changes the poll interval. The new value takes effect after
// the current tick.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	return nil
}

// Interval returns the current poll interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

func (s *Scheduler) poll(ctx context.Context) {
	stats, err := s.TriggerPoll(ctx)
	if err != nil {
		s.logger.Error("evaluation cycle failed", "error", err)
		return
	}
	s.logger.Debug("evaluation cycle finished",
		"accounts_polled", stats.AccountsPolled,
		"transfers_executed", stats.TransfersExecuted)
}
