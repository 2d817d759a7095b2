// Package reminder nudges customers and staff about vehicles that have been
// ready for handover longer than the configured age.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// cronParser accepts standard 5-field expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ClaimLister returns claims that became ready for handover at or before cutoff.
type ClaimLister interface {
	ListAwaitingPickup(ctx context.Context, cutoff time.Time) ([]domain.Claim, error)
}

// Notifier sends the overdue reminder for one claim.
type Notifier interface {
	NotifyHandoverOverdue(ctx context.Context, claim domain.Claim, waiting time.Duration)
}

// Scheduler runs the handover sweep on a cron schedule.
type Scheduler struct {
	claims   ClaimLister
	notifier Notifier
	age      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	cron     *cron.Cron

	mu       sync.Mutex
	reminded map[string]time.Time
}

// NewScheduler validates spec and builds a scheduler. Start must be called to
// begin firing.
func NewScheduler(spec string, age time.Duration, claims ClaimLister, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	if age <= 0 {
		return nil, fmt.Errorf("reminder: age must be positive, got %s", age)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		claims:   claims,
		notifier: notifier,
		age:      age,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		cron:     cron.New(cron.WithParser(cronParser)),
		reminded: make(map[string]time.Time),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("reminder: schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("handover reminders scheduled", zap.Duration("age", s.age))
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep sends one reminder per claim per ready period and returns how many
// were sent.
func (s *Scheduler) Sweep(ctx context.Context) int {
	now := s.now()
	claims, err := s.claims.ListAwaitingPickup(ctx, now.Add(-s.age))
	if err != nil {
		s.logger.Error("handover sweep failed", zap.Error(err))
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[string]time.Time, len(claims))
	sent := 0
	for _, claim := range claims {
		if claim.ReadyForHandoverAt == nil {
			continue
		}
		readyAt := *claim.ReadyForHandoverAt
		pending[claim.ID] = readyAt
		if last, ok := s.reminded[claim.ID]; ok && last.Equal(readyAt) {
			continue
		}
		s.notifier.NotifyHandoverOverdue(ctx, claim, now.Sub(readyAt))
		sent++
	}
	// claims that were collected drop out so a later ready period reminds again
	s.reminded = pending
	if sent > 0 {
		s.logger.Info("handover reminders sent", zap.Int("count", sent))
	}
	return sent
}
