package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

type stubLister struct {
	claims []domain.Claim
	err    error
	cutoff time.Time
}

func (s *stubLister) ListAwaitingPickup(_ context.Context, cutoff time.Time) ([]domain.Claim, error) {
	s.cutoff = cutoff
	return s.claims, s.err
}

type recordingNotifier struct {
	calls map[string]time.Duration
}

func (r *recordingNotifier) NotifyHandoverOverdue(_ context.Context, claim domain.Claim, waiting time.Duration) {
	if r.calls == nil {
		r.calls = make(map[string]time.Duration)
	}
	r.calls[claim.ID] = waiting
}

func readyClaim(id string, at time.Time) domain.Claim {
	return domain.Claim{ID: id, ClaimNumber: "WC-" + id, Status: domain.ClaimStatusReadyForHandover, ReadyForHandoverAt: &at}
}

func newTestScheduler(t *testing.T, lister ClaimLister, notifier Notifier, now time.Time) *Scheduler {
	t.Helper()
	s, err := NewScheduler("0 * * * *", 48*time.Hour, lister, notifier, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.now = func() time.Time { return now }
	return s
}

func TestSweepRemindsOncePerReadyPeriod(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	readyAt := now.Add(-72 * time.Hour)
	lister := &stubLister{claims: []domain.Claim{readyClaim("c1", readyAt)}}
	notifier := &recordingNotifier{}
	s := newTestScheduler(t, lister, notifier, now)

	if sent := s.Sweep(context.Background()); sent != 1 {
		t.Fatalf("first sweep sent %d, want 1", sent)
	}
	if want := now.Add(-48 * time.Hour); !lister.cutoff.Equal(want) {
		t.Fatalf("cutoff = %s, want %s", lister.cutoff, want)
	}
	if got := notifier.calls["c1"]; got != 72*time.Hour {
		t.Fatalf("waiting = %s, want 72h", got)
	}
	if sent := s.Sweep(context.Background()); sent != 0 {
		t.Fatalf("second sweep sent %d, want 0", sent)
	}

	// collected, then ready again later
	lister.claims = nil
	s.Sweep(context.Background())
	lister.claims = []domain.Claim{readyClaim("c1", readyAt.Add(time.Hour))}
	if sent := s.Sweep(context.Background()); sent != 1 {
		t.Fatalf("new ready period sent %d, want 1", sent)
	}
}

func TestSweepSurvivesListError(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	notifier := &recordingNotifier{}
	s := newTestScheduler(t, lister, notifier, time.Now())

	if sent := s.Sweep(context.Background()); sent != 0 {
		t.Fatalf("sent %d, want 0", sent)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("unexpected notifications: %v", notifier.calls)
	}
}

func TestNewSchedulerRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		spec string
		age  time.Duration
	}{
		{name: "six fields", spec: "0 0 * * * *", age: time.Hour},
		{name: "garbage", spec: "every hour", age: time.Hour},
		{name: "zero age", spec: "0 * * * *", age: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScheduler(tt.spec, tt.age, &stubLister{}, &recordingNotifier{}, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
