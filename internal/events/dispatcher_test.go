package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventClaimCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.ClaimID)
		return errors.New("boom")
	})
	d.Subscribe(EventClaimCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.ClaimID)
		return nil
	})
	d.Subscribe(EventClaimRejected, func(context.Context, Event) error {
		t.Error("handler for another type invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventClaimCreated, ClaimID: "c1"})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("Publish error = %v, want boom", err)
	}
	if len(calls) != 2 || calls[1] != "second:c1" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestPublishWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventPartsReserved}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
