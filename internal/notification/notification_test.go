package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"
)

type fakePusher struct {
	key    string
	values []interface{}
	err    error
}

func (f *fakePusher) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = append(f.values, values...)
	return redis.NewIntResult(int64(len(f.values)), f.err)
}

func TestRedisSinkPushesJSON(t *testing.T) {
	pusher := &fakePusher{}
	sink := NewRedisSink(pusher, "warranty:notifications")
	msg := Message{ID: "m1", Audience: AudienceCustomer, ClaimID: "c1", Event: "ready_for_handover", Subject: "Vehicle ready"}

	if err := sink.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pusher.key != "warranty:notifications" || len(pusher.values) != 1 {
		t.Fatalf("pushed key=%q values=%d", pusher.key, len(pusher.values))
	}
	var decoded Message
	if err := json.Unmarshal(pusher.values[0].([]byte), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.ClaimID != "c1" || decoded.Audience != AudienceCustomer {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestRedisSinkWrapsError(t *testing.T) {
	sink := NewRedisSink(&fakePusher{err: errors.New("down")}, "q")
	err := sink.Send(context.Background(), Message{})
	if err == nil || !strings.Contains(err.Error(), "rpush q") {
		t.Fatalf("err = %v", err)
	}
}

func TestSlackSinkFormatsMessage(t *testing.T) {
	var got *slack.WebhookMessage
	var gotURL string
	sink := NewSlackSink("https://hooks.example/abc", "#warranty")
	sink.post = func(_ context.Context, url string, msg *slack.WebhookMessage) error {
		gotURL, got = url, msg
		return nil
	}

	err := sink.Send(context.Background(), Message{ClaimNo: "WC-42", Event: "claim_rejected", Subject: "Rejected by EVM", Body: "missing photos"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotURL != "https://hooks.example/abc" {
		t.Errorf("url = %q", gotURL)
	}
	if got.Channel != "#warranty" || !strings.Contains(got.Text, "WC-42") {
		t.Errorf("message = %+v", got)
	}
	if len(got.Blocks.BlockSet) != 2 {
		t.Errorf("blocks = %d, want 2", len(got.Blocks.BlockSet))
	}
}

type recordingSink struct {
	sent []Message
	err  error
}

func (r *recordingSink) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestMultiSinkDeliversToAll(t *testing.T) {
	a := &recordingSink{err: errors.New("a failed")}
	b := &recordingSink{}
	err := MultiSink{a, nil, b}.Send(context.Background(), Message{ID: "m"})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("a=%d b=%d", len(a.sent), len(b.sent))
	}
}

func TestAudienceFilter(t *testing.T) {
	next := &recordingSink{}
	f := AudienceFilter{Audience: AudienceStaff, Next: next}
	_ = f.Send(context.Background(), Message{Audience: AudienceCustomer})
	_ = f.Send(context.Background(), Message{Audience: AudienceStaff})
	if len(next.sent) != 1 || next.sent[0].Audience != AudienceStaff {
		t.Fatalf("sent = %+v", next.sent)
	}
}
