package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeSender struct {
	failTimes int
	calls     int
}

func (f *fakeSender) SendMessage(ctx context.Context, queueURL, body string) error {
	f.calls++
	if f.calls <= f.failTimes {
		return errors.New("simulated send failure")
	}
	return nil
}

func TestQueueChannelSendSucceedsFirstTry(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueueChannel(sender, "queue-url")
	if err := q.Send(context.Background(), Message{EventName: "Test", TagID: NewTagID()}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("expected exactly 1 send attempt, got %d", sender.calls)
	}
}

func TestQueueChannelSendExhaustsRetries(t *testing.T) {
	sender := &fakeSender{failTimes: MaxRetries}
	q := NewQueueChannel(sender, "queue-url")
	err := q.Send(context.Background(), Message{EventName: "Test", TagID: NewTagID()})
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if sender.calls != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, sender.calls)
	}
}

func TestPayloadMarshalJSONFlattensExtra(t *testing.T) {
	p := Payload{Tx: "0xabc", BlockNum: 10, Extra: map[string]any{"holographId": "1"}}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["tx"] != "0xabc" {
		t.Errorf("tx = %v, want 0xabc", out["tx"])
	}
	if out["holographId"] != "1" {
		t.Errorf("expected Extra field holographId to be flattened into the output, got %+v", out)
	}
}
