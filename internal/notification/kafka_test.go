package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaNotifierEncodesMessage(t *testing.T) {
	w := &captureWriter{}
	n := NewKafkaNotifier(w)

	msg := Message{
		Kind:        KindBalanceAdjusted,
		Destination: "owner-1",
		Body:        "balance changed",
		Data:        map[string]string{"account_id": "acc-1"},
		OccurredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(w.msgs))
	}

	rec := w.msgs[0]
	if string(rec.Key) != "owner-1" {
		t.Fatalf("unexpected key %q", rec.Key)
	}
	if len(rec.Headers) != 1 || string(rec.Headers[0].Value) != KindBalanceAdjusted {
		t.Fatalf("unexpected headers %+v", rec.Headers)
	}

	var decoded Message
	if err := json.Unmarshal(rec.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data["account_id"] != "acc-1" || !decoded.OccurredAt.Equal(msg.OccurredAt) {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}
