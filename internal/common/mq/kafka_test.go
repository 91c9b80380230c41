package mq

import (
	"testing"
	"time"
)

func TestToKafkaMessageCarriesIDAndHeaders(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := &Message{
		ID:        "sub-1",
		Body:      []byte(`{"ok":true}`),
		Headers:   map[string]string{"event": "submission.graded", "problem": "p1"},
		Timestamp: ts,
	}

	km := toKafkaMessage("judge.events", msg)
	if km.Topic != "judge.events" {
		t.Fatalf("topic = %q", km.Topic)
	}
	if string(km.Key) != "sub-1" {
		t.Fatalf("key = %q", km.Key)
	}
	if string(km.Value) != `{"ok":true}` {
		t.Fatalf("value = %q", km.Value)
	}
	if !km.Time.Equal(ts) {
		t.Fatalf("time = %v", km.Time)
	}

	got := map[string]string{}
	for _, h := range km.Headers {
		got[h.Key] = string(h.Value)
	}
	if got["event"] != "submission.graded" || got["problem"] != "p1" {
		t.Fatalf("custom headers missing: %v", got)
	}
	if got[headerID] != "sub-1" {
		t.Fatalf("id header = %q", got[headerID])
	}
	if got[headerTimestamp] != ts.Format(time.RFC3339Nano) {
		t.Fatalf("timestamp header = %q", got[headerTimestamp])
	}
	// custom headers are emitted in key order
	if km.Headers[0].Key != "event" || km.Headers[1].Key != "problem" {
		t.Fatalf("unexpected header order: %v", km.Headers)
	}
}

func TestToKafkaMessageFillsTimestamp(t *testing.T) {
	msg := &Message{Body: []byte("x")}
	km := toKafkaMessage("t", msg)
	if msg.Timestamp.IsZero() || km.Time.IsZero() {
		t.Fatalf("timestamp not filled")
	}
	if len(km.Key) != 0 {
		t.Fatalf("expected empty key, got %q", km.Key)
	}
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
