package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"judgeboard/internal/common/mq"
	"judgeboard/internal/submit/repository"
	appErr "judgeboard/pkg/errors"
)

type fakeProducer struct {
	topic    string
	messages []*mq.Message
	err      error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, message *mq.Message) error {
	p.topic = topic
	p.messages = append(p.messages, message)
	return p.err
}

func (p *fakeProducer) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	for _, m := range messages {
		if err := p.Publish(ctx, topic, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestMQEventPublisher(t *testing.T) {
	producer := &fakeProducer{}
	pub := repository.NewMQEventPublisher(producer, "judge.graded", 0)

	err := pub.PublishGraded(context.Background(), repository.SubmissionEvent{
		SubmissionID: "sub-1",
		UserID:       "u",
		ProblemID:    "p",
		Score:        2,
		Total:        3,
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if producer.topic != "judge.graded" || len(producer.messages) != 1 {
		t.Fatalf("unexpected publish %q %d", producer.topic, len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.ID != "sub-1" {
		t.Fatalf("message should be keyed by submission id, got %q", msg.ID)
	}
	if v, _ := msg.GetHeader("event-type"); v != repository.EventGraded {
		t.Fatalf("unexpected event type header %q", v)
	}
	var event repository.SubmissionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if event.Type != repository.EventGraded || event.Score != 2 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestMQEventPublisherErrors(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	err := repository.NewMQEventPublisher(producer, "t", 0).PublishGraded(context.Background(), repository.SubmissionEvent{SubmissionID: "x"})
	if !appErr.Is(err, appErr.MQPublishFailed) {
		t.Fatalf("expected MQPublishFailed, got %v", err)
	}

	err = repository.NewMQEventPublisher(producer, "", 0).PublishGraded(context.Background(), repository.SubmissionEvent{})
	if !appErr.Is(err, appErr.MQPublishFailed) {
		t.Fatalf("expected MQPublishFailed for missing topic, got %v", err)
	}
}
