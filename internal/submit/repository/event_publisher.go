package repository

import (
	"context"
	"encoding/json"
	"time"

	"judgeboard/internal/common/mq"
	appErr "judgeboard/pkg/errors"
)

const (
	// EventGraded is the type of the event published after every graded submission.
	EventGraded = "submission.graded"

	defaultPublishTimeout = 3 * time.Second
)

// SubmissionEvent describes one graded submission.
type SubmissionEvent struct {
	Type          string    `json:"type"`
	SubmissionID  string    `json:"submission_id"`
	UserID        string    `json:"user_id"`
	ProblemID     string    `json:"problem_id"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	Verdict       string    `json:"verdict"`
	ExecutionTime float64   `json:"execution_time"`
	Replaced      bool      `json:"replaced"`
	ErrorDetails  []string  `json:"error_details"`
	GradedAt      time.Time `json:"graded_at"`
}

// EventPublisher announces graded submissions to other systems.
type EventPublisher interface {
	PublishGraded(ctx context.Context, event SubmissionEvent) error
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishGraded(context.Context, SubmissionEvent) error { return nil }

// MQEventPublisher publishes events as JSON messages keyed by submission id.
type MQEventPublisher struct {
	producer mq.Producer
	topic    string
	timeout  time.Duration
}

// NewMQEventPublisher creates a publisher for the topic.
func NewMQEventPublisher(producer mq.Producer, topic string, timeout time.Duration) *MQEventPublisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &MQEventPublisher{producer: producer, topic: topic, timeout: timeout}
}

// PublishGraded encodes and publishes one event.
func (p *MQEventPublisher) PublishGraded(ctx context.Context, event SubmissionEvent) error {
	if p.topic == "" {
		return appErr.New(appErr.MQPublishFailed).WithMessage("event topic is not configured")
	}
	if event.Type == "" {
		event.Type = EventGraded
	}
	body, err := json.Marshal(event)
	if err != nil {
		return appErr.Wrapf(err, appErr.MQPublishFailed, "encode submission event failed")
	}
	msg := mq.NewMessage(body)
	msg.ID = event.SubmissionID
	msg.SetHeader("event-type", event.Type)
	msg.SetHeader("problem-id", event.ProblemID)

	ctxPub, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.Publish(ctxPub, p.topic, msg); err != nil {
		return appErr.Wrapf(err, appErr.MQPublishFailed, "publish submission event failed")
	}
	return nil
}
