// Package service grades a submission, records it on the leaderboard and announces it.
package service

import (
	"context"
	"fmt"
	"strings"

	judgemodel "judgeboard/internal/judge/model"
	judgeservice "judgeboard/internal/judge/service"
	lbmodel "judgeboard/internal/leaderboard/model"
	lbservice "judgeboard/internal/leaderboard/service"
	"judgeboard/internal/submit/repository"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

// SubmitService orchestrates grade -> record -> publish.
type SubmitService struct {
	judge       *judgeservice.Service
	leaderboard *lbservice.Store
	events      repository.EventPublisher
}

// Config holds service dependencies.
type Config struct {
	Judge       *judgeservice.Service
	Leaderboard *lbservice.Store
	// Events is optional.
	Events repository.EventPublisher
}

// SubmitInput is one submission request.
type SubmitInput struct {
	UserID    string
	ProblemID string
	Code      string
}

// GradeSummary is the grading part of a submit response.
type GradeSummary struct {
	Score        int      `json:"score"`
	Total        int      `json:"total"`
	Verdict      string   `json:"verdict"`
	ReplayResult string   `json:"replay_result"`
	ErrorDetails []string `json:"error_details"`
}

// SubmitResult is returned for every graded submission.
type SubmitResult struct {
	Grade GradeSummary `json:"grade"`
	// LeaderboardEntry is the stored best entry after this submission.
	LeaderboardEntry lbmodel.Entry `json:"leaderboard_entry"`
	// Attempt is the entry built from this submission.
	Attempt  lbmodel.Entry `json:"attempt"`
	Replaced bool          `json:"replaced"`
	Warning  string        `json:"warning,omitempty"`
}

// NewSubmitService creates a new submit service.
func NewSubmitService(cfg Config) (*SubmitService, error) {
	if cfg.Judge == nil {
		return nil, fmt.Errorf("judge service is required")
	}
	if cfg.Leaderboard == nil {
		return nil, fmt.Errorf("leaderboard store is required")
	}
	events := cfg.Events
	if events == nil {
		events = repository.NopEventPublisher{}
	}
	return &SubmitService{
		judge:       cfg.Judge,
		leaderboard: cfg.Leaderboard,
		events:      events,
	}, nil
}

// Submit grades the code, folds the report into the leaderboard and publishes an event.
// Only validation errors and a missing problem fail the call.
func (s *SubmitService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, appErr.ValidationError("user_id", "required")
	}
	// A graded attempt is always recorded, even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	report, err := s.judge.Grade(ctx, judgemodel.Submission{
		UserID:    input.UserID,
		ProblemID: input.ProblemID,
		Code:      input.Code,
	})
	if err != nil {
		return nil, err
	}

	recorded := s.leaderboard.Record(ctx, input.UserID, input.ProblemID, report)
	s.publish(ctx, recorded)

	return &SubmitResult{
		Grade: GradeSummary{
			Score:        report.Passed,
			Total:        report.Total,
			Verdict:      string(report.Verdict),
			ReplayResult: lbmodel.ReplayLabel(report.Passed, report.Total),
			ErrorDetails: report.ResponseErrors(),
		},
		LeaderboardEntry: recorded.Best,
		Attempt:          recorded.Attempt,
		Replaced:         recorded.Replaced,
		Warning:          recorded.Warning,
	}, nil
}

func (s *SubmitService) publish(ctx context.Context, recorded lbservice.RecordResult) {
	attempt := recorded.Attempt
	event := repository.SubmissionEvent{
		Type:          repository.EventGraded,
		SubmissionID:  attempt.SubmissionID,
		UserID:        attempt.UserID,
		ProblemID:     attempt.ProblemID,
		Score:         attempt.Score,
		Total:         attempt.Total,
		Verdict:       attempt.Verdict,
		ExecutionTime: attempt.Seconds(),
		Replaced:      recorded.Replaced,
		ErrorDetails:  attempt.ErrorDetails,
		GradedAt:      attempt.Timestamp,
	}
	if err := s.events.PublishGraded(ctx, event); err != nil {
		logger.Warn(ctx, "publish submission event failed",
			zap.String("submission_id", attempt.SubmissionID),
			zap.Error(err),
		)
	}
}
