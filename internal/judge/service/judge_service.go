// Package service grades submissions against problem test suites.
package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"judgeboard/internal/judge/model"
	"judgeboard/internal/judge/repository"
	"judgeboard/internal/judge/sandbox"
	"judgeboard/internal/judge/transform"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultQueueWait = 2 * time.Second
	// MaxRunTests bounds how many public tests a run executes.
	MaxRunTests = 4
)

// Service grades submissions. Tests within one call run sequentially; separate
// calls may run concurrently up to the configured slot count.
type Service struct {
	problems    repository.ProblemRepository
	executor    sandbox.Executor
	transformer *transform.Transformer
	timeout     time.Duration
	queueWait   time.Duration
	maxCodeSize int
	sem         chan struct{}
}

// Config holds service dependencies and settings.
type Config struct {
	Problems    repository.ProblemRepository
	Executor    sandbox.Executor
	Transformer *transform.Transformer
	// Timeout is the per-test wall-clock bound. Default: 5s.
	Timeout time.Duration
	// MaxConcurrent bounds concurrent grading calls. Default: 1.
	MaxConcurrent int
	// QueueWait bounds how long a call waits for a slot. Default: 2s.
	QueueWait time.Duration
	// MaxCodeSize rejects larger sources when positive.
	MaxCodeSize int
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = sandbox.DefaultTimeout
	}
	queueWait := cfg.QueueWait
	if queueWait <= 0 {
		queueWait = defaultQueueWait
	}
	poolSize := cfg.MaxConcurrent
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Service{
		problems:    cfg.Problems,
		executor:    cfg.Executor,
		transformer: cfg.Transformer,
		timeout:     timeout,
		queueWait:   queueWait,
		maxCodeSize: cfg.MaxCodeSize,
		sem:         make(chan struct{}, poolSize),
	}, nil
}

// Grade runs every public and hidden test of the problem and builds a report.
// It fails only when the submission is invalid or the problem has no test data.
func (s *Service) Grade(ctx context.Context, sub model.Submission) (*model.GradingReport, error) {
	if err := s.validate(sub.ProblemID, sub.Code); err != nil {
		return nil, err
	}
	// Only the per-test timeout stops a run; the caller going away does not.
	ctx = context.WithoutCancel(ctx)
	problem, err := s.problems.Get(ctx, sub.ProblemID)
	if err != nil {
		return nil, err
	}

	if err := s.acquireSlot(); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	tests := problem.AllTests()
	report := &model.GradingReport{
		ProblemID: problem.ID,
		Total:     len(tests),
		Errors:    []string{},
		Outcomes:  make([]model.TestOutcome, 0, len(tests)),
	}

	prepared, prepErr := s.transformer.PrepareCode(sub.Code)
	if prepErr != nil {
		logger.Warn(ctx, "code transform failed", zap.String("problem_id", sub.ProblemID), zap.Error(prepErr))
	}

	for i, tc := range tests {
		number := i + 1
		outcome := model.TestOutcome{
			Number:   number,
			Hidden:   i >= len(problem.PublicTests),
			Expected: strings.TrimSpace(tc.ExpectedOutput),
		}

		var res sandbox.ExecutionResult
		if prepErr != nil {
			res = sandbox.ExecutionResult{Kind: sandbox.KindInternalError, Message: prepErr.Error()}
		} else {
			prog := s.transformer.Build(ctx, prepared, sub.ProblemID, tc.Input)
			res = s.executor.Run(ctx, prog, s.timeout)
		}

		s.classify(number, tc, res, &outcome)
		report.ExecutionTime += outcome.Elapsed
		if outcome.Passed {
			report.Passed++
		} else {
			report.Errors = append(report.Errors, outcome.Error)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Verdict = model.ComputeVerdict(report.Passed, report.Total)
	logger.Info(ctx, "submission graded",
		zap.String("user_id", sub.UserID),
		zap.String("problem_id", sub.ProblemID),
		zap.Int("passed", report.Passed),
		zap.Int("total", report.Total),
		zap.String("verdict", string(report.Verdict)),
		zap.Duration("execution_time", report.ExecutionTime),
	)
	return report, nil
}

// RunPublic executes up to MaxRunTests public tests and reports each one in detail.
// Nothing is recorded.
func (s *Service) RunPublic(ctx context.Context, problemID, code string) (*model.RunReport, error) {
	if err := s.validate(problemID, code); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return nil, err
	}
	tests := problem.PublicTests
	if len(tests) == 0 {
		return nil, appErr.New(appErr.TestCaseNotFound).
			WithMessage("No public test cases available").
			WithDetail("problem_id", problemID)
	}

	if err := s.acquireSlot(); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	if len(tests) > MaxRunTests {
		tests = tests[:MaxRunTests]
	}

	prepared, prepErr := s.transformer.PrepareCode(code)
	report := &model.RunReport{Results: make([]model.RunCase, 0, len(tests))}
	for i, tc := range tests {
		var res sandbox.ExecutionResult
		if prepErr != nil {
			res = sandbox.ExecutionResult{Kind: sandbox.KindInternalError, Message: prepErr.Error()}
		} else {
			prog := s.transformer.Build(ctx, prepared, problemID, tc.Input)
			res = s.executor.Run(ctx, prog, s.timeout)
		}

		var outcome model.TestOutcome
		s.classify(i+1, tc, res, &outcome)
		rc := model.RunCase{
			TestNumber:     i + 1,
			Success:        res.Kind == sandbox.KindSuccess,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			ActualOutput:   res.Stdout,
			ExecutionTime:  roundTo(outcome.Elapsed.Seconds(), 3),
			Passed:         outcome.Passed,
		}
		if res.Kind != sandbox.KindSuccess || res.Truncated {
			rc.Error = outcome.Error
		}
		if outcome.Passed {
			report.Summary.Passed++
		}
		report.Results = append(report.Results, rc)
	}
	report.Summary.Total = len(tests)
	report.Summary.Percentage = roundTo(float64(report.Summary.Passed)/float64(report.Summary.Total)*100, 1)
	return report, nil
}

// ListProblems returns the ids of problems with test data.
func (s *Service) ListProblems(ctx context.Context) ([]string, error) {
	return s.problems.List(ctx)
}

// ProblemDetails returns the public tests and the hidden test count.
func (s *Service) ProblemDetails(ctx context.Context, problemID string) (*model.ProblemDetails, error) {
	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return nil, err
	}
	details := problem.Details()
	return &details, nil
}

// classify maps one execution result to a test outcome and its message.
func (s *Service) classify(number int, tc model.TestCase, res sandbox.ExecutionResult, out *model.TestOutcome) {
	out.Number = number
	out.Kind = string(res.Kind)
	out.Elapsed = res.Elapsed
	out.Actual = res.Stdout
	out.Expected = strings.TrimSpace(tc.ExpectedOutput)

	switch res.Kind {
	case sandbox.KindSuccess:
		if res.Truncated {
			out.Code = appErr.OutputLimitExceeded
			out.Error = fmt.Sprintf("Test %d: Output limit exceeded", number)
			return
		}
		if Normalize(res.Stdout) == Normalize(tc.ExpectedOutput) {
			out.Passed = true
			return
		}
		out.Code = appErr.WrongAnswer
		out.Error = fmt.Sprintf("Test %d: Expected '%s', got '%s'", number, out.Expected, res.Stdout)
	case sandbox.KindRuntimeError:
		if res.ExitCode == transform.HarnessExitCode && strings.HasPrefix(res.Stderr, transform.HarnessErrorPrefix) {
			out.Kind = string(sandbox.KindInternalError)
			out.Code = appErr.JudgeSystemError
			out.Error = fmt.Sprintf("Test %d: Execution error - %s", number, strings.TrimSpace(strings.TrimPrefix(res.Stderr, transform.HarnessErrorPrefix)))
			return
		}
		out.Code = appErr.RuntimeError
		out.Error = fmt.Sprintf("Test %d: Runtime error - %s", number, res.Stderr)
	case sandbox.KindTimeout:
		out.Elapsed = s.timeout
		out.Code = appErr.TimeLimitExceeded
		out.Error = fmt.Sprintf("Test %d: Timeout (exceeded %s seconds)", number, formatSeconds(s.timeout))
	default:
		out.Code = appErr.JudgeSystemError
		out.Error = fmt.Sprintf("Test %d: Execution error - %s", number, res.Message)
	}
}

func (s *Service) validate(problemID, code string) error {
	if strings.TrimSpace(problemID) == "" {
		return appErr.ValidationError("problem_id", "required")
	}
	if strings.TrimSpace(code) == "" {
		return appErr.ValidationError("code", "required")
	}
	if s.maxCodeSize > 0 && len(code) > s.maxCodeSize {
		return appErr.Newf(appErr.CodeTooLarge, "code exceeds %d bytes", s.maxCodeSize)
	}
	return nil
}

func (s *Service) acquireSlot() error {
	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("all judge slots are busy")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

// Normalize trims surrounding whitespace and drops every space character.
// Tabs and newlines inside the text are kept.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
