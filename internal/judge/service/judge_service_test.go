package service_test

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"judgeboard/internal/judge/model"
	"judgeboard/internal/judge/sandbox"
	"judgeboard/internal/judge/service"
	"judgeboard/internal/judge/transform"
	appErr "judgeboard/pkg/errors"
)

type fakeProblems struct {
	problems map[string]*model.Problem
}

func (f *fakeProblems) Get(_ context.Context, problemID string) (*model.Problem, error) {
	p, ok := f.problems[problemID]
	if !ok {
		return nil, appErr.Newf(appErr.ProblemNotFound, "Test cases for '%s' not found", problemID)
	}
	return p, nil
}

func (f *fakeProblems) List(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.problems))
	for id := range f.problems {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	results  []sandbox.ExecutionResult
	programs []sandbox.Program
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeExecutor) Run(_ context.Context, prog sandbox.Program, _ time.Duration) sandbox.ExecutionResult {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.programs)
	f.programs = append(f.programs, prog)
	if idx < len(f.results) {
		return f.results[idx]
	}
	return sandbox.ExecutionResult{Kind: sandbox.KindSuccess}
}

func newService(t *testing.T, problems *fakeProblems, exec sandbox.Executor, cfg service.Config) *service.Service {
	t.Helper()
	cfg.Problems = problems
	cfg.Executor = exec
	if cfg.Transformer == nil {
		cfg.Transformer = transform.New(transform.Config{RewriteReturns: true}, transform.DefaultInputRegistry())
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	svc, err := service.NewService(cfg)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	return svc
}

func threeTestProblem() *fakeProblems {
	return &fakeProblems{problems: map[string]*model.Problem{
		"sum": {
			ID: "sum",
			PublicTests: []model.TestCase{
				{Input: "1 2", ExpectedOutput: "3"},
				{Input: "2 2", ExpectedOutput: "4"},
			},
			HiddenTests: []model.TestCase{
				{Input: "5 5", ExpectedOutput: "10"},
			},
		},
	}}
}

func TestGradeClassifiesEveryOutcome(t *testing.T) {
	problems := &fakeProblems{problems: map[string]*model.Problem{
		"p": {
			ID: "p",
			PublicTests: []model.TestCase{
				{Input: "a", ExpectedOutput: " 1 2 3 "},
				{Input: "b", ExpectedOutput: "x"},
				{Input: "c", ExpectedOutput: "y"},
			},
			HiddenTests: []model.TestCase{
				{Input: "d", ExpectedOutput: "z"},
				{Input: "e", ExpectedOutput: "w"},
				{Input: "f", ExpectedOutput: "v"},
			},
		},
	}}
	exec := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Kind: sandbox.KindSuccess, Stdout: "123", Elapsed: 100 * time.Millisecond},
		{Kind: sandbox.KindSuccess, Stdout: "nope", Elapsed: 200 * time.Millisecond},
		{Kind: sandbox.KindRuntimeError, Stderr: "ZeroDivisionError", ExitCode: 1, Elapsed: 50 * time.Millisecond},
		{Kind: sandbox.KindTimeout, Elapsed: 2 * time.Second},
		{Kind: sandbox.KindInternalError, Message: "interpreter not found"},
		{Kind: sandbox.KindRuntimeError, ExitCode: transform.HarnessExitCode, Stderr: "harness: entry function solve is not defined"},
	}}
	svc := newService(t, problems, exec, service.Config{Timeout: 2500 * time.Millisecond})

	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u1", ProblemID: "p", Code: "def solve():\n    return 1\n"})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Total != 6 || report.Passed != 1 {
		t.Fatalf("expected 1/6, got %d/%d", report.Passed, report.Total)
	}
	if report.Verdict != model.VerdictPartially {
		t.Fatalf("expected partially, got %s", report.Verdict)
	}
	want := []string{
		"Test 2: Expected 'x', got 'nope'",
		"Test 3: Runtime error - ZeroDivisionError",
		"Test 4: Timeout (exceeded 2.5 seconds)",
		"Test 5: Execution error - interpreter not found",
		"Test 6: Execution error - entry function solve is not defined",
	}
	if len(report.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), report.Errors)
	}
	for i := range want {
		if report.Errors[i] != want[i] {
			t.Fatalf("error %d: expected %q, got %q", i, want[i], report.Errors[i])
		}
	}
	// 0.1 + 0.2 + 0.05 + 2.5 (pinned timeout)
	if report.ExecutionTime != 2850*time.Millisecond {
		t.Fatalf("unexpected execution time %v", report.ExecutionTime)
	}
	if !report.Outcomes[3].Hidden || report.Outcomes[2].Hidden {
		t.Fatalf("hidden flags not set from combined sequence")
	}
	codes := []appErr.ErrorCode{
		0,
		appErr.WrongAnswer,
		appErr.RuntimeError,
		appErr.TimeLimitExceeded,
		appErr.JudgeSystemError,
		appErr.JudgeSystemError,
	}
	for i, want := range codes {
		if got := report.Outcomes[i].Code; got != want {
			t.Fatalf("outcome %d: code = %d, want %d", i+1, got, want)
		}
	}
	if got := len(report.ResponseErrors()); got != 5 {
		t.Fatalf("expected 5 response errors, got %d", got)
	}
	if got := len(report.PersistedErrors()); got != 3 {
		t.Fatalf("expected 3 persisted errors, got %d", got)
	}
}

func TestGradeAllPassed(t *testing.T) {
	exec := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Kind: sandbox.KindSuccess, Stdout: "3"},
		{Kind: sandbox.KindSuccess, Stdout: "4"},
		{Kind: sandbox.KindSuccess, Stdout: "10"},
	}}
	svc := newService(t, threeTestProblem(), exec, service.Config{})

	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "sum", Code: "def solve(): pass"})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Verdict != model.VerdictPassed || report.Passed != 3 || len(report.Errors) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(exec.programs) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(exec.programs))
	}
	if exec.programs[2].Stdin != "5 5" {
		t.Fatalf("hidden test input not passed through, got %q", exec.programs[2].Stdin)
	}
	if !strings.Contains(exec.programs[0].Source, "__main__") {
		t.Fatalf("harness missing from program source")
	}
}

func TestGradeAllFailedStillReturnsReport(t *testing.T) {
	exec := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Kind: sandbox.KindRuntimeError, Stderr: "boom", ExitCode: 1},
		{Kind: sandbox.KindRuntimeError, Stderr: "boom", ExitCode: 1},
		{Kind: sandbox.KindRuntimeError, Stderr: "boom", ExitCode: 1},
	}}
	svc := newService(t, threeTestProblem(), exec, service.Config{})

	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "sum", Code: "raise"})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Verdict != model.VerdictFailed || report.Passed != 0 || report.Total != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestGradeReportsTruncatedOutput(t *testing.T) {
	exec := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Kind: sandbox.KindSuccess, Stdout: "3", Truncated: true},
		{Kind: sandbox.KindSuccess, Stdout: "4"},
		{Kind: sandbox.KindSuccess, Stdout: "10"},
	}}
	svc := newService(t, threeTestProblem(), exec, service.Config{})

	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "sum", Code: "def solve(): pass"})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Passed != 2 || report.Errors[0] != "Test 1: Output limit exceeded" {
		t.Fatalf("unexpected report: %d passed, errors %v", report.Passed, report.Errors)
	}
	if report.Outcomes[0].Code != appErr.OutputLimitExceeded {
		t.Fatalf("expected OutputLimitExceeded, got %d", report.Outcomes[0].Code)
	}
}

// answerExecutor answers each stdin from a table but fails once its context is done.
type answerExecutor struct {
	answers map[string]string
}

func (a answerExecutor) Run(ctx context.Context, prog sandbox.Program, _ time.Duration) sandbox.ExecutionResult {
	if err := ctx.Err(); err != nil {
		return sandbox.ExecutionResult{Kind: sandbox.KindInternalError, Message: err.Error()}
	}
	return sandbox.ExecutionResult{Kind: sandbox.KindSuccess, Stdout: a.answers[prog.Stdin]}
}

func TestGradeIgnoresCallerCancellation(t *testing.T) {
	exec := answerExecutor{answers: map[string]string{"1 2": "3", "2 2": "4", "5 5": "10"}}
	svc := newService(t, threeTestProblem(), exec, service.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.Grade(ctx, model.Submission{UserID: "u", ProblemID: "sum", Code: "def solve(): pass"})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Passed != 3 || report.Verdict != model.VerdictPassed {
		t.Fatalf("expected 3/3 with a canceled caller, got %d/%d %v", report.Passed, report.Total, report.Errors)
	}

	run, err := svc.RunPublic(ctx, "sum", "def solve(): pass")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Summary.Passed != 2 {
		t.Fatalf("expected 2 public passes with a canceled caller, got %+v", run.Summary)
	}
}

func TestGradeProblemNotFound(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newService(t, threeTestProblem(), exec, service.Config{})

	_, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "missing", Code: "x"})
	if !appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("expected ProblemNotFound, got %v", err)
	}
	if len(exec.programs) != 0 {
		t.Fatalf("no test should run for a missing problem")
	}
}

func TestGradeValidation(t *testing.T) {
	svc := newService(t, threeTestProblem(), &fakeExecutor{}, service.Config{MaxCodeSize: 8})

	cases := []struct {
		name string
		sub  model.Submission
		code appErr.ErrorCode
	}{
		{name: "empty problem", sub: model.Submission{Code: "x"}, code: appErr.ValidationFailed},
		{name: "empty code", sub: model.Submission{ProblemID: "sum", Code: "  "}, code: appErr.ValidationFailed},
		{name: "code too large", sub: model.Submission{ProblemID: "sum", Code: "123456789"}, code: appErr.CodeTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Grade(context.Background(), tc.sub)
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected %d, got %v", tc.code, err)
			}
		})
	}
}

func TestGradeCodeTransformFailureIsExecutionError(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newService(t, threeTestProblem(), exec, service.Config{})

	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "sum", Code: "def solve():\x00"})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Passed != 0 || len(report.Errors) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.HasPrefix(report.Errors[0], "Test 1: Execution error - ") {
		t.Fatalf("unexpected error %q", report.Errors[0])
	}
	if len(exec.programs) != 0 {
		t.Fatalf("executor must not run on transform failure")
	}
}

func TestGradeQueueFull(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := newService(t, threeTestProblem(), exec, service.Config{MaxConcurrent: 1, QueueWait: 20 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Grade(context.Background(), model.Submission{UserID: "a", ProblemID: "sum", Code: "x"})
	}()
	<-exec.entered

	_, err := svc.Grade(context.Background(), model.Submission{UserID: "b", ProblemID: "sum", Code: "x"})
	if !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected JudgeQueueFull, got %v", err)
	}
	close(exec.block)
	<-done
}

func TestRunPublicLimitsAndSummarizes(t *testing.T) {
	public := make([]model.TestCase, 6)
	for i := range public {
		public[i] = model.TestCase{Input: "in", ExpectedOutput: "ok"}
	}
	problems := &fakeProblems{problems: map[string]*model.Problem{
		"p": {ID: "p", PublicTests: public, HiddenTests: []model.TestCase{{Input: "h", ExpectedOutput: "h"}}},
	}}
	exec := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Kind: sandbox.KindSuccess, Stdout: "ok", Elapsed: 1234567 * time.Microsecond},
		{Kind: sandbox.KindSuccess, Stdout: "bad"},
		{Kind: sandbox.KindRuntimeError, Stderr: "trace", ExitCode: 1},
		{Kind: sandbox.KindSuccess, Stdout: "ok"},
	}}
	svc := newService(t, problems, exec, service.Config{})

	report, err := svc.RunPublic(context.Background(), "p", "def solve(): pass")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(report.Results) != service.MaxRunTests || len(exec.programs) != service.MaxRunTests {
		t.Fatalf("expected %d results, got %d", service.MaxRunTests, len(report.Results))
	}
	if report.Summary.Passed != 2 || report.Summary.Total != 4 || report.Summary.Percentage != 50 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
	if report.Results[0].ExecutionTime != 1.235 {
		t.Fatalf("expected rounded time 1.235, got %v", report.Results[0].ExecutionTime)
	}
	if report.Results[1].Error != "" || !report.Results[1].Success || report.Results[1].Passed {
		t.Fatalf("mismatch should succeed without error: %+v", report.Results[1])
	}
	if report.Results[2].Error != "Test 3: Runtime error - trace" || report.Results[2].Success {
		t.Fatalf("unexpected runtime result: %+v", report.Results[2])
	}
}

func TestRunPublicPercentageRounding(t *testing.T) {
	problems := &fakeProblems{problems: map[string]*model.Problem{
		"p": {ID: "p", PublicTests: []model.TestCase{
			{ExpectedOutput: "1"}, {ExpectedOutput: "1"}, {ExpectedOutput: "1"},
		}},
	}}
	exec := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Kind: sandbox.KindSuccess, Stdout: "1"},
		{Kind: sandbox.KindSuccess, Stdout: "1"},
		{Kind: sandbox.KindSuccess, Stdout: "0"},
	}}
	svc := newService(t, problems, exec, service.Config{})

	report, err := svc.RunPublic(context.Background(), "p", "x")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Summary.Percentage != 66.7 {
		t.Fatalf("expected 66.7, got %v", report.Summary.Percentage)
	}
}

func TestRunPublicWithoutPublicTests(t *testing.T) {
	problems := &fakeProblems{problems: map[string]*model.Problem{
		"hidden-only": {ID: "hidden-only", HiddenTests: []model.TestCase{{Input: "1", ExpectedOutput: "1"}}},
	}}
	exec := &fakeExecutor{}
	svc := newService(t, problems, exec, service.Config{})

	_, err := svc.RunPublic(context.Background(), "hidden-only", "def solve(): pass")
	if !appErr.Is(err, appErr.TestCaseNotFound) {
		t.Fatalf("expected TestCaseNotFound, got %v", err)
	}
	if err.Error() != "No public test cases available" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(exec.programs) != 0 {
		t.Fatalf("nothing should run without public tests")
	}
}

func TestProblemDetails(t *testing.T) {
	svc := newService(t, threeTestProblem(), &fakeExecutor{}, service.Config{})

	details, err := svc.ProblemDetails(context.Background(), "sum")
	if err != nil {
		t.Fatalf("details failed: %v", err)
	}
	if len(details.PublicTests) != 2 || details.HiddenTestsCount != 1 || details.TotalTests != 3 {
		t.Fatalf("unexpected details: %+v", details)
	}
	if _, err := svc.ProblemDetails(context.Background(), "nope"); !appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("expected ProblemNotFound, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "  1 2 3  ", want: "123"},
		{in: "[1, 2]\n", want: "[1,2]"},
		{in: "1\n2", want: "1\n2"},
		{in: "a\tb", want: "a\tb"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		got := service.Normalize(tc.in)
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if again := service.Normalize(got); again != got {
			t.Fatalf("Normalize not idempotent for %q", tc.in)
		}
	}
	if service.Normalize("1\n2") == service.Normalize("1 2") {
		t.Fatalf("newlines must not match spaces")
	}
}

func TestGradePowerOfTwoEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	executor, err := sandbox.NewProcessExecutor(sandbox.Config{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new executor failed: %v", err)
	}
	problems := &fakeProblems{problems: map[string]*model.Problem{
		"power-of-two": {
			ID: "power-of-two",
			PublicTests: []model.TestCase{
				{Input: "1", ExpectedOutput: "True"},
				{Input: "16", ExpectedOutput: "True"},
			},
			HiddenTests: []model.TestCase{
				{Input: "3", ExpectedOutput: "False"},
				{Input: "0", ExpectedOutput: "False"},
			},
		},
	}}
	svc := newService(t, problems, executor, service.Config{})

	code := "def solve():\n    n = int(input())\n    return n > 0 and (n & (n - 1)) == 0\n"
	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "power-of-two", Code: code})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Verdict != model.VerdictPassed || report.Passed != 4 {
		t.Fatalf("expected all tests to pass, got %+v", report.Errors)
	}
}

func TestGradePrintStyleSolutionReportsMismatch(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	executor, err := sandbox.NewProcessExecutor(sandbox.Config{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new executor failed: %v", err)
	}
	problems := &fakeProblems{problems: map[string]*model.Problem{
		"power-of-two": {
			ID: "power-of-two",
			PublicTests: []model.TestCase{
				{Input: "16", ExpectedOutput: "true"},
				{Input: "15", ExpectedOutput: "true"},
			},
		},
	}}
	svc := newService(t, problems, executor, service.Config{})

	code := "def solve():\n    n = int(input())\n    print(str(n > 0 and (n & (n - 1)) == 0).lower())\n"
	report, err := svc.Grade(context.Background(), model.Submission{UserID: "u", ProblemID: "power-of-two", Code: code})
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if report.Passed != 1 || report.Total != 2 || report.Verdict != model.VerdictPartially {
		t.Fatalf("expected 1/2, got %d/%d %v", report.Passed, report.Total, report.Errors)
	}
	if len(report.Errors) != 1 || report.Errors[0] != "Test 2: Expected 'true', got 'false'" {
		t.Fatalf("unexpected errors %v", report.Errors)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	again, err := svc.Grade(ctx, model.Submission{UserID: "u", ProblemID: "power-of-two", Code: code})
	if err != nil {
		t.Fatalf("grade with canceled caller failed: %v", err)
	}
	if again.Passed != 1 {
		t.Fatalf("canceled caller changed the score: %d/%d %v", again.Passed, again.Total, again.Errors)
	}
}
