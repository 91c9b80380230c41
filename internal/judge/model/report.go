package model

import (
	"time"

	appErr "judgeboard/pkg/errors"
)

// Verdict is the overall classification of a graded submission.
type Verdict string

const (
	VerdictPassed    Verdict = "passed"
	VerdictPartially Verdict = "partially"
	VerdictFailed    Verdict = "failed"
)

const (
	// MaxResponseErrors bounds the error list returned to callers.
	MaxResponseErrors = 5
	// MaxPersistedErrors bounds the error list stored with a leaderboard entry.
	MaxPersistedErrors = 3
)

// ComputeVerdict classifies a score. A suite with no tests is failed.
func ComputeVerdict(passed, total int) Verdict {
	switch {
	case total > 0 && passed == total:
		return VerdictPassed
	case passed == 0:
		return VerdictFailed
	default:
		return VerdictPartially
	}
}

// TestOutcome records what happened for one test case. Code classifies a
// failed test and is zero when the test passed.
type TestOutcome struct {
	Number   int              `json:"test_number"`
	Hidden   bool             `json:"hidden"`
	Passed   bool             `json:"passed"`
	Kind     string           `json:"kind"`
	Elapsed  time.Duration    `json:"elapsed"`
	Code     appErr.ErrorCode `json:"code,omitempty"`
	Error    string           `json:"error,omitempty"`
	Actual   string           `json:"-"`
	Expected string           `json:"-"`
}

// GradingReport aggregates the outcome of one grading call.
type GradingReport struct {
	ProblemID     string        `json:"problem_id"`
	Passed        int           `json:"passed"`
	Total         int           `json:"total"`
	Errors        []string      `json:"errors"`
	ExecutionTime time.Duration `json:"execution_time"`
	Verdict       Verdict       `json:"verdict"`
	Outcomes      []TestOutcome `json:"outcomes"`
}

// ResponseErrors returns at most MaxResponseErrors error descriptions.
func (r *GradingReport) ResponseErrors() []string {
	return firstN(r.Errors, MaxResponseErrors)
}

// PersistedErrors returns at most MaxPersistedErrors error descriptions.
func (r *GradingReport) PersistedErrors() []string {
	return firstN(r.Errors, MaxPersistedErrors)
}

// ExecutionSeconds reports the total execution time in seconds.
func (r *GradingReport) ExecutionSeconds() float64 {
	return r.ExecutionTime.Seconds()
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		out := make([]string, len(in))
		copy(out, in)
		return out
	}
	out := make([]string, n)
	copy(out, in[:n])
	return out
}
