package repository

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"judgeboard/internal/judge/model"
	appErr "judgeboard/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const (
	jsonSuffix = ".json"
	zstdSuffix = ".json.zst"
)

// ProblemRepository provides test data per problem id.
type ProblemRepository interface {
	// Get returns the problem or a ProblemNotFound error.
	Get(ctx context.Context, problemID string) (*model.Problem, error)
	// List returns the ids of problems that carry test data, sorted.
	List(ctx context.Context) ([]string, error)
}

// problemFile is the on-disk test data layout.
type problemFile struct {
	PublicTests *[]model.TestCase `json:"public_tests"`
	HiddenTests *[]model.TestCase `json:"hidden_tests"`
}

func (f problemFile) hasTests() bool {
	return f.PublicTests != nil || f.HiddenTests != nil
}

// decodeProblem parses a test data document; compressed selects zstd framing.
func decodeProblem(problemID string, r io.Reader, compressed bool) (*model.Problem, bool, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, false, appErr.Wrapf(err, appErr.TestCaseInvalid, "create zstd reader failed")
		}
		defer zr.Close()
		r = zr
	}

	var doc problemFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, false, appErr.Wrapf(err, appErr.TestCaseInvalid, "decode test data for %s failed", problemID)
	}

	p := &model.Problem{ID: problemID}
	if doc.PublicTests != nil {
		p.PublicTests = *doc.PublicTests
	}
	if doc.HiddenTests != nil {
		p.HiddenTests = *doc.HiddenTests
	}
	return p, doc.hasTests(), nil
}

// validateProblemID rejects ids that could escape the data root.
func validateProblemID(problemID string) error {
	if problemID == "" {
		return appErr.ValidationError("problem_id", "required")
	}
	if strings.ContainsAny(problemID, `/\`) || strings.Contains(problemID, "..") || strings.ContainsRune(problemID, 0) {
		return appErr.ValidationError("problem_id", "invalid characters")
	}
	return nil
}

func problemNotFound(problemID string) error {
	return appErr.Newf(appErr.ProblemNotFound, "Test cases for '%s' not found", problemID).
		WithDetail("problem_id", problemID)
}

// idFromName maps a file or object name to a problem id.
func idFromName(name string) (string, bool, bool) {
	switch {
	case strings.HasSuffix(name, zstdSuffix):
		return strings.TrimSuffix(name, zstdSuffix), true, true
	case strings.HasSuffix(name, jsonSuffix):
		return strings.TrimSuffix(name, jsonSuffix), false, true
	default:
		return "", false, false
	}
}

func fileName(problemID string, compressed bool) string {
	if compressed {
		return problemID + zstdSuffix
	}
	return problemID + jsonSuffix
}
