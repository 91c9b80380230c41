package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

// InputFunc rewrites a raw fixture input into the stdin format a program expects.
type InputFunc func(raw string) (string, error)

// InputRegistry maps problem ids to input rewrites. Unknown ids pass through.
type InputRegistry struct {
	mu    sync.RWMutex
	funcs map[string]InputFunc
}

// NewInputRegistry returns an empty registry.
func NewInputRegistry() *InputRegistry {
	return &InputRegistry{funcs: make(map[string]InputFunc)}
}

// DefaultInputRegistry returns a registry holding the built-in rewrites.
func DefaultInputRegistry() *InputRegistry {
	r := NewInputRegistry()
	r.Register("find-town-judge", TrustPairs)
	return r
}

// Register binds fn to problemID, replacing any previous binding.
func (r *InputRegistry) Register(problemID string, fn InputFunc) {
	if problemID == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[problemID] = fn
}

// Has reports whether a rewrite is registered for problemID.
func (r *InputRegistry) Has(problemID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[problemID]
	return ok
}

// Transform applies the registered rewrite. It never fails: on error the raw input is returned.
func (r *InputRegistry) Transform(ctx context.Context, problemID, raw string) string {
	r.mu.RLock()
	fn, ok := r.funcs[problemID]
	r.mu.RUnlock()
	if !ok {
		return raw
	}
	out, err := fn(raw)
	if err != nil {
		wrapped := appErr.Wrapf(err, appErr.InputTransformFailed, "transform input for %s failed", problemID)
		logger.Warn(ctx, "input transform failed, using raw input",
			zap.String("problem_id", problemID),
			zap.Error(wrapped),
		)
		return raw
	}
	return out
}

// TrustPairs turns "n\n[[a,b],...]" into "n m" followed by one "a b" line per pair.
// A missing second line means no pairs.
func TrustPairs(raw string) (string, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	n := strings.TrimSpace(lines[0])
	pairsLine := "[]"
	if len(lines) > 1 {
		pairsLine = strings.TrimSpace(lines[1])
	}

	dec := json.NewDecoder(strings.NewReader(pairsLine))
	dec.UseNumber()
	var pairs [][]interface{}
	if err := dec.Decode(&pairs); err != nil {
		return "", fmt.Errorf("decode pairs: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d", n, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return "", fmt.Errorf("pair %d has %d elements, want 2", i, len(pair))
		}
		fmt.Fprintf(&b, "\n%v %v", pair[0], pair[1])
	}
	return b.String(), nil
}
