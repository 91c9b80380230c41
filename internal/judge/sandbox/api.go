// Package sandbox runs prepared programs under a wall-clock bound.
package sandbox

import (
	"context"
	"time"
)

// DefaultTimeout is the per-test wall-clock ceiling.
const DefaultTimeout = 5 * time.Second

// Program is a ready-to-run source file plus the bytes fed to its stdin.
type Program struct {
	Source string
	Stdin  string
}

// Kind classifies how an execution ended.
type Kind string

const (
	KindSuccess       Kind = "success"
	KindRuntimeError  Kind = "runtime-error"
	KindTimeout       Kind = "timeout"
	KindInternalError Kind = "internal-error"
)

// ExecutionResult is the outcome of one run. Stdout and Stderr are trimmed.
type ExecutionResult struct {
	Kind     Kind
	Stdout   string
	Stderr   string
	ExitCode int
	// Elapsed equals the timeout when Kind is KindTimeout.
	Elapsed time.Duration
	// Message describes an internal error.
	Message string
	// Truncated is set when stdout went past the output cap.
	Truncated bool
}

// Executor runs one program. Implementations must be safe for concurrent use
// and must never return without cleaning up the files they created.
type Executor interface {
	Run(ctx context.Context, prog Program, timeout time.Duration) ExecutionResult
}
