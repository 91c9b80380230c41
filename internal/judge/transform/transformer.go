// Package transform turns a submission and one test input into a runnable program.
package transform

import (
	"context"
	"strings"

	"judgeboard/internal/judge/sandbox"
	appErr "judgeboard/pkg/errors"
)

const defaultEntryFunction = "solve"

// Config controls code preparation.
type Config struct {
	// EntryFunction is the function the harness calls. Default: solve.
	EntryFunction string
	// RewriteReturns enables return-to-print rewriting inside the entry function.
	RewriteReturns bool
}

// Transformer prepares programs for the executor.
type Transformer struct {
	inputs  *InputRegistry
	entry   string
	rewrite bool
}

// New creates a transformer. A nil registry means no input rewrites.
func New(cfg Config, inputs *InputRegistry) *Transformer {
	if inputs == nil {
		inputs = NewInputRegistry()
	}
	entry := cfg.EntryFunction
	if entry == "" {
		entry = defaultEntryFunction
	}
	return &Transformer{
		inputs:  inputs,
		entry:   entry,
		rewrite: cfg.RewriteReturns,
	}
}

// EntryFunction returns the configured entry function name.
func (t *Transformer) EntryFunction() string {
	return t.entry
}

// PrepareCode applies the code rewrite. Call it once per grading call and reuse the result.
func (t *Transformer) PrepareCode(code string) (string, error) {
	if strings.ContainsRune(code, 0) {
		return "", appErr.New(appErr.CodeTransformFailed).WithMessage("source contains NUL bytes")
	}
	code = strings.ReplaceAll(code, "\r\n", "\n")
	if !t.rewrite {
		return code, nil
	}
	return RewriteReturns(code, t.entry), nil
}

// Build combines prepared code with the transformed input for one test case.
func (t *Transformer) Build(ctx context.Context, preparedCode, problemID, rawInput string) sandbox.Program {
	stdin := t.inputs.Transform(ctx, problemID, rawInput)
	return sandbox.Program{
		Source: AppendHarness(preparedCode, t.entry, stdin),
		Stdin:  stdin,
	}
}

// Prepare is PrepareCode followed by Build, for one-off use.
func (t *Transformer) Prepare(ctx context.Context, problemID, code, rawInput string) (sandbox.Program, error) {
	prepared, err := t.PrepareCode(code)
	if err != nil {
		return sandbox.Program{}, err
	}
	return t.Build(ctx, prepared, problemID, rawInput), nil
}
