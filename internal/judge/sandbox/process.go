package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"judgeboard/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

const (
	defaultCommand        = "python3 {src}"
	defaultMaxOutputBytes = 1 << 20
	defaultWaitDelay      = 500 * time.Millisecond
)

// Config controls the process executor.
type Config struct {
	// Command is the interpreter template; {src} is replaced by the source path.
	Command string
	// WorkDir holds per-run temporary files. Empty means os.TempDir().
	WorkDir string
	// SourceSuffix is the temp file extension, e.g. ".py".
	SourceSuffix string
	// MaxOutputBytes caps each captured stream.
	MaxOutputBytes int64
	// Env is appended to the inherited environment.
	Env []string
}

// ProcessExecutor runs programs as child processes of the grader.
// It enforces the timeout only; it is not a security boundary.
type ProcessExecutor struct {
	cfg Config
}

// NewProcessExecutor validates cfg and fills defaults.
func NewProcessExecutor(cfg Config) (*ProcessExecutor, error) {
	if cfg.Command == "" {
		cfg.Command = defaultCommand
	}
	if !strings.Contains(cfg.Command, "{src}") {
		return nil, fmt.Errorf("command template %q must reference {src}", cfg.Command)
	}
	if _, err := shlex.Split(cfg.Command); err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	if cfg.SourceSuffix == "" {
		cfg.SourceSuffix = ".py"
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	if cfg.WorkDir != "" {
		if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	return &ProcessExecutor{cfg: cfg}, nil
}

// Run writes the source to a temp file, runs it and classifies the result.
func (e *ProcessExecutor) Run(ctx context.Context, prog Program, timeout time.Duration) ExecutionResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	srcPath, err := e.writeSource(prog.Source)
	if err != nil {
		return internalError(err)
	}
	defer func() {
		_ = os.Remove(srcPath)
	}()

	args, err := buildCommand(e.cfg.Command, srcPath)
	if err != nil {
		return internalError(err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(prog.Stdin)
	stdout := &limitedBuffer{max: e.cfg.MaxOutputBytes}
	stderr := &limitedBuffer{max: e.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(e.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), e.cfg.Env...)
	}
	configureProcessGroup(cmd)
	cmd.WaitDelay = defaultWaitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return internalError(fmt.Errorf("start %s: %w", args[0], err))
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return ExecutionResult{
			Kind:     KindInternalError,
			ExitCode: -1,
			Elapsed:  elapsed,
			Message:  fmt.Sprintf("execution canceled: %v", ctx.Err()),
		}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && (waitErr != nil || elapsed >= timeout) {
		return ExecutionResult{
			Kind:     KindTimeout,
			Stdout:   strings.TrimSpace(stdout.String()),
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: -1,
			Elapsed:  timeout,
			Message:  fmt.Sprintf("exceeded %s", timeout),
		}
	}

	res := ExecutionResult{
		Stdout:    strings.TrimSpace(stdout.String()),
		Stderr:    strings.TrimSpace(stderr.String()),
		Elapsed:   elapsed,
		Truncated: stdout.truncated,
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			logger.Warn(ctx, "wait for child failed", zap.Error(waitErr))
			res.Kind = KindInternalError
			res.ExitCode = -1
			res.Message = waitErr.Error()
			return res
		}
		res.Kind = KindRuntimeError
		res.ExitCode = exitErr.ExitCode()
		return res
	}
	res.Kind = KindSuccess
	return res
}

func (e *ProcessExecutor) writeSource(source string) (string, error) {
	f, err := os.CreateTemp(e.cfg.WorkDir, "submission-*"+e.cfg.SourceSuffix)
	if err != nil {
		return "", fmt.Errorf("create temp source: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(source); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp source: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp source: %w", err)
	}
	return path, nil
}

func buildCommand(tpl, srcPath string) ([]string, error) {
	parts, err := shlex.Split(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("command template is empty")
	}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "{src}", srcPath)
	}
	return parts, nil
}

func internalError(err error) ExecutionResult {
	return ExecutionResult{
		Kind:     KindInternalError,
		ExitCode: -1,
		Message:  err.Error(),
	}
}

// limitedBuffer keeps the first max bytes written, drops the rest and
// remembers that it did.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.max - int64(b.buf.Len())
	if int64(len(p)) > room {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
