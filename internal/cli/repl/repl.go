package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"judgeboard/internal/cli/command"
	httpclient "judgeboard/internal/cli/http"
	"judgeboard/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "judgeboard> "

// LineReader is the subset of *readline.Instance the session needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	profile    *state.Profile
	statePath  string
	prettyJSON bool
	reader     LineReader
	out        io.Writer
}

// Options configures a Session.
type Options struct {
	Client     *httpclient.Client
	Commands   map[string]command.Command
	Profile    *state.Profile
	StatePath  string
	PrettyJSON bool
	Reader     LineReader
	Out        io.Writer
}

func New(opts Options) *Session {
	profile := opts.Profile
	if profile == nil {
		profile = &state.Profile{}
	}
	return &Session{
		client:     opts.Client,
		commands:   opts.Commands,
		profile:    profile,
		statePath:  opts.StatePath,
		prettyJSON: opts.PrettyJSON,
		reader:     opts.Reader,
		out:        opts.Out,
	}
}

// NewTerminalReader opens a readline instance with persistent history.
func NewTerminalReader(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Run reads commands until exit, EOF or ctx cancellation.
func (s *Session) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.reader.SetPrompt(prompt)
		line, err := s.reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return
		}
		if s.handleSystemCommand(line) {
			continue
		}

		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) bool {
	if line == "help" {
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout|user|problem")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8000")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 30s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "user":
		if len(parts) < 2 {
			s.printLine("usage: set user <user_id>")
			return
		}
		s.profile.UserID = parts[1]
		s.saveProfile()
		s.printLine("user set to %s", parts[1])
	case "problem":
		if len(parts) < 2 {
			s.printLine("usage: set problem <problem_id>")
			return
		}
		s.profile.ProblemID = parts[1]
		s.saveProfile()
		s.printLine("problem set to %s", parts[1])
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "profile":
		s.printLine("user: %s", orEmpty(s.profile.UserID))
		s.printLine("problem: %s", orEmpty(s.profile.ProblemID))
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("statePath: %s", s.statePath)
	default:
		s.printLine("usage: show profile|config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	key := fmt.Sprintf("%s %s", tokens[0], tokens[1])
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}
	params.Canonicalize(cmd.Fields)

	s.applyProfileDefaults(cmd, params)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.rememberProblem(params, resp)
	return nil
}

func (s *Session) applyProfileDefaults(cmd command.Command, params command.Params) {
	for _, field := range cmd.Fields {
		if params.Get(field.Name) != "" {
			continue
		}
		switch field.Name {
		case "user_id":
			if s.profile.UserID != "" {
				params.Set("user_id", s.profile.UserID)
			}
		case "problem_id", "id":
			if s.profile.ProblemID != "" {
				params.Set(field.Name, s.profile.ProblemID)
			}
		case "code":
			if params.Get("code_file") != "" {
				params.Set("code", command.FromFile)
			}
		}
	}
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(label string) (string, error) {
	s.reader.SetPrompt(label + ": ")
	line, err := s.reader.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s) request=%s", resp.StatusCode, resp.Duration, resp.RequestID)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) rememberProblem(params command.Params, resp httpclient.ResponseInfo) {
	if resp.StatusCode/100 != 2 {
		return
	}
	problemID := params.Get("problem_id")
	if problemID == "" {
		problemID = params.Get("id")
	}
	if problemID == "" || problemID == s.profile.ProblemID {
		return
	}
	s.profile.ProblemID = problemID
	s.saveProfile()
}

func (s *Session) saveProfile() {
	if s.statePath == "" {
		return
	}
	if err := state.Save(s.statePath, *s.profile); err != nil {
		s.printLine("save profile failed: %v", err)
	}
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|user|problem | show profile|config")
	s.printLine("examples:")
	s.printLine("  problem list")
	s.printLine("  problem show id=power-of-two")
	s.printLine("  code run problem_id=power-of-two code_file=./solution.py")
	s.printLine("  code submit user_id=alice problem_id=power-of-two code_file=./solution.py")
	s.printLine("  leaderboard show")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

func orEmpty(v string) string {
	if v == "" {
		return "<empty>"
	}
	return v
}
