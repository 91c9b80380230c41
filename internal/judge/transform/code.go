package transform

import (
	"strings"
)

// scanState is the state of the return-rewriting line scanner.
type scanState int

const (
	outsideEntry scanState = iota
	insideEntry
)

// emitFunc is defined by the harness; rewritten returns route their value through it.
const emitFunc = "__judge_emit"

// RewriteReturns rewrites every `return <expr>` lexically inside the body of
// `def <entry>(` into `return __judge_emit((<expr>))`, which prints the value and
// returns it. Bare `return` and `return None` are left alone.
//
// The body is tracked by indentation only: a non-blank, non-comment line indented
// at or left of the def ends it. Each tab counts as one column. Every line is
// rewritten in place, so the line count never changes.
func RewriteReturns(code, entry string) string {
	lines := strings.Split(code, "\n")
	state := outsideEntry
	defIndent := 0

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)

		if state == insideEntry {
			if isBlankOrComment(trimmed) {
				continue
			}
			if indent <= defIndent {
				state = outsideEntry
			} else {
				if rewritten, ok := rewriteReturn(line[:indent], trimmed); ok {
					lines[i] = rewritten
				}
				continue
			}
		}

		if isEntryDef(trimmed, entry) {
			state = insideEntry
			defIndent = indent
		}
	}
	return strings.Join(lines, "\n")
}

func isBlankOrComment(trimmed string) bool {
	t := strings.TrimSpace(trimmed)
	return t == "" || strings.HasPrefix(t, "#")
}

func isEntryDef(trimmed, entry string) bool {
	rest, ok := strings.CutPrefix(trimmed, "def ")
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	rest, ok = strings.CutPrefix(rest, entry)
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(rest, " \t"), "(")
}

// rewriteReturn rewrites one return statement. ok is false when the line is not a
// value-carrying return.
func rewriteReturn(indent, trimmed string) (string, bool) {
	rest, ok := strings.CutPrefix(trimmed, "return")
	if !ok || rest == "" {
		return "", false
	}
	if c := rest[0]; c != ' ' && c != '\t' && c != '(' && c != '[' && c != '{' && c != '"' && c != '\'' {
		return "", false
	}

	body, comment := splitComment(rest)
	expr := strings.TrimSpace(body)
	expr = strings.TrimSuffix(expr, ";")
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "None" {
		return "", false
	}
	// Statements continued on following lines are left as written.
	if strings.HasSuffix(expr, "\\") || !balanced(expr) {
		return "", false
	}

	out := indent + "return " + emitFunc + "((" + expr + "))"
	if comment != "" {
		out += "  " + comment
	}
	return out, true
}

// splitComment separates a trailing '#' comment that is not inside a string literal.
func splitComment(s string) (string, string) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '#':
			return s[:i], s[i:]
		}
	}
	return s, ""
}

// balanced reports whether every bracket opened outside a string literal is closed.
func balanced(expr string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
	}
	return depth == 0 && quote == 0
}
