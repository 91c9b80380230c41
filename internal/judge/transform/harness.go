package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// HarnessExitCode is the exit status the harness uses for its own failures,
// such as a missing entry function. It lets the grader tell harness faults
// apart from errors raised by the submission.
const HarnessExitCode = 86

// HarnessErrorPrefix starts the stderr line written on a harness failure.
const HarnessErrorPrefix = "harness:"

// AppendHarness appends the __main__ block that replaces sys.stdin with stdin
// and calls entry exactly once. The payload is embedded as a quoted literal.
func AppendHarness(code, entry, stdin string) string {
	var b strings.Builder
	b.Grow(len(code) + len(stdin) + 512)
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, `

def %[1]s(value):
    print(value)
    return value


if __name__ == "__main__":
    import sys
    from io import StringIO

    sys.stdin = StringIO(%[2]s)
    _entry = globals().get(%[3]s)
    if not callable(_entry):
        sys.stderr.write("%[4]s entry function %[5]s is not defined\n")
        sys.exit(%[6]d)
    _entry()
`, emitFunc, strconv.Quote(stdin), strconv.Quote(entry), HarnessErrorPrefix, strings.ReplaceAll(entry, `"`, ``), HarnessExitCode)
	return b.String()
}
