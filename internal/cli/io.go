package cli

import (
	"fmt"
	"io"
)

// maxEarlyWarnings caps the warnings listed before the first output line.
// A recursive walk can warn once per file; the full list follows at the end.
const maxEarlyWarnings = 5

// IO wraps the streams of one command run.
//
// Problems with single inputs (an unreadable path, an image that does not
// decode) do not stop a command. They are collected with [IO.Warn], listed
// on stderr before the first line of output and again in full by
// [IO.Finish], and turn the exit code into 1.
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string
	started  bool
}

// NewIO creates an IO over the given streams.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Warn records a problem with subject, usually a path.
func (o *IO) Warn(subject, problem string) {
	o.warnings = append(o.warnings, subject+": "+problem)
}

// Warnings returns the number of recorded warnings.
func (o *IO) Warnings() int { return len(o.warnings) }

// Println writes to stdout, after the early warning list on first use.
func (o *IO) Println(a ...any) {
	o.flushEarly()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout, after the early warning list on
// first use.
func (o *IO) Printf(format string, a ...any) {
	o.flushEarly()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// In returns the command input.
func (o *IO) In() io.Reader { return o.in }

// Out returns stdout for writers that bypass warning handling.
func (o *IO) Out() io.Writer { return o.out }

// Finish lists every warning on stderr and returns the exit code: 1 if
// anything was warned about, 0 otherwise.
func (o *IO) Finish() int {
	o.flushEarly()

	if len(o.warnings) == 0 {
		return 0
	}

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	_, _ = fmt.Fprintf(o.errOut, "%d warning(s)\n", len(o.warnings))

	return 1
}

func (o *IO) flushEarly() {
	if o.started || len(o.warnings) == 0 {
		return
	}

	o.started = true

	for i, w := range o.warnings {
		if i == maxEarlyWarnings {
			_, _ = fmt.Fprintf(o.errOut, "warning: ... and %d more, listed at the end\n", len(o.warnings)-i)

			return
		}

		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
