// Package tap formats a streaming TAP (Test Anything Protocol) report into
// human-readable test results.
package tap

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	planPattern   = regexp.MustCompile(`^1\.\.(\d+)`)
	resultPattern = regexp.MustCompile(`^(not ok|ok)\b\s*(\d+)?\s*(?:-\s*)?(.*?)\s*(?:#\s*((?i:skip|todo))\b\s*(.*))?$`)
	bailPattern   = regexp.MustCompile(`^Bail out!\s*(.*)$`)
)

// Directive marks a test result as skipped or todo.
type Directive string

const (
	DirectiveNone Directive = ""
	DirectiveSkip Directive = "SKIP"
	DirectiveTodo Directive = "TODO"
)

// Result is one test point.
type Result struct {
	Number      int
	OK          bool
	Description string
	Directive   Directive
	Reason      string
	Diagnostics []string
}

// Summary totals a TAP stream.
type Summary struct {
	Planned  int
	Passed   int
	Failed   int
	Skipped  int
	Todo     int
	BailOut  string
	Failures []Result
}

// OK reports whether the stream describes a passing run.
func (s Summary) OK() bool {
	if s.BailOut != "" || s.Failed > 0 {
		return false
	}
	total := s.Passed + s.Skipped + s.Todo
	return s.Planned == 0 || s.Planned == total
}

// Formatter is an io.WriteCloser that renders TAP written to it. Output is
// produced line by line as input arrives; Close flushes any partial line and
// prints the summary.
type Formatter struct {
	out     io.Writer
	mu      sync.Mutex
	buf     bytes.Buffer
	summary Summary
	last    *Result
	inYAML  bool

	pass, fail, skip, dim *color.Color
}

// NewFormatter creates a formatter writing to out.
func NewFormatter(out io.Writer, disableColors bool) *Formatter {
	f := &Formatter{
		out:  out,
		pass: color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		skip: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
	}
	if disableColors {
		for _, c := range []*color.Color{f.pass, f.fail, f.skip, f.dim} {
			c.DisableColor()
		}
	}
	return f
}

// Write implements io.Writer.
func (f *Formatter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf.Write(p)
	for {
		line, err := f.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			f.buf.Reset()
			f.buf.WriteString(line)
			break
		}
		if err := f.handle(strings.TrimRight(line, "\r\n")); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close flushes buffered input and writes the summary.
func (f *Formatter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buf.Len() > 0 {
		line := f.buf.String()
		f.buf.Reset()
		if err := f.handle(strings.TrimRight(line, "\r\n")); err != nil {
			return err
		}
	}
	return f.writeSummary()
}

// Summary returns the totals seen so far.
func (f *Formatter) Summary() Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.summary
	s.Failures = append([]Result(nil), f.summary.Failures...)
	return s
}

func (f *Formatter) handle(line string) error {
	trimmed := strings.TrimSpace(line)

	if f.inYAML {
		if trimmed == "..." {
			f.inYAML = false
			return nil
		}
		if f.last != nil {
			f.last.Diagnostics = append(f.last.Diagnostics, trimmed)
			if len(f.summary.Failures) > 0 && !f.last.OK {
				f.summary.Failures[len(f.summary.Failures)-1].Diagnostics = f.last.Diagnostics
			}
		}
		if f.last != nil && !f.last.OK {
			_, err := f.dim.Fprintf(f.out, "      %s\n", trimmed)
			return err
		}
		return nil
	}

	switch {
	case trimmed == "" || strings.HasPrefix(trimmed, "TAP version"):
		return nil

	case trimmed == "---":
		f.inYAML = true
		return nil

	case planPattern.MatchString(trimmed):
		n, _ := strconv.Atoi(planPattern.FindStringSubmatch(trimmed)[1])
		f.summary.Planned = n
		return nil

	case bailPattern.MatchString(trimmed):
		reason := bailPattern.FindStringSubmatch(trimmed)[1]
		f.summary.BailOut = reason
		_, err := f.fail.Fprintf(f.out, "Bail out! %s\n", reason)
		return err

	case strings.HasPrefix(trimmed, "#"):
		_, err := f.dim.Fprintf(f.out, "  %s\n", strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
		return err

	case resultPattern.MatchString(trimmed):
		return f.handleResult(resultPattern.FindStringSubmatch(trimmed))

	default:
		_, err := fmt.Fprintf(f.out, "  %s\n", line)
		return err
	}
}

func (f *Formatter) handleResult(m []string) error {
	r := Result{
		OK:          m[1] == "ok",
		Description: strings.TrimSpace(m[3]),
		Directive:   Directive(strings.ToUpper(m[4])),
		Reason:      strings.TrimSpace(m[5]),
	}
	r.Number, _ = strconv.Atoi(m[2])
	f.last = &r

	var err error
	switch {
	case r.Directive == DirectiveSkip:
		f.summary.Skipped++
		_, err = f.skip.Fprintf(f.out, "  - %s %s\n", r.Description, skipSuffix(r))
	case r.Directive == DirectiveTodo:
		f.summary.Todo++
		_, err = f.skip.Fprintf(f.out, "  - %s %s\n", r.Description, skipSuffix(r))
	case r.OK:
		f.summary.Passed++
		_, err = f.pass.Fprintf(f.out, "  ✔ %s\n", r.Description)
	default:
		f.summary.Failed++
		f.summary.Failures = append(f.summary.Failures, r)
		_, err = f.fail.Fprintf(f.out, "  ✖ %s\n", r.Description)
	}
	return err
}

func (f *Formatter) writeSummary() error {
	s := f.summary
	if _, err := fmt.Fprintln(f.out); err != nil {
		return err
	}
	if _, err := f.pass.Fprintf(f.out, "  %d passing\n", s.Passed); err != nil {
		return err
	}
	if s.Failed > 0 {
		if _, err := f.fail.Fprintf(f.out, "  %d failing\n", s.Failed); err != nil {
			return err
		}
	}
	if s.Skipped+s.Todo > 0 {
		if _, err := f.skip.Fprintf(f.out, "  %d pending\n", s.Skipped+s.Todo); err != nil {
			return err
		}
	}
	if total := s.Passed + s.Failed + s.Skipped + s.Todo; s.Planned > 0 && total != s.Planned {
		if _, err := f.fail.Fprintf(f.out, "  planned %d tests but saw %d\n", s.Planned, total); err != nil {
			return err
		}
	}

	for i, r := range s.Failures {
		if _, err := f.fail.Fprintf(f.out, "\n  %d) %s\n", i+1, r.Description); err != nil {
			return err
		}
		for _, d := range r.Diagnostics {
			if _, err := f.dim.Fprintf(f.out, "     %s\n", d); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipSuffix(r Result) string {
	label := strings.ToLower(string(r.Directive))
	if r.Reason == "" {
		return "(" + label + ")"
	}
	return fmt.Sprintf("(%s: %s)", label, r.Reason)
}

// Parse reads a complete TAP stream and returns its summary without
// rendering anything.
func Parse(r io.Reader) (Summary, error) {
	f := NewFormatter(io.Discard, true)
	if _, err := io.Copy(f, r); err != nil {
		return Summary{}, err
	}
	if err := f.Close(); err != nil {
		return Summary{}, err
	}
	return f.Summary(), nil
}
