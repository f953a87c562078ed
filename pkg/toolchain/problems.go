package toolchain

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ProblemSeverity indicates the severity of a lint finding.
type ProblemSeverity string

const (
	ProblemSeverityError   ProblemSeverity = "error"
	ProblemSeverityWarning ProblemSeverity = "warning"
	ProblemSeverityInfo    ProblemSeverity = "info"
)

// Problem is one finding extracted from linter output.
type Problem struct {
	File     string
	Line     int
	Column   int
	Severity ProblemSeverity
	Message  string
}

func (p Problem) String() string {
	loc := p.File
	if p.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, p.Line)
		if p.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, p.Column)
		}
	}
	return fmt.Sprintf("%s: %s", loc, p.Message)
}

// ProblemMatcher extracts findings from tool output line by line. The pattern
// either uses named groups (file, line, column, severity, message) or the
// positional groups 1 file, 2 line, 3 column, 4 message.
type ProblemMatcher struct {
	regex *regexp.Regexp

	file, line, column, sev, message int
}

// NewProblemMatcher compiles pattern.
func NewProblemMatcher(pattern string) (*ProblemMatcher, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid problem pattern: %w", err)
	}

	m := &ProblemMatcher{
		regex:   regex,
		file:    regex.SubexpIndex("file"),
		line:    regex.SubexpIndex("line"),
		column:  regex.SubexpIndex("column"),
		sev:     regex.SubexpIndex("severity"),
		message: regex.SubexpIndex("message"),
	}
	if m.file < 0 && m.message < 0 {
		m.file, m.line, m.column, m.sev, m.message = 1, 2, 3, -1, 4
	}
	return m, nil
}

// Match extracts a finding from a single line.
func (m *ProblemMatcher) Match(line string) (Problem, bool) {
	matches := m.regex.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if matches == nil {
		return Problem{}, false
	}

	group := func(i int) string {
		if i > 0 && i < len(matches) {
			return matches[i]
		}
		return ""
	}
	number := func(i int) int {
		n, _ := strconv.Atoi(group(i))
		return n
	}

	return Problem{
		File:     group(m.file),
		Line:     number(m.line),
		Column:   number(m.column),
		Severity: parseSeverity(group(m.sev)),
		Message:  strings.TrimSpace(group(m.message)),
	}, true
}

// MatchAll extracts every finding from output.
func (m *ProblemMatcher) MatchAll(output string) []Problem {
	var problems []Problem
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if p, ok := m.Match(scanner.Text()); ok {
			problems = append(problems, p)
		}
	}
	return problems
}

func parseSeverity(s string) ProblemSeverity {
	switch strings.ToLower(s) {
	case "warning", "warn":
		return ProblemSeverityWarning
	case "info", "note":
		return ProblemSeverityInfo
	default:
		return ProblemSeverityError
	}
}
