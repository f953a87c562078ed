// Package conventional parses conventional commit messages, derives the
// release level a set of commits calls for, and writes release notes.
package conventional

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	defaultHeaderPatternConstant = `^(\w*)(?:\(([\w$.\-* ]*)\))?: (.*)$`
	defaultRevertPatternConstant = `^Revert\s"([\s\S]*)"\s*This reverts commit (\w*)\.`
	defaultFieldPatternConstant  = `^-(.*?)-$`
)

// ErrEmptyMessage is returned when a commit message has no header.
var ErrEmptyMessage = errors.New("commit message is empty")

// Note is a titled footer note such as a breaking change.
type Note struct {
	Title string
	Text  string
}

// Reference points at an issue or pull request. Action is empty for plain
// mentions like "see #12".
type Reference struct {
	Action     string
	Owner      string
	Repository string
	Prefix     string
	Issue      string
	Raw        string
}

// Revert identifies the commit a revert commit undoes.
type Revert struct {
	Header string
	Hash   string
}

// Commit is a parsed commit message.
type Commit struct {
	Hash    string
	Header  string
	Type    string
	Scope   string
	Subject string
	Body    string
	Footer  string

	Notes      []Note
	References []Reference
	Revert     *Revert
	// Fields holds "-name-" delimited values appended by the log format.
	Fields map[string]string
}

// ShortHash returns the first seven characters of the hash.
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// Breaking reports whether the commit carries a breaking-change note.
func (c Commit) Breaking() bool {
	return len(c.Notes) > 0
}

// ParserOptions configures the commit grammar.
type ParserOptions struct {
	HeaderPattern              string
	ReferenceActions           []string
	IssuePrefixes              []string
	IssuePrefixesCaseSensitive bool
	NoteKeywords               []string
	FieldPattern               string
	RevertPattern              string
}

// DefaultParserOptions returns the grammar used for releases: angular-style
// headers, GitHub closing keywords and "#" issue references.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		HeaderPattern: defaultHeaderPatternConstant,
		ReferenceActions: []string{
			"close", "closes", "closed",
			"fix", "fixes", "fixed",
			"resolve", "resolves", "resolved",
		},
		IssuePrefixes: []string{"#"},
		NoteKeywords:  []string{"BREAKING CHANGE", "BREAKING CHANGES"},
		FieldPattern:  defaultFieldPatternConstant,
		RevertPattern: defaultRevertPatternConstant,
	}
}

// Parser parses commit messages with a fixed grammar.
type Parser struct {
	header     *regexp.Regexp
	revert     *regexp.Regexp
	field      *regexp.Regexp
	note       *regexp.Regexp
	reference  *regexp.Regexp
	actionLine *regexp.Regexp
}

// NewParser compiles the grammar.
func NewParser(opts ParserOptions) (*Parser, error) {
	if opts.HeaderPattern == "" {
		opts.HeaderPattern = defaultHeaderPatternConstant
	}
	if len(opts.IssuePrefixes) == 0 {
		opts.IssuePrefixes = []string{"#"}
	}

	p := &Parser{}
	var err error
	if p.header, err = regexp.Compile(opts.HeaderPattern); err != nil {
		return nil, fmt.Errorf("invalid header pattern: %w", err)
	}
	if opts.RevertPattern != "" {
		if p.revert, err = regexp.Compile(opts.RevertPattern); err != nil {
			return nil, fmt.Errorf("invalid revert pattern: %w", err)
		}
	}
	if opts.FieldPattern != "" {
		if p.field, err = regexp.Compile(opts.FieldPattern); err != nil {
			return nil, fmt.Errorf("invalid field pattern: %w", err)
		}
	}
	if len(opts.NoteKeywords) > 0 {
		p.note = regexp.MustCompile(`^[\s|*]*(` + alternation(opts.NoteKeywords) + `)[:\s]+(.*)`)
	}

	prefixes := alternation(opts.IssuePrefixes)
	if !opts.IssuePrefixesCaseSensitive {
		prefixes = "(?i:" + prefixes + ")"
	}
	issue := `(?:([\w.-]+)/([\w.-]+))?(` + prefixes + `)([\w-]*\d+)`
	if len(opts.ReferenceActions) > 0 {
		actions := alternation(opts.ReferenceActions)
		p.reference = regexp.MustCompile(`(?i:\b(` + actions + `)\s+)?` + issue)
		p.actionLine = regexp.MustCompile(`(?i)^\s*(?:` + actions + `)\s+` + issue)
	} else {
		p.reference = regexp.MustCompile(`()` + issue)
	}
	return p, nil
}

// MustParser is NewParser for the built-in grammar.
func MustParser(opts ParserOptions) *Parser {
	p, err := NewParser(opts)
	if err != nil {
		panic(err)
	}
	return p
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// Parse parses one raw commit message. Messages whose header does not match
// the grammar still parse, with empty Type, Scope and Subject.
func (p *Parser) Parse(message string) (Commit, error) {
	message = strings.ReplaceAll(message, "\r\n", "\n")
	lines := strings.Split(message, "\n")

	commit := Commit{Fields: map[string]string{}}
	lines = p.extractFields(lines, commit.Fields)
	commit.Hash = commit.Fields["hash"]

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return Commit{}, ErrEmptyMessage
	}

	commit.Header = strings.TrimSpace(lines[0])
	if m := p.header.FindStringSubmatch(commit.Header); m != nil {
		commit.Type = group(m, 1)
		commit.Scope = group(m, 2)
		commit.Subject = group(m, 3)
	}

	var body, footer []string
	var current *Note
	inFooter := false
	for _, line := range lines[1:] {
		if p.note != nil {
			if m := p.note.FindStringSubmatch(line); m != nil {
				inFooter = true
				commit.Notes = append(commit.Notes, Note{Title: m[1], Text: strings.TrimSpace(m[2])})
				current = &commit.Notes[len(commit.Notes)-1]
				footer = append(footer, line)
				continue
			}
		}
		if p.actionLine != nil && p.actionLine.MatchString(line) {
			inFooter = true
			current = nil
			footer = append(footer, line)
			continue
		}
		if !inFooter {
			body = append(body, line)
			continue
		}
		footer = append(footer, line)
		if current != nil {
			if current.Text == "" {
				current.Text = strings.TrimSpace(line)
			} else {
				current.Text += "\n" + line
			}
		}
	}

	commit.Body = strings.TrimSpace(strings.Join(body, "\n"))
	commit.Footer = strings.TrimSpace(strings.Join(footer, "\n"))
	for i := range commit.Notes {
		commit.Notes[i].Text = strings.TrimSpace(commit.Notes[i].Text)
	}

	commit.References = p.references(commit.Subject, commit.Body, commit.Footer)

	if p.revert != nil {
		if m := p.revert.FindStringSubmatch(strings.Join(lines, "\n")); m != nil {
			commit.Revert = &Revert{Header: group(m, 1), Hash: group(m, 2)}
		}
	}
	return commit, nil
}

// ParseAll parses every message, skipping empty ones.
func (p *Parser) ParseAll(messages []string) ([]Commit, error) {
	commits := make([]Commit, 0, len(messages))
	for _, message := range messages {
		commit, err := p.Parse(message)
		if errors.Is(err, ErrEmptyMessage) {
			continue
		}
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// extractFields removes "-name-" marker lines and the value lines that follow
// them. Fields always trail the message.
func (p *Parser) extractFields(lines []string, fields map[string]string) []string {
	if p.field == nil {
		return lines
	}
	start := -1
	for i, line := range lines {
		if p.field.MatchString(strings.TrimSpace(line)) {
			start = i
			break
		}
	}
	if start < 0 {
		return lines
	}

	var name string
	for _, line := range lines[start:] {
		if m := p.field.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			name = m[1]
			continue
		}
		value := strings.TrimSpace(line)
		if name == "" || value == "" {
			continue
		}
		if fields[name] != "" {
			fields[name] += "\n" + value
		} else {
			fields[name] = value
		}
	}
	return lines[:start]
}

func (p *Parser) references(texts ...string) []Reference {
	var refs []Reference
	seen := map[string]bool{}
	for _, text := range texts {
		for _, m := range p.reference.FindAllStringSubmatch(text, -1) {
			ref := Reference{
				Action:     strings.ToLower(group(m, 1)),
				Owner:      group(m, 2),
				Repository: group(m, 3),
				Prefix:     group(m, 4),
				Issue:      group(m, 5),
				Raw:        strings.TrimSpace(m[0]),
			}
			key := ref.Owner + "/" + ref.Repository + ref.Prefix + ref.Issue
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

func group(m []string, i int) string {
	if i < len(m) {
		return m[i]
	}
	return ""
}
