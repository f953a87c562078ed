package conventional

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"
)

const (
	defaultHostConstant       = "https://github.com"
	defaultCommitPathConstant = "commit"
	defaultIssuePathConstant  = "issues"
	releaseDateLayoutConstant = "2006-01-02"
)

// DefaultTypeTitles names the sections commit types are grouped under. Types
// without a title are left out of the notes unless they carry notes.
var DefaultTypeTitles = map[string]string{
	"feat":   "Features",
	"fix":    "Bug Fixes",
	"perf":   "Performance Improvements",
	"revert": "Reverts",
	"deps":   "Dependencies",
}

const notesTemplate = `## {{if .CompareURL}}[{{.Version}}]({{.CompareURL}}){{else}}{{.Version}}{{end}} ({{.Date}})
{{range .Groups}}
### {{.Title}}

{{range .Commits}}* {{if .Scope}}**{{.Scope}}:** {{end}}{{.Subject}}{{if .Hash}} ({{link .ShortHash .CommitURL}}){{end}}{{range $i, $ref := .References}}{{if eq $i 0}}, closes{{end}} {{link $ref.Text $ref.URL}}{{end}}
{{end}}{{end}}{{range .NoteGroups}}
### {{.Title}}

{{range .Notes}}* {{if .Scope}}**{{.Scope}}:** {{end}}{{.Text}}
{{end}}{{end}}`

// WriterOptions configures the notes layout and links.
type WriterOptions struct {
	Host           string
	Owner          string
	Repository     string
	CommitPath     string
	IssuePath      string
	LinkCompare    bool
	LinkReferences bool
	TypeTitles     map[string]string
}

// Context describes the release the notes are written for.
type Context struct {
	Version     string
	PreviousTag string
	CurrentTag  string
	Date        time.Time
}

// Writer accumulates commits and renders them as a markdown release section.
type Writer struct {
	opts     WriterOptions
	template *template.Template

	mu      sync.Mutex
	pending []Commit
}

// NewWriter creates a writer. Zero options link to github.com.
func NewWriter(opts WriterOptions) *Writer {
	if opts.Host == "" {
		opts.Host = defaultHostConstant
	}
	opts.Host = strings.TrimRight(opts.Host, "/")
	if opts.CommitPath == "" {
		opts.CommitPath = defaultCommitPathConstant
	}
	if opts.IssuePath == "" {
		opts.IssuePath = defaultIssuePathConstant
	}
	if opts.TypeTitles == nil {
		opts.TypeTitles = DefaultTypeTitles
	}

	w := &Writer{opts: opts}
	w.template = template.Must(template.New("notes").Funcs(template.FuncMap{
		"link": func(text, url string) string {
			if url == "" || !opts.LinkReferences {
				return text
			}
			return fmt.Sprintf("[%s](%s)", text, url)
		},
	}).Parse(notesTemplate))
	return w
}

// Add queues commits for the next Flush.
func (w *Writer) Add(commits ...Commit) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, commits...)
}

// Flush renders every queued commit as one release section and empties the
// queue. Reverted commits are left out.
func (w *Writer) Flush(ctx Context) (string, error) {
	w.mu.Lock()
	commits := w.pending
	w.pending = nil
	w.mu.Unlock()

	if ctx.Version == "" {
		return "", fmt.Errorf("release version is required")
	}
	if ctx.Date.IsZero() {
		ctx.Date = time.Now()
	}

	var buf bytes.Buffer
	if err := w.template.Execute(&buf, w.document(ctx, FilterReverted(commits))); err != nil {
		return "", fmt.Errorf("failed to render release notes: %w", err)
	}
	return buf.String(), nil
}

// Write renders commits in one call.
func (w *Writer) Write(ctx Context, commits []Commit) (string, error) {
	w.Add(commits...)
	return w.Flush(ctx)
}

type renderReference struct {
	Text string
	URL  string
}

type renderCommit struct {
	Scope      string
	Subject    string
	Hash       string
	ShortHash  string
	CommitURL  string
	References []renderReference
}

type renderGroup struct {
	Title   string
	Commits []renderCommit
}

type renderNote struct {
	Scope string
	Text  string
}

type renderNoteGroup struct {
	Title string
	Notes []renderNote
}

type document struct {
	Version    string
	Date       string
	CompareURL string
	Groups     []renderGroup
	NoteGroups []renderNoteGroup
}

func (w *Writer) document(ctx Context, commits []Commit) document {
	doc := document{Version: ctx.Version, Date: ctx.Date.Format(releaseDateLayoutConstant)}
	if w.opts.LinkCompare && w.hasRepository() && ctx.PreviousTag != "" && ctx.CurrentTag != "" {
		doc.CompareURL = fmt.Sprintf("%s/compare/%s...%s", w.repositoryURL(), ctx.PreviousTag, ctx.CurrentTag)
	}

	sorted := append([]Commit(nil), commits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Subject != sorted[j].Subject {
			return sorted[i].Subject < sorted[j].Subject
		}
		return sorted[i].Scope < sorted[j].Scope
	})

	groups := map[string][]renderCommit{}
	notes := map[string][]renderNote{}
	for _, c := range sorted {
		for _, n := range c.Notes {
			notes[n.Title] = append(notes[n.Title], renderNote{Scope: c.Scope, Text: n.Text})
		}

		kind, subject := c.Type, c.Subject
		if c.Revert != nil {
			kind, subject = "revert", c.Revert.Header
		}
		title, ok := w.opts.TypeTitles[kind]
		if !ok {
			if len(c.Notes) == 0 || kind == "" {
				continue
			}
			title = kind
		}
		groups[title] = append(groups[title], w.renderCommit(c, subject))
	}

	for _, title := range sortedKeys(groups) {
		doc.Groups = append(doc.Groups, renderGroup{Title: title, Commits: groups[title]})
	}
	for _, title := range sortedKeys(notes) {
		group := notes[title]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Text < group[j].Text })
		doc.NoteGroups = append(doc.NoteGroups, renderNoteGroup{Title: title, Notes: group})
	}
	return doc
}

func (w *Writer) renderCommit(c Commit, subject string) renderCommit {
	rc := renderCommit{Scope: c.Scope, Subject: subject, Hash: c.Hash, ShortHash: c.ShortHash()}
	if c.Hash != "" && w.hasRepository() {
		rc.CommitURL = fmt.Sprintf("%s/%s/%s", w.repositoryURL(), w.opts.CommitPath, c.Hash)
	}
	for _, ref := range c.References {
		if ref.Action == "" {
			continue
		}
		text := ref.Prefix + ref.Issue
		owner, repo := w.opts.Owner, w.opts.Repository
		if ref.Owner != "" {
			text = ref.Owner + "/" + ref.Repository + text
			owner, repo = ref.Owner, ref.Repository
		}
		rr := renderReference{Text: text}
		if owner != "" && repo != "" {
			rr.URL = fmt.Sprintf("%s/%s/%s/%s/%s", w.opts.Host, owner, repo, w.opts.IssuePath, ref.Issue)
		}
		rc.References = append(rc.References, rr)
	}
	return rc
}

func (w *Writer) hasRepository() bool {
	return w.opts.Owner != "" && w.opts.Repository != ""
}

func (w *Writer) repositoryURL() string {
	return fmt.Sprintf("%s/%s/%s", w.opts.Host, w.opts.Owner, w.opts.Repository)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
