package conventional

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, messages ...string) []Commit {
	t.Helper()
	commits, err := MustParser(DefaultParserOptions()).ParseAll(messages)
	require.NoError(t, err)
	return commits
}

func TestParseHeader(t *testing.T) {
	testCases := []struct {
		name    string
		message string
		kind    string
		scope   string
		subject string
	}{
		{name: "scoped", message: "fix(core): patch bug", kind: "fix", scope: "core", subject: "patch bug"},
		{name: "unscoped", message: "feat: add endpoint", kind: "feat", subject: "add endpoint"},
		{name: "special scope characters", message: "perf($http.client-*): faster", kind: "perf", scope: "$http.client-*", subject: "faster"},
		{name: "not conventional", message: "Update README", subject: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			commit, err := MustParser(DefaultParserOptions()).Parse(testCase.message)
			require.NoError(t, err)
			require.Equal(t, testCase.kind, commit.Type)
			require.Equal(t, testCase.scope, commit.Scope)
			require.Equal(t, testCase.subject, commit.Subject)
			require.Equal(t, testCase.message, commit.Header)
		})
	}
}

func TestParseEmptyMessage(t *testing.T) {
	_, err := MustParser(DefaultParserOptions()).Parse("\n\n")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestParseBodyNotesAndReferences(t *testing.T) {
	message := strings.Join([]string{
		"feat(api): replace endpoint",
		"",
		"The old endpoint is gone, see #7 for context.",
		"",
		"BREAKING CHANGE: /v1/items was removed",
		"use /v2/items instead",
		"Closes #12, fixes octo/repo#34",
	}, "\n")

	commit, err := MustParser(DefaultParserOptions()).Parse(message)
	require.NoError(t, err)

	require.Equal(t, "The old endpoint is gone, see #7 for context.", commit.Body)
	require.Len(t, commit.Notes, 1)
	require.Equal(t, "BREAKING CHANGE", commit.Notes[0].Title)
	require.Equal(t, "/v1/items was removed\nuse /v2/items instead", commit.Notes[0].Text)
	require.True(t, commit.Breaking())

	require.Len(t, commit.References, 3)
	require.Equal(t, Reference{Prefix: "#", Issue: "7", Raw: "#7"}, commit.References[0])
	require.Equal(t, "closes", commit.References[1].Action)
	require.Equal(t, "12", commit.References[1].Issue)
	require.Equal(t, "fixes", commit.References[2].Action)
	require.Equal(t, "octo", commit.References[2].Owner)
	require.Equal(t, "repo", commit.References[2].Repository)
	require.Equal(t, "34", commit.References[2].Issue)
}

func TestParseBreakingChangesKeyword(t *testing.T) {
	commit, err := MustParser(DefaultParserOptions()).Parse("refactor: drop node 10\n\nBREAKING CHANGES: node 12 is required")
	require.NoError(t, err)
	require.Len(t, commit.Notes, 1)
	require.Equal(t, "BREAKING CHANGES", commit.Notes[0].Title)
	require.Equal(t, "node 12 is required", commit.Notes[0].Text)
}

func TestParseRevertAndFields(t *testing.T) {
	message := strings.Join([]string{
		`Revert "feat(api): add endpoint"`,
		"",
		"This reverts commit 1a2b3c4d.",
		"",
		"-hash-",
		"9f8e7d6c5b4a",
		"-committerDate-",
		"2026-10-01T10:00:00Z",
	}, "\n")

	commit, err := MustParser(DefaultParserOptions()).Parse(message)
	require.NoError(t, err)
	require.NotNil(t, commit.Revert)
	require.Equal(t, "feat(api): add endpoint", commit.Revert.Header)
	require.Equal(t, "1a2b3c4d", commit.Revert.Hash)
	require.Equal(t, "9f8e7d6c5b4a", commit.Hash)
	require.Equal(t, "2026-10-01T10:00:00Z", commit.Fields["committerDate"])
	require.Equal(t, "This reverts commit 1a2b3c4d.", commit.Body)
}

func TestAnalyze(t *testing.T) {
	testCases := []struct {
		name     string
		messages []string
		rules    []Rule
		expected ReleaseType
	}{
		{
			name:     "highest wins across fix feat and deps",
			messages: []string{"fix(core): patch bug", "feat(api): add endpoint", "deps(lib): bump version"},
			rules:    ReleaseRules,
			expected: ReleaseMinor,
		},
		{
			name:     "deps alone is a patch with release rules",
			messages: []string{"deps(lib): bump version"},
			rules:    ReleaseRules,
			expected: ReleasePatch,
		},
		{
			name:     "deps alone is nothing without release rules",
			messages: []string{"deps(lib): bump version"},
			expected: ReleaseNone,
		},
		{
			name:     "breaking note is major",
			messages: []string{"fix: small", "refactor: api\n\nBREAKING CHANGE: removed things"},
			expected: ReleaseMajor,
		},
		{
			name:     "chores and docs release nothing",
			messages: []string{"chore: tidy", "docs: typo", "Merge branch main"},
			expected: ReleaseNone,
		},
		{
			name:     "perf is a patch",
			messages: []string{"perf(io): buffer writes"},
			expected: ReleasePatch,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expected, Analyze(parseAll(t, testCase.messages...), testCase.rules...))
		})
	}
}

func TestAnalyzeIgnoresRevertedCommits(t *testing.T) {
	feature := Commit{Hash: "1a2b3c4d5e", Type: "feat", Subject: "add endpoint", Header: "feat: add endpoint"}
	revert := Commit{Hash: "ffff0000", Header: `Revert "feat: add endpoint"`, Revert: &Revert{Header: "feat: add endpoint", Hash: "1a2b3c4d"}}
	fix := Commit{Hash: "abcdef01", Type: "fix", Subject: "patch"}

	require.Equal(t, ReleasePatch, Analyze([]Commit{feature, revert, fix}))
	require.Equal(t, []Commit{fix}, FilterReverted([]Commit{feature, revert, fix}))

	// A revert of a commit released earlier still ships.
	require.Equal(t, ReleasePatch, Analyze([]Commit{revert}))
}

func TestParseReleaseType(t *testing.T) {
	level, err := ParseReleaseType("Minor")
	require.NoError(t, err)
	require.Equal(t, ReleaseMinor, level)
	require.Equal(t, "minor", level.String())

	_, err = ParseReleaseType("huge")
	require.Error(t, err)
}

func TestWriterGroupsAndSorts(t *testing.T) {
	commits := []Commit{
		{Hash: "3333333333", Type: "fix", Scope: "ui", Subject: "zebra stripes", References: []Reference{{Action: "closes", Prefix: "#", Issue: "4"}}},
		{Hash: "1111111111", Type: "feat", Scope: "api", Subject: "add endpoint"},
		{Hash: "2222222222", Type: "fix", Scope: "core", Subject: "alpha bug"},
		{Hash: "4444444444", Type: "chore", Subject: "tidy"},
		{Hash: "5555555555", Type: "refactor", Scope: "db", Subject: "rewrite", Notes: []Note{{Title: "BREAKING CHANGE", Text: "schema changed"}}},
		{Hash: "6666666666", Type: "deps", Scope: "lib", Subject: "bump version"},
	}

	writer := NewWriter(WriterOptions{Owner: "Colonise", Repository: "Forge", LinkCompare: true, LinkReferences: true})
	notes, err := writer.Write(Context{
		Version:     "1.2.0",
		PreviousTag: "v1.1.0",
		CurrentTag:  "v1.2.0",
		Date:        time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}, commits)
	require.NoError(t, err)

	expected := strings.Join([]string{
		"## [1.2.0](https://github.com/Colonise/Forge/compare/v1.1.0...v1.2.0) (2026-10-19)",
		"",
		"### Bug Fixes",
		"",
		"* **core:** alpha bug ([2222222](https://github.com/Colonise/Forge/commit/2222222222))",
		"* **ui:** zebra stripes ([3333333](https://github.com/Colonise/Forge/commit/3333333333)), closes [#4](https://github.com/Colonise/Forge/issues/4)",
		"",
		"### Dependencies",
		"",
		"* **lib:** bump version ([6666666](https://github.com/Colonise/Forge/commit/6666666666))",
		"",
		"### Features",
		"",
		"* **api:** add endpoint ([1111111](https://github.com/Colonise/Forge/commit/1111111111))",
		"",
		"### refactor",
		"",
		"* **db:** rewrite ([5555555](https://github.com/Colonise/Forge/commit/5555555555))",
		"",
		"### BREAKING CHANGE",
		"",
		"* **db:** schema changed",
		"",
	}, "\n")
	require.Equal(t, expected, notes)
}

func TestWriterKeepsUntitledBreakingCommits(t *testing.T) {
	breaking, err := MustParser(DefaultParserOptions()).Parse("refactor(core): drop legacy api\n\nBREAKING CHANGE: legacy api removed")
	require.NoError(t, err)
	chore, err := MustParser(DefaultParserOptions()).Parse("chore: tidy")
	require.NoError(t, err)

	notes, err := NewWriter(WriterOptions{}).Write(Context{Version: "2.0.0"}, []Commit{breaking, chore})
	require.NoError(t, err)

	require.Contains(t, notes, "### refactor\n\n* **core:** drop legacy api\n")
	require.Contains(t, notes, "### BREAKING CHANGE\n\n* **core:** legacy api removed\n")
	require.NotContains(t, notes, "tidy")
}

func TestWriterFlushEmptiesQueue(t *testing.T) {
	writer := NewWriter(WriterOptions{})
	writer.Add(Commit{Type: "feat", Subject: "first"})

	first, err := writer.Flush(Context{Version: "1.0.0", Date: time.Now()})
	require.NoError(t, err)
	require.Contains(t, first, "* first")

	second, err := writer.Flush(Context{Version: "1.0.1", Date: time.Now()})
	require.NoError(t, err)
	require.NotContains(t, second, "first")
	require.True(t, strings.HasPrefix(second, "## 1.0.1 ("))

	_, err = writer.Flush(Context{})
	require.Error(t, err)
}
