package conventional

import (
	"fmt"
	"strings"
)

// ReleaseType is the semantic version component a set of commits bumps.
type ReleaseType int

const (
	ReleaseNone ReleaseType = iota
	ReleasePatch
	ReleaseMinor
	ReleaseMajor
)

func (r ReleaseType) String() string {
	switch r {
	case ReleasePatch:
		return "patch"
	case ReleaseMinor:
		return "minor"
	case ReleaseMajor:
		return "major"
	default:
		return "none"
	}
}

// ParseReleaseType parses "patch", "minor" or "major".
func ParseReleaseType(s string) (ReleaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patch":
		return ReleasePatch, nil
	case "minor":
		return ReleaseMinor, nil
	case "major":
		return ReleaseMajor, nil
	case "", "none":
		return ReleaseNone, nil
	default:
		return ReleaseNone, fmt.Errorf("unknown release type %q", s)
	}
}

// Rule maps matching commits to a release type. Empty fields match anything.
type Rule struct {
	Type     string
	Scope    string
	Breaking bool
	Revert   bool
	Release  ReleaseType
}

func (r Rule) matches(c Commit) bool {
	if r.Breaking && !c.Breaking() {
		return false
	}
	if r.Revert && c.Revert == nil {
		return false
	}
	if r.Type != "" && r.Type != c.Type {
		return false
	}
	if r.Scope != "" && r.Scope != c.Scope {
		return false
	}
	return true
}

// DefaultRules are applied to commits no custom rule matched.
var DefaultRules = []Rule{
	{Breaking: true, Release: ReleaseMajor},
	{Revert: true, Release: ReleasePatch},
	{Type: "feat", Release: ReleaseMinor},
	{Type: "fix", Release: ReleasePatch},
	{Type: "perf", Release: ReleasePatch},
}

// ReleaseRules are the custom rules used for releases: dependency updates
// ship as patches.
var ReleaseRules = []Rule{
	{Type: "deps", Release: ReleasePatch},
}

// Analyze returns the highest release type any commit calls for. Custom rules
// are tried first for each commit; only when none match do DefaultRules
// apply. Reverted commits and the commits reverting them are ignored.
func Analyze(commits []Commit, custom ...Rule) ReleaseType {
	level := ReleaseNone
	for _, commit := range FilterReverted(commits) {
		commitLevel := highest(commit, custom)
		if commitLevel == ReleaseNone {
			commitLevel = highest(commit, DefaultRules)
		}
		if commitLevel > level {
			level = commitLevel
		}
		if level == ReleaseMajor {
			break
		}
	}
	return level
}

func highest(c Commit, rules []Rule) ReleaseType {
	level := ReleaseNone
	for _, rule := range rules {
		if rule.matches(c) && rule.Release > level {
			level = rule.Release
		}
	}
	return level
}

// FilterReverted drops every revert commit whose target is also in commits,
// together with that target. A revert of an older, already released commit
// is kept.
func FilterReverted(commits []Commit) []Commit {
	reverted := map[string]bool{}
	for _, c := range commits {
		if c.Revert == nil || c.Revert.Hash == "" {
			continue
		}
		for _, target := range commits {
			if target.Hash != "" && strings.HasPrefix(target.Hash, c.Revert.Hash) {
				reverted[target.Hash] = true
				reverted[c.Hash] = true
			}
		}
	}
	if len(reverted) == 0 {
		return commits
	}

	kept := make([]Commit, 0, len(commits))
	for _, c := range commits {
		if c.Hash != "" && reverted[c.Hash] {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
