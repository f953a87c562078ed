// Package fileset selects, copies and removes the files pipelines operate on.
package fileset

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Set is an ordered list of include globs with optional "!"-prefixed
// exclusions. A path is selected when it matches any include and no exclude.
type Set struct {
	patterns []string
	includes []compiled
	excludes []compiled
}

type compiled struct {
	pattern string
	base    string
	literal bool
	globs   []glob.Glob
}

// NewSet compiles patterns. Patterns are relative to the project root and use
// forward slashes; "**" spans directories, "*" and "?" do not.
func NewSet(patterns ...string) (*Set, error) {
	s := &Set{patterns: append([]string(nil), patterns...)}

	for _, raw := range patterns {
		exclude := strings.HasPrefix(raw, "!")
		pattern := NormalizePattern(strings.TrimPrefix(raw, "!"))
		if pattern == "" {
			continue
		}

		c := compiled{pattern: pattern, base: GlobBase(pattern), literal: !IsGlobPattern(pattern)}
		for _, variant := range ExpandPattern(pattern) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", raw, err)
			}
			c.globs = append(c.globs, g)
		}

		if exclude {
			s.excludes = append(s.excludes, c)
		} else {
			s.includes = append(s.includes, c)
		}
	}

	return s, nil
}

// MustSet is NewSet for patterns known at compile time.
func MustSet(patterns ...string) *Set {
	s, err := NewSet(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Patterns returns the patterns the set was built from.
func (s *Set) Patterns() []string {
	return append([]string(nil), s.patterns...)
}

// Empty reports whether the set has no include patterns.
func (s *Set) Empty() bool {
	return len(s.includes) == 0
}

// Match reports whether rel, a root-relative path, is selected.
func (s *Set) Match(rel string) bool {
	_, ok := s.matchBase(rel)
	return ok
}

// Without returns a copy of s that also excludes the given patterns.
func (s *Set) Without(patterns ...string) (*Set, error) {
	all := s.Patterns()
	for _, p := range patterns {
		all = append(all, "!"+strings.TrimPrefix(p, "!"))
	}
	return NewSet(all...)
}

// matchBase returns the glob base of the first include matching rel.
func (s *Set) matchBase(rel string) (string, bool) {
	rel = NormalizePattern(rel)

	for _, c := range s.excludes {
		if c.match(rel) {
			return "", false
		}
	}
	for _, c := range s.includes {
		if c.match(rel) {
			return c.base, true
		}
	}
	return "", false
}

// literals returns the include patterns that name a single path.
func (s *Set) literals() []string {
	var out []string
	for _, c := range s.includes {
		if c.literal {
			out = append(out, c.pattern)
		}
	}
	return out
}

// bases returns the distinct directories that must be walked to find glob
// matches.
func (s *Set) bases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.includes {
		if c.literal {
			continue
		}
		if !seen[c.base] {
			seen[c.base] = true
			out = append(out, c.base)
		}
	}
	return out
}

func (c compiled) match(rel string) bool {
	for _, g := range c.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// IsGlobPattern checks if a string contains glob wildcards
func IsGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// NormalizePattern converts separators to forward slashes and strips a
// leading "./" and trailing "/".
func NormalizePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	pattern = strings.TrimPrefix(pattern, "./")
	pattern = strings.TrimSuffix(pattern, "/")
	return pattern
}

// ExpandPattern returns pattern plus the variants in which each "**/" segment
// matches zero directories, so "source/**/*.ts" also selects "source/a.ts".
func ExpandPattern(pattern string) []string {
	variants := []string{pattern}
	seen := map[string]bool{pattern: true}

	for i := 0; i < len(variants); i++ {
		current := variants[i]
		for idx := strings.Index(current, "**/"); idx >= 0; {
			collapsed := current[:idx] + current[idx+3:]
			if !seen[collapsed] {
				seen[collapsed] = true
				variants = append(variants, collapsed)
			}
			next := strings.Index(current[idx+3:], "**/")
			if next < 0 {
				break
			}
			idx += 3 + next
		}
	}

	return variants
}

// GlobBase returns the leading directories of pattern that contain no glob
// characters. Matched files keep their layout relative to this base when
// copied, e.g. "source/**/*.d.ts" has base "source".
func GlobBase(pattern string) string {
	pattern = NormalizePattern(pattern)
	if !IsGlobPattern(pattern) {
		dir := path.Dir(pattern)
		if dir == "." {
			return ""
		}
		return dir
	}

	segments := strings.Split(pattern, "/")
	var base []string
	for _, seg := range segments[:len(segments)-1] {
		if IsGlobPattern(seg) {
			break
		}
		base = append(base, seg)
	}
	return strings.Join(base, "/")
}
