// Package match selects leaf files by glob pattern, size and date.
//
// Patterns use doublestar semantics and are evaluated against leaf names
// (the part of a key after the last delimiter), which is how file IDs are
// recorded in external ledgers.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates include and exclude patterns against leaf names.
//
// With no include patterns every visible name is included. A name must
// not match any exclude pattern. Safe for concurrent use after New.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns a name must match (at least one).
	// Empty means match everything.
	Includes []string

	// Excludes are glob patterns a name must not match.
	Excludes []string

	// IncludeHidden admits names starting with '.'. Default: false.
	IncludeHidden bool
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps a pattern failure with the offending pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New validates the patterns and returns a Matcher.
func New(cfg Config) (*Matcher, error) {
	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		includeHidden: cfg.IncludeHidden,
	}, nil
}

func compile(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		out = append(out, p)
	}
	return out, nil
}

// Match reports whether name passes the configured patterns.
func (m *Matcher) Match(name string) bool {
	if name == "" {
		return false
	}
	if !m.includeHidden && strings.HasPrefix(name, ".") {
		return false
	}

	if len(m.includes) > 0 {
		included := false
		for _, p := range m.includes {
			if matchPattern(p, name) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	for _, p := range m.excludes {
		if matchPattern(p, name) {
			return false
		}
	}
	return true
}

// MatchAll reports whether the matcher admits every visible name.
func (m *Matcher) MatchAll() bool {
	return len(m.includes) == 0 && len(m.excludes) == 0
}

// Patterns returns the include and exclude patterns.
func (m *Matcher) Patterns() (includes, excludes []string) {
	return append([]string(nil), m.includes...), append([]string(nil), m.excludes...)
}

func matchPattern(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
