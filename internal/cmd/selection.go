package cmd

import (
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/ledgerscan/pkg/inventory"
	"github.com/3leaps/ledgerscan/pkg/match"
	"github.com/3leaps/ledgerscan/pkg/output"
)

// selectionFlags narrows which files a listing command reports.
type selectionFlags struct {
	includes      []string
	excludes      []string
	includeHidden bool
	minSize       string
	maxSize       string
	after         string
	before        string
}

func (s *selectionFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVar(&s.includes, "include", nil, "Leaf-name glob to include (repeatable)")
	f.StringArrayVar(&s.excludes, "exclude", nil, "Leaf-name glob to exclude (repeatable)")
	f.BoolVar(&s.includeHidden, "include-hidden", false, "Include names starting with '.'")
	f.StringVar(&s.minSize, "min-size", "", "Minimum object size (e.g. 10KB, 1MiB)")
	f.StringVar(&s.maxSize, "max-size", "", "Maximum object size")
	f.StringVar(&s.after, "after", "", "Modified at or after (RFC3339 or YYYY-MM-DD)")
	f.StringVar(&s.before, "before", "", "Modified before (RFC3339 or YYYY-MM-DD)")
}

// selection is a compiled name matcher plus optional size/date filter.
type selection struct {
	matcher *match.Matcher
	filter  *match.Filter
}

// build compiles the flags; a URI leaf pattern is added as an include.
func (s *selectionFlags) build(pattern string) (*selection, error) {
	includes := s.includes
	if pattern != "" {
		includes = append([]string{pattern}, includes...)
	}
	m, err := match.New(match.Config{
		Includes:      includes,
		Excludes:      s.excludes,
		IncludeHidden: s.includeHidden,
	})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid include/exclude patterns", err)
	}
	f, err := match.NewFilter(match.FilterConfig{
		MinSize: s.minSize,
		MaxSize: s.maxSize,
		After:   s.after,
		Before:  s.before,
	})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid filter", err)
	}
	return &selection{matcher: m, filter: f}, nil
}

// narrowing reports whether patterns or bounds were given.
func (s *selection) narrowing() bool {
	return !s.matcher.MatchAll() || s.filter != nil
}

func (s *selection) keep(f inventory.File) bool {
	return s.matcher.Match(f.Name) && s.filter.Match(f.ObjectDescriptor)
}

func (s *selection) apply(files []inventory.File) []inventory.File {
	out := make([]inventory.File, 0, len(files))
	for _, f := range files {
		if s.keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// fileRecord renders f; a non-zero now sets the age field.
func fileRecord(f inventory.File, now time.Time) *output.FileRecord {
	rec := &output.FileRecord{
		Key:          f.Key,
		Name:         f.Name,
		Size:         f.Size,
		ETag:         f.ETag,
		LastModified: f.LastModified,
	}
	if !now.IsZero() {
		rec.Age = formatDuration(now.Sub(f.LastModified))
	}
	return rec
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func requirePrefixURIs(args []string) ([]*ObjectURI, error) {
	uris := make([]*ObjectURI, 0, len(args))
	for _, a := range args {
		u, err := ParseURI(a)
		if err != nil {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
		}
		if len(uris) > 0 && !u.SameStore(uris[0]) {
			return nil, exitError(foundry.ExitInvalidArgument, "All URIs must address the same store",
				fmt.Errorf("%s and %s differ", uris[0], u))
		}
		uris = append(uris, u)
	}
	return uris, nil
}
