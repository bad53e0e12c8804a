// Package reconcile compares a snapshot of stored file names with the IDs a
// system of record (a spreadsheet, a ledger export) claims to hold.
package reconcile

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Result partitions the union of both sides.
type Result struct {
	// Matched are IDs present in both the snapshot and the record.
	Matched []string

	// MissingFromStore are recorded IDs with no stored file.
	MissingFromStore []string

	// UntrackedInStore are stored files the record does not mention.
	UntrackedInStore []string
}

// Clean reports whether both sides agree.
func (r *Result) Clean() bool {
	return len(r.MissingFromStore) == 0 && len(r.UntrackedInStore) == 0
}

// Normalizer maps a name or ID to the form used for comparison.
type Normalizer func(string) string

// TrimExtension drops the final extension, so "INV-001.pdf" compares
// equal to a recorded "INV-001".
func TrimExtension(s string) string {
	return strings.TrimSuffix(s, path.Ext(s))
}

// Fold compares case-insensitively.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Chain applies normalizers in order.
func Chain(ns ...Normalizer) Normalizer {
	return func(s string) string {
		for _, n := range ns {
			s = n(s)
		}
		return s
	}
}

// Diff compares snapshot names with recorded IDs. Both inputs may contain
// duplicates; every output list is sorted and deduplicated. Output values
// are the normalized forms. A nil normalize compares names verbatim.
func Diff(names, recorded []string, normalize Normalizer) *Result {
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	stored := toSet(names, normalize)
	ids := toSet(recorded, normalize)

	res := &Result{
		Matched:          []string{},
		MissingFromStore: []string{},
		UntrackedInStore: []string{},
	}
	for id := range ids {
		if _, ok := stored[id]; ok {
			res.Matched = append(res.Matched, id)
		} else {
			res.MissingFromStore = append(res.MissingFromStore, id)
		}
	}
	for name := range stored {
		if _, ok := ids[name]; !ok {
			res.UntrackedInStore = append(res.UntrackedInStore, name)
		}
	}

	sort.Strings(res.Matched)
	sort.Strings(res.MissingFromStore)
	sort.Strings(res.UntrackedInStore)
	return res
}

func toSet(values []string, normalize Normalizer) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = normalize(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// ReadIDs reads one ID per line. Surrounding whitespace is trimmed; blank
// lines and lines starting with '#' are skipped.
func ReadIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		s := strings.TrimSpace(scanner.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		ids = append(ids, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ids: line %d: %w", line+1, err)
	}
	return ids, nil
}
