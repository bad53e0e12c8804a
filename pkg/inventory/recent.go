package inventory

import (
	"sort"
	"time"
)

// SelectRecent returns the descriptors modified strictly less than window
// before now, newest first. Ties are ordered by ascending key so the result
// is deterministic. The input slice is not modified.
func SelectRecent(descriptors []ObjectDescriptor, window time.Duration, now time.Time) []ObjectDescriptor {
	out := make([]ObjectDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if now.Sub(d.LastModified) < window {
			out = append(out, d)
		}
	}
	sortNewestFirst(out)
	return out
}

// SelectRecentFiles is SelectRecent over partitioned files.
func SelectRecentFiles(files []File, window time.Duration, now time.Time) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if now.Sub(f.LastModified) < window {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerThan(out[i].ObjectDescriptor, out[j].ObjectDescriptor)
	})
	return out
}

func sortNewestFirst(ds []ObjectDescriptor) {
	sort.SliceStable(ds, func(i, j int) bool { return newerThan(ds[i], ds[j]) })
}

func newerThan(a, b ObjectDescriptor) bool {
	if !a.LastModified.Equal(b.LastModified) {
		return a.LastModified.After(b.LastModified)
	}
	return a.Key < b.Key
}
