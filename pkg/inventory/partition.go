package inventory

import (
	"sort"
	"strings"
)

// File is an object descriptor paired with its leaf name.
type File struct {
	ObjectDescriptor

	// Name is the key segment after the last delimiter.
	Name string
}

// Listing is one page (or an accumulation of pages) split into
// subdirectories and files.
type Listing struct {
	// Subdirectories are child names relative to the prefix, without the
	// trailing delimiter. Sorted and unique.
	Subdirectories []string

	// Files are leaf objects in store order.
	Files []File
}

// Partition splits page into subdirectory names and leaf files.
//
// Common prefixes are taken exactly as the store reported them; descriptors
// are never re-split. Descriptors with an empty basename (the prefix itself,
// or any key ending in the delimiter) are directory markers and are dropped.
// An empty delimiter derives names with DefaultDelimiter.
func Partition(page *Page, prefix, delimiter string) Listing {
	var l Listing
	if page == nil {
		return l
	}
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	l.Subdirectories = subdirectories(page.CommonPrefixes, prefix, delimiter)

	l.Files = make([]File, 0, len(page.Descriptors))
	for _, d := range page.Descriptors {
		name := Basename(d.Key, prefix, delimiter)
		if name == "" {
			continue
		}
		l.Files = append(l.Files, File{ObjectDescriptor: d, Name: name})
	}
	return l
}

// Merge appends other into l, keeping Subdirectories sorted and unique.
func (l *Listing) Merge(other Listing) {
	l.Files = append(l.Files, other.Files...)
	if len(other.Subdirectories) == 0 {
		return
	}
	l.Subdirectories = uniqueSorted(append(l.Subdirectories, other.Subdirectories...))
}

// Basename returns the leaf name of key: the text after the last delimiter.
// It returns "" when key equals prefix or ends with the delimiter.
func Basename(key, prefix, delimiter string) string {
	if key == prefix {
		return ""
	}
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if strings.HasSuffix(key, delimiter) {
		return ""
	}
	if i := strings.LastIndex(key, delimiter); i >= 0 {
		return key[i+len(delimiter):]
	}
	return key
}

func subdirectories(commonPrefixes []string, prefix, delimiter string) []string {
	if len(commonPrefixes) == 0 {
		return nil
	}
	names := make([]string, 0, len(commonPrefixes))
	for _, cp := range commonPrefixes {
		name := strings.TrimPrefix(cp, prefix)
		name = strings.TrimSuffix(name, delimiter)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return uniqueSorted(names)
}

func uniqueSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i > 0 && n == names[i-1] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// DirPrefix returns prefix with a trailing delimiter so that a delimited
// listing reports the children of prefix rather than prefix itself.
// The empty prefix (bucket root) is returned unchanged.
func DirPrefix(prefix, delimiter string) string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if prefix == "" || strings.HasSuffix(prefix, delimiter) {
		return prefix
	}
	return prefix + delimiter
}
