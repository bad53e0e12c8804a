package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// scriptedStore returns a fixed sequence of pages, one per List call.
// errAt injects an error on the given zero-based call.
type scriptedStore struct {
	mu    sync.Mutex
	pages []*provider.ListResult
	errAt map[int]error
	calls []provider.ListOptions
}

func (s *scriptedStore) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := len(s.calls)
	s.calls = append(s.calls, opts)
	if err, ok := s.errAt[call]; ok {
		return nil, err
	}
	if call >= len(s.pages) {
		return nil, fmt.Errorf("unexpected call %d", call)
	}
	return s.pages[call], nil
}

func (s *scriptedStore) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	return nil, provider.ErrNotFound
}

func (s *scriptedStore) Close() error { return nil }

func (s *scriptedStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// pagesOf builds truncated pages of the given sizes; the last is final.
func pagesOf(prefix string, sizes ...int) []*provider.ListResult {
	pages := make([]*provider.ListResult, 0, len(sizes))
	n := 0
	for i, size := range sizes {
		page := &provider.ListResult{}
		for j := 0; j < size; j++ {
			page.Objects = append(page.Objects, provider.ObjectSummary{
				Key:  fmt.Sprintf("%sinv-%04d.pdf", prefix, n),
				Size: int64(n),
			})
			n++
		}
		if i < len(sizes)-1 {
			page.IsTruncated = true
			page.ContinuationToken = fmt.Sprintf("tok-%d", i+1)
		}
		pages = append(pages, page)
	}
	return pages
}

// memStore is an in-memory bucket with ListObjectsV2-like semantics.
type memStore struct {
	mu         sync.Mutex
	objects    []provider.ObjectSummary
	failPrefix map[string]error
	calls      int
}

func newMemStore(objs ...provider.ObjectSummary) *memStore {
	sorted := append([]provider.ObjectSummary(nil), objs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return &memStore{objects: sorted, failPrefix: map[string]error{}}
}

func obj(key string, modified time.Time) provider.ObjectSummary {
	return provider.ObjectSummary{Key: key, Size: int64(len(key)), LastModified: modified}
}

func (m *memStore) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	m.mu.Lock()
	m.calls++
	err := m.failPrefix[opts.Prefix]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, &provider.ProviderError{Op: "List", Provider: provider.ProviderS3, Bucket: "mem", Key: opts.Prefix, Err: err}
	}

	type entry struct {
		name   string
		prefix bool
		obj    provider.ObjectSummary
	}
	var entries []entry
	seen := map[string]bool{}
	for _, o := range m.objects {
		if !strings.HasPrefix(o.Key, opts.Prefix) {
			continue
		}
		if opts.Delimiter != "" {
			rest := o.Key[len(opts.Prefix):]
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				cp := opts.Prefix + rest[:i+len(opts.Delimiter)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, entry{name: cp, prefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{name: o.Key, obj: o})
	}

	start := 0
	if opts.ContinuationToken != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].name > opts.ContinuationToken })
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	end := start + maxKeys
	if end > len(entries) {
		end = len(entries)
	}

	res := &provider.ListResult{}
	for _, e := range entries[start:end] {
		if e.prefix {
			res.CommonPrefixes = append(res.CommonPrefixes, e.name)
		} else {
			res.Objects = append(res.Objects, e.obj)
		}
	}
	if end < len(entries) {
		res.IsTruncated = true
		res.ContinuationToken = entries[end-1].name
	}
	return res, nil
}

func (m *memStore) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	return nil, provider.ErrNotFound
}

func (m *memStore) Close() error { return nil }
