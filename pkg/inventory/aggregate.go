package inventory

import (
	"context"
	"sync"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// CountMatching drains c and returns the number of leaf files, without
// retaining descriptors. Directory markers (empty basenames) are not
// counted, so the result always equals the number of files Partition would
// report for the same traversal.
func CountMatching(ctx context.Context, c *Cursor) (int64, error) {
	req := c.Request()
	delimiter := req.LeafDelimiter()

	var n int64
	for c.Next(ctx) {
		for _, d := range c.Page().Descriptors {
			if Basename(d.Key, req.Prefix, delimiter) != "" {
				n++
			}
		}
	}
	if err := c.Err(); err != nil {
		return n, err
	}
	return n, nil
}

// PrefixCount is the outcome of counting one prefix.
type PrefixCount struct {
	Prefix string
	Count  int64
	Pages  int
	Err    error
}

// CountResult aggregates counts across several prefixes.
type CountResult struct {
	// Total sums Count over prefixes that completed.
	Total int64

	// Prefixes holds one entry per requested prefix, in request order.
	Prefixes []PrefixCount

	// Partial is set when at least one prefix failed and was skipped.
	Partial bool
}

// Failed returns the prefixes that could not be counted.
func (r *CountResult) Failed() []PrefixCount {
	var out []PrefixCount
	for _, p := range r.Prefixes {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// CountPrefixes counts each request with its own cursor, running at most
// concurrency cursors at once. A failed prefix is recorded and skipped; the
// remaining prefixes still contribute to Total. Only context cancellation
// is returned as an error.
func CountPrefixes(ctx context.Context, store provider.Provider, reqs []ListingRequest, concurrency int, opts ...Option) (*CountResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]PrefixCount, len(reqs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, req := range reqs {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, req ListingRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			pc := PrefixCount{Prefix: req.Prefix}
			c, err := Open(store, req, opts...)
			if err != nil {
				pc.Err = err
				results[i] = pc
				return
			}
			pc.Count, pc.Err = CountMatching(ctx, c)
			pc.Pages = c.PagesCompleted()
			results[i] = pc
		}(i, req)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &CountResult{Prefixes: results}
	for _, pc := range results {
		if pc.Err != nil {
			res.Partial = true
			continue
		}
		res.Total += pc.Count
	}
	return res, nil
}
