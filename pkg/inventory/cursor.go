package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// Cursor drives exhaustive pagination over one ListingRequest.
//
// Usage:
//
//	c, err := inventory.Open(store, req)
//	for c.Next(ctx) {
//		page := c.Page()
//		...
//	}
//	if err := c.Err(); err != nil { ... }
//
// A Cursor is finite and not restartable: once Next returns false it keeps
// returning false. Callers may stop calling Next at any time without cleanup.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	store   provider.Provider
	req     ListingRequest
	limiter *rate.Limiter
	logger  *zap.Logger

	token string
	page  *Page
	pages int
	last  bool
	done  bool
	err   error
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithRateLimit paces List calls to at most rps requests per second.
// Zero or negative disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Cursor) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets a logger for per-page debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cursor) {
		if l != nil {
			c.logger = l
		}
	}
}

// Open returns a cursor over req. No store call is made until Next.
func Open(store provider.Provider, req ListingRequest, opts ...Option) (*Cursor, error) {
	if store == nil {
		return nil, fmt.Errorf("inventory: nil store")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("inventory: invalid request: %w", err)
	}

	c := &Cursor{
		store:  store,
		req:    req,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Next fetches the next page. It returns false when the traversal is
// complete or has failed; check Err to tell the two apart.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	if c.last {
		c.done = true
		c.page = nil
		return false
	}

	if err := ctx.Err(); err != nil {
		c.fail(err)
		return false
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.fail(err)
			return false
		}
	}

	res, err := c.store.List(ctx, c.req.listOptions(c.token))
	if err != nil {
		c.fail(err)
		return false
	}
	if res == nil {
		c.fail(provider.ErrMalformedResponse)
		return false
	}

	more := res.IsTruncated && res.ContinuationToken != ""
	if more && res.ContinuationToken == c.token {
		// Re-requesting the same token would never terminate.
		c.fail(fmt.Errorf("%w: continuation token %q repeated", provider.ErrMalformedResponse, res.ContinuationToken))
		return false
	}

	c.page = &Page{
		Index:             c.pages,
		Descriptors:       res.Objects,
		CommonPrefixes:    res.CommonPrefixes,
		ContinuationToken: res.ContinuationToken,
		IsTruncated:       res.IsTruncated,
	}
	c.pages++
	c.token = res.ContinuationToken
	c.last = !more

	c.logger.Debug("Listed page",
		zap.String("prefix", c.req.Prefix),
		zap.Int("page", c.page.Index),
		zap.Int("objects", len(res.Objects)),
		zap.Int("common_prefixes", len(res.CommonPrefixes)),
		zap.Bool("truncated", more))

	return true
}

// Page returns the page fetched by the most recent successful Next.
func (c *Cursor) Page() *Page {
	return c.page
}

// Err returns the error that stopped the traversal, if any.
// The error is a *TraversalError.
func (c *Cursor) Err() error {
	return c.err
}

// PagesCompleted returns the number of pages received so far.
func (c *Cursor) PagesCompleted() int {
	return c.pages
}

// Request returns the request this cursor traverses.
func (c *Cursor) Request() ListingRequest {
	return c.req
}

func (c *Cursor) fail(err error) {
	c.err = newTraversalError(c.req.Prefix, c.pages, err)
	c.done = true
	c.page = nil
	c.logger.Debug("Listing failed",
		zap.String("prefix", c.req.Prefix),
		zap.Int("pages_completed", c.pages),
		zap.Error(err))
}
