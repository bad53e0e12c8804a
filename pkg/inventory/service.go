package inventory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/pkg/provider"
	"github.com/3leaps/ledgerscan/pkg/sink"
)

// Config configures a Service.
type Config struct {
	// Delimiter used for one-level listings. Default: "/".
	Delimiter string

	// MaxKeysPerPage bounds each page. Zero uses the store default.
	MaxKeysPerPage int

	// RateLimit caps List calls per second per cursor. Zero is unlimited.
	RateLimit float64

	// Concurrency bounds parallel cursors for multi-prefix operations.
	// Default: 4
	Concurrency int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Delimiter:   DefaultDelimiter,
		Concurrency: 4,
	}
}

// Service runs the four traversal modes against one store.
//
// Each call opens its own cursor; nothing is cached between calls, so a
// recency view and a snapshot of the same prefix are independent
// traversals. Service is safe for concurrent use if the store is.
type Service struct {
	store  provider.Provider
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a service over store. Zero config fields take
// DefaultConfig values.
func NewService(store provider.Provider, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Delimiter == "" {
		cfg.Delimiter = def.Delimiter
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Service{
		store:  store,
		config: cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// WithLogger sets the service logger. Returns the service for chaining.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock overrides the time source used for recency windows and
// snapshot timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

func (s *Service) request(prefix, delimiter string) ListingRequest {
	return ListingRequest{
		Prefix:         prefix,
		Delimiter:      delimiter,
		NameDelimiter:  s.config.Delimiter,
		MaxKeysPerPage: s.config.MaxKeysPerPage,
	}
}

func (s *Service) open(prefix, delimiter string) (*Cursor, error) {
	return Open(s.store, s.request(prefix, delimiter), WithRateLimit(s.config.RateLimit), WithLogger(s.logger))
}

// LevelResult is a one-level listing of a prefix.
type LevelResult struct {
	Prefix string
	Listing
	Pages int
}

// ListLevel lists the immediate children of prefix: subdirectories from
// common prefixes and files directly under it.
func (s *Service) ListLevel(ctx context.Context, prefix string) (*LevelResult, error) {
	prefix = DirPrefix(prefix, s.config.Delimiter)
	c, err := s.open(prefix, s.config.Delimiter)
	if err != nil {
		return nil, err
	}

	res := &LevelResult{Prefix: prefix}
	for c.Next(ctx) {
		res.Merge(Partition(c.Page(), prefix, s.config.Delimiter))
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	res.Pages = c.PagesCompleted()

	s.logger.Debug("Listed level",
		zap.String("prefix", prefix),
		zap.Int("subdirectories", len(res.Subdirectories)),
		zap.Int("files", len(res.Files)),
		zap.Int("pages", res.Pages))
	return res, nil
}

// LevelOutcome pairs a prefix with its listing or error.
type LevelOutcome struct {
	Prefix string
	Result *LevelResult
	Err    error
}

// ListLevels lists several prefixes concurrently with independent cursors.
// Outcomes are returned in input order; a failed prefix does not stop the
// others.
func (s *Service) ListLevels(ctx context.Context, prefixes []string) []LevelOutcome {
	out := make([]LevelOutcome, len(prefixes))
	sem := make(chan struct{}, s.config.Concurrency)
	var wg sync.WaitGroup

	for i, p := range prefixes {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				out[i] = LevelOutcome{Prefix: p, Err: ctx.Err()}
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			res, err := s.ListLevel(ctx, p)
			out[i] = LevelOutcome{Prefix: p, Result: res, Err: err}
		}(i, p)
	}
	wg.Wait()
	return out
}

// Recent returns files directly under prefix modified within window,
// newest first.
func (s *Service) Recent(ctx context.Context, prefix string, window time.Duration) ([]File, error) {
	req := s.request(prefix, s.config.Delimiter)
	req.Window = window
	if err := req.Validate(); err != nil {
		return nil, err
	}

	level, err := s.ListLevel(ctx, prefix)
	if err != nil {
		return nil, err
	}
	recent := SelectRecentFiles(level.Files, req.Window, s.now())

	s.logger.Debug("Selected recent files",
		zap.String("prefix", level.Prefix),
		zap.Duration("window", window),
		zap.Int("files", len(level.Files)),
		zap.Int("recent", len(recent)))
	return recent, nil
}

// Snapshot performs a full recursive traversal of prefix and returns its
// leaf-name snapshot.
func (s *Service) Snapshot(ctx context.Context, prefix string) (*Snapshot, error) {
	c, err := s.open(prefix, "")
	if err != nil {
		return nil, err
	}
	snap, err := BuildSnapshot(ctx, c, s.now().UTC())
	if err != nil {
		s.logger.Warn("Snapshot traversal failed; nothing persisted",
			zap.String("prefix", prefix),
			zap.Int("pages_completed", c.PagesCompleted()),
			zap.Error(err))
		return nil, err
	}
	return snap, nil
}

// SnapshotTo snapshots prefix and persists it to dst under name.
//
// On a *PersistenceError the returned snapshot is non-nil so the caller can
// retry Persist without traversing again. On a traversal error nothing is
// written and the snapshot is nil.
func (s *Service) SnapshotTo(ctx context.Context, prefix string, dst sink.Sink, name string) (*Snapshot, error) {
	snap, err := s.Snapshot(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = SnapshotFileName(prefix)
	}
	if err := snap.Persist(ctx, dst, name); err != nil {
		s.logger.Error("Snapshot write failed",
			zap.String("prefix", prefix),
			zap.String("sink", dst.String()),
			zap.String("name", name),
			zap.Error(err))
		return snap, err
	}

	s.logger.Info("Snapshot persisted",
		zap.String("prefix", prefix),
		zap.String("sink", dst.String()),
		zap.String("name", name),
		zap.Int("names", len(snap.Names)),
		zap.Int("pages", snap.Pages))
	return snap, nil
}

// Count returns the number of files under prefix (recursive).
func (s *Service) Count(ctx context.Context, prefix string) (int64, error) {
	c, err := s.open(prefix, "")
	if err != nil {
		return 0, err
	}
	return CountMatching(ctx, c)
}

// CountAll counts several prefixes concurrently, skipping failed ones.
func (s *Service) CountAll(ctx context.Context, prefixes []string) (*CountResult, error) {
	reqs := make([]ListingRequest, len(prefixes))
	for i, p := range prefixes {
		reqs[i] = s.request(p, "")
	}
	res, err := CountPrefixes(ctx, s.store, reqs, s.config.Concurrency,
		WithRateLimit(s.config.RateLimit), WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	for _, f := range res.Failed() {
		s.logger.Warn("Count skipped prefix",
			zap.String("prefix", f.Prefix),
			zap.Int("pages_completed", f.Pages),
			zap.Error(f.Err))
	}
	return res, nil
}
