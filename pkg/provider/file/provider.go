// Package file implements the provider interface over a local directory tree.
//
// Keys are slash-separated paths relative to BaseDir. Listing emulates
// ListObjectsV2 semantics: lexicographic order, delimiter rollup into common
// prefixes, and continuation tokens that resume strictly after the last
// returned entry.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// DefaultMaxKeys is the page size used when ListOptions.MaxKeys is zero.
const DefaultMaxKeys = 1000

// Provider implements provider.Provider for local filesystem paths.
type Provider struct {
	baseDir string
}

// Ensure Provider implements provider capability interfaces.
var (
	_ provider.Provider     = (*Provider)(nil)
	_ provider.ObjectPutter = (*Provider)(nil)
)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Err: err}
	}
	return &Provider{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

func (p *Provider) Close() error { return nil }

// entry is one listing result: an object or a rolled-up common prefix.
type entry struct {
	name   string
	prefix bool
	obj    provider.ObjectSummary
}

func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	entries, err := p.collect(opts.Prefix, opts.Delimiter)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	start := 0
	if opts.ContinuationToken != "" {
		start = sort.Search(len(entries), func(i int) bool {
			return entries[i].name > opts.ContinuationToken
		})
	}

	end := start + maxKeys
	if end > len(entries) {
		end = len(entries)
	}

	res := &provider.ListResult{Objects: make([]provider.ObjectSummary, 0, end-start)}
	for _, e := range entries[start:end] {
		if e.prefix {
			res.CommonPrefixes = append(res.CommonPrefixes, e.name)
			continue
		}
		res.Objects = append(res.Objects, e.obj)
	}

	if end < len(entries) {
		res.IsTruncated = true
		res.ContinuationToken = entries[end-1].name
	}
	return res, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotFound}
	}

	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{Key: strings.TrimPrefix(key, "/"), Size: st.Size(), LastModified: st.ModTime()},
	}, nil
}

// PutObject writes body to key via a temp file and rename, so readers never
// observe partial content.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	_ = ctx
	_ = contentLength
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".ledgerscan-put-*")
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := tmp.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	// Prevent path traversal.
	clean := strings.TrimPrefix(filepath.Clean("/"+key), "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

// collect returns the sorted listing entries under prefix, rolling keys up
// to common prefixes when delimiter is set.
func (p *Provider) collect(prefix, delimiter string) ([]entry, error) {
	prefix = strings.TrimPrefix(prefix, "/")

	// Walk only the directory that can contain matches.
	rootKey := ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		rootKey = prefix[:i]
	}
	root, err := p.fullPath(rootKey)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := map[string]struct{}{}
	var entries []entry
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		if delimiter != "" {
			rest := key[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+len(delimiter)]
				if _, ok := seen[cp]; !ok {
					seen[cp] = struct{}{}
					entries = append(entries, entry{name: cp, prefix: true})
				}
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, entry{
			name: key,
			obj:  provider.ObjectSummary{Key: key, Size: info.Size(), LastModified: info.ModTime()},
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: err}
	switch {
	case os.IsNotExist(err):
		wrapped.Err = provider.ErrNotFound
	case os.IsPermission(err):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
