package match

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// Filter errors.
var (
	ErrInvalidSize  = errors.New("invalid size")
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("invalid range")
)

// FilterConfig holds human-readable filter bounds from flags or a job file.
type FilterConfig struct {
	MinSize string `yaml:"min_size,omitempty" json:"min_size,omitempty"`
	MaxSize string `yaml:"max_size,omitempty" json:"max_size,omitempty"`
	After   string `yaml:"after,omitempty" json:"after,omitempty"`
	Before  string `yaml:"before,omitempty" json:"before,omitempty"`
}

// Filter selects objects by size and modification time using only data
// available from a List call. Zero bounds are open.
type Filter struct {
	MinSize int64
	MaxSize int64
	After   time.Time
	Before  time.Time
}

// NewFilter parses cfg. It returns nil when no bound is set.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	var f Filter
	var err error

	if cfg.MinSize != "" {
		if f.MinSize, err = ParseSize(cfg.MinSize); err != nil {
			return nil, fmt.Errorf("min size: %w", err)
		}
	}
	if cfg.MaxSize != "" {
		if f.MaxSize, err = ParseSize(cfg.MaxSize); err != nil {
			return nil, fmt.Errorf("max size: %w", err)
		}
	}
	if cfg.After != "" {
		if f.After, err = ParseDate(cfg.After); err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
	}
	if cfg.Before != "" {
		if f.Before, err = ParseDate(cfg.Before); err != nil {
			return nil, fmt.Errorf("before: %w", err)
		}
	}

	if f.MaxSize > 0 && f.MinSize > f.MaxSize {
		return nil, fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidRange, f.MinSize, f.MaxSize)
	}
	if !f.After.IsZero() && !f.Before.IsZero() && !f.After.Before(f.Before) {
		return nil, fmt.Errorf("%w: after %s is not before %s", ErrInvalidRange,
			f.After.Format(time.RFC3339), f.Before.Format(time.RFC3339))
	}

	if f == (Filter{}) {
		return nil, nil
	}
	return &f, nil
}

// Match reports whether obj is within bounds. A nil Filter matches
// everything. After is inclusive, Before is exclusive.
func (f *Filter) Match(obj provider.ObjectSummary) bool {
	if f == nil {
		return true
	}
	if obj.Size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && obj.Size > f.MaxSize {
		return false
	}
	if !f.After.IsZero() && obj.LastModified.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && !obj.LastModified.Before(f.Before) {
		return false
	}
	return true
}

func (f *Filter) String() string {
	if f == nil {
		return "none"
	}
	var parts []string
	if f.MinSize > 0 {
		parts = append(parts, "size>="+FormatSize(f.MinSize))
	}
	if f.MaxSize > 0 {
		parts = append(parts, "size<="+FormatSize(f.MaxSize))
	}
	if !f.After.IsZero() {
		parts = append(parts, "modified>="+f.After.Format(time.RFC3339))
	}
	if !f.Before.IsZero() {
		parts = append(parts, "modified<"+f.Before.Format(time.RFC3339))
	}
	return strings.Join(parts, " ")
}

var sizeUnits = map[string]float64{
	"":    1,
	"B":   1,
	"K":   1e3,
	"KB":  1e3,
	"M":   1e6,
	"MB":  1e6,
	"G":   1e9,
	"GB":  1e9,
	"KI":  1 << 10,
	"KIB": 1 << 10,
	"MI":  1 << 20,
	"MIB": 1 << 20,
	"GI":  1 << 30,
	"GIB": 1 << 30,
}

// ParseSize parses "1024", "10KB" (base 10) or "1.5MiB" (base 2).
// Units are case-insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if end < 0 {
		end = len(s)
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	mult, ok := sizeUnits[strings.ToUpper(strings.TrimSpace(s[end:]))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in %q", ErrInvalidSize, s)
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	v := n * mult
	if math.IsInf(v, 0) || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, s)
	}
	return int64(v), nil
}

// FormatSize renders bytes with base-2 units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMG"[exp])
}

// ParseDate accepts "2006-01-02" (midnight UTC) or RFC 3339 and returns UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
