package provider

import (
	"context"
	"io"
)

// Optional provider capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The core
// Provider interface remains read-only; inventories never mutate the store
// they list.

// ObjectPutter can create/overwrite objects.
//
// Used by snapshot sinks that persist inventories to a destination bucket.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error
}
