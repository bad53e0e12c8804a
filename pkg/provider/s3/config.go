// Package s3 lists ledger buckets through ListObjectsV2.
//
// Delimiter and CommonPrefixes map straight onto the provider interface, so
// a cursor's pagination state is exactly the store's continuation token.
package s3

import (
	"fmt"
	"net/url"
)

const (
	// DefaultMaxKeys is the page size used when none is configured.
	DefaultMaxKeys = 1000

	// MaxAllowedKeys is the largest page ListObjectsV2 returns.
	MaxAllowedKeys = 1000

	// DefaultAWSRegion applies to AWS S3 when neither the config, the
	// environment nor the profile names a region.
	DefaultAWSRegion = "us-east-1"
)

// Config selects the ledger bucket and how to reach it.
//
// Credentials come from the SDK default chain (environment, shared files,
// instance or task roles) unless AccessKeyID and SecretAccessKey are set.
// ledgerscan only reads the resolved credentials; it never creates or
// refreshes them. Set Endpoint for S3-compatible stores such as MinIO or
// moto; no default region is applied then.
type Config struct {
	Bucket string
	Region string

	// Endpoint is an absolute http(s) URL for an S3-compatible store.
	Endpoint string

	// Profile names a shared-config profile. It cannot be combined with
	// static keys.
	Profile string

	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle puts the bucket in the URL path instead of the host.
	ForcePathStyle bool

	// MaxKeys is the page size for List; zero means DefaultMaxKeys.
	MaxKeys int
}

// Validate rejects configurations that cannot open a listing.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if c.MaxKeys < 0 {
		return &ConfigError{Field: "MaxKeys", Message: "must be >= 0"}
	}
	if c.MaxKeys > MaxAllowedKeys {
		return &ConfigError{Field: "MaxKeys", Message: fmt.Sprintf("must be <= %d", MaxAllowedKeys)}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	if c.AccessKeyID != "" && c.Profile != "" {
		return &ConfigError{Field: "Profile", Message: "cannot be combined with static access keys"}
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Field: "Endpoint", Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Endpoint)}
		}
	}
	return nil
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
