package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want ObjectURI
	}{
		{"bucket only", "s3://ledgers", ObjectURI{Provider: "s3", Bucket: "ledgers"}},
		{"bucket with slash", "s3://ledgers/", ObjectURI{Provider: "s3", Bucket: "ledgers"}},
		{"prefix", "s3://ledgers/clients/acme/inbox/", ObjectURI{Provider: "s3", Bucket: "ledgers", Key: "clients/acme/inbox/"}},
		{"prefix without slash", "s3://ledgers/clients/acme", ObjectURI{Provider: "s3", Bucket: "ledgers", Key: "clients/acme"}},
		{"leaf glob", "s3://ledgers/inbox/INV-*.pdf", ObjectURI{Provider: "s3", Bucket: "ledgers", Key: "inbox/", Pattern: "INV-*.pdf"}},
		{"root glob", "s3://ledgers/*.pdf", ObjectURI{Provider: "s3", Bucket: "ledgers", Pattern: "*.pdf"}},
		{"question mark kept", "s3://ledgers/inbox/INV-00?.pdf", ObjectURI{Provider: "s3", Bucket: "ledgers", Key: "inbox/", Pattern: "INV-00?.pdf"}},
		{"escaped star", `s3://ledgers/odd\*dir/`, ObjectURI{Provider: "s3", Bucket: "ledgers", Key: "odd*dir/"}},
		{"uppercase scheme", "S3://ledgers/inbox/", ObjectURI{Provider: "s3", Bucket: "ledgers", Key: "inbox/"}},
		{"file absolute", "file:///srv/ledger", ObjectURI{Provider: "file", Bucket: "/srv/ledger"}},
		{"file trailing slash", "file:///srv/ledger/", ObjectURI{Provider: "file", Bucket: "/srv/ledger"}},
		{"file glob", "file:///srv/ledger/*.pdf", ObjectURI{Provider: "file", Bucket: "/srv/ledger", Pattern: "*.pdf"}},
		{"file relative", "file://ledger/inbox", ObjectURI{Provider: "file", Bucket: "ledger/inbox"}},
		{"file bare glob", "file://*.pdf", ObjectURI{Provider: "file", Bucket: ".", Pattern: "*.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseURI_Errors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want error
	}{
		{"empty", "", ErrInvalidURI},
		{"no scheme", "ledgers/inbox/", ErrInvalidURI},
		{"unsupported scheme", "gs://ledgers/inbox/", ErrUnsupportedProvider},
		{"no bucket", "s3://", ErrMissingBucket},
		{"empty bucket", "s3:///inbox/", ErrMissingBucket},
		{"glob bucket", "s3://led*/inbox/", ErrInvalidURI},
		{"glob in middle segment", "s3://ledgers/*/inbox/", ErrInvalidURI},
		{"file empty path", "file://", ErrInvalidURI},
		{"file glob in middle", "file:///srv/*/inbox", ErrInvalidURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURI(tt.uri)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestObjectURI_String(t *testing.T) {
	for _, uri := range []string{
		"s3://ledgers/inbox/",
		"s3://ledgers/inbox/INV-*.pdf",
		"file:///srv/ledger",
		"file:///srv/ledger/*.pdf",
	} {
		u, err := ParseURI(uri)
		require.NoError(t, err)
		assert.Equal(t, uri, u.String())
	}
}

func TestObjectURI_SameStore(t *testing.T) {
	a, _ := ParseURI("s3://ledgers/inbox/")
	b, _ := ParseURI("s3://ledgers/outbox/*.pdf")
	c, _ := ParseURI("s3://archive/inbox/")
	d, _ := ParseURI("file:///ledgers")

	assert.True(t, a.SameStore(b))
	assert.False(t, a.SameStore(c))
	assert.False(t, a.SameStore(d))
}
