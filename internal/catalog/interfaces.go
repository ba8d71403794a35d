package catalog

import (
	"context"
	"io"
	"time"
)

// Fetcher performs exactly one outbound request per call.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Client is a Fetcher owning network resources that must be released once a
// phase finishes.
type Client interface {
	Fetcher
	Close() error
}

// BlobStore persists and reloads serialized collections by path.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// RecordStore mirrors persisted records into a queryable store.
type RecordStore interface {
	StoreRecords(ctx context.Context, phase Phase, records []Identified) error
}

// Publisher pushes phase completion notices.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher fingerprints persisted payloads.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
