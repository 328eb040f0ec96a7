package storage

import (
	"context"
	"io"
	"time"
)

// Service stores assignment PDFs and hands out short-lived links to them.
type Service interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	// PresignGet returns a GET URL for key valid for ttl. disposition is sent
	// back as the Content-Disposition response header when non-empty.
	PresignGet(ctx context.Context, key string, ttl time.Duration, disposition string) (string, error)
}
