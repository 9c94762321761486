// Package pagination implements keyset cursors for newest-first listings.
package pagination

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Cursor marks the last row of the previous page.
type Cursor struct {
	LastID    string
	CreatedAt time.Time
}

// Page is one slice of a listing.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

var ErrInvalidCursor = domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")

// Encode returns an opaque URL-safe cursor for the row (id, createdAt).
func Encode(lastID string, createdAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor produced by Encode. An empty string is the first page.
func Decode(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, CreatedAt: createdAt}, nil
}

// ClampLimit applies the default to non-positive limits and caps the rest.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Trim cuts a result fetched with limit+1 rows down to limit and builds the
// next cursor from the last kept item.
func Trim[T any](items []T, limit int, key func(T) (string, time.Time)) Page[T] {
	page := Page[T]{Items: items}
	if len(items) <= limit {
		return page
	}
	page.Items = items[:limit]
	page.HasMore = true
	page.NextCursor = Encode(key(page.Items[limit-1]))
	return page
}
