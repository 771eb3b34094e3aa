package catalog

import "context"

// Store is the catalog document store. Implementations must keep
// IncrementScore atomic; Get returns (nil, nil) for an absent id.
type Store interface {
	// Get fetches one entry by its product id, (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Entry, error)

	// Set upserts an entry under its product id, overwriting all fields.
	Set(ctx context.Context, entry *Entry) error

	// IncrementScore atomically adds one to the entry's score. Returns false
	// when no entry with that id exists.
	IncrementScore(ctx context.Context, id string) (bool, error)

	// QueryByKeyword returns every entry whose search_terms contains the
	// keyword. Result order is not guaranteed.
	QueryByKeyword(ctx context.Context, keyword string) ([]*Entry, error)

	// All returns every catalog entry.
	All(ctx context.Context) ([]*Entry, error)
}
