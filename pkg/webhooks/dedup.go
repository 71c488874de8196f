package webhooks

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduper remembers processed event ids. Seen reports whether the id was
// already marked; MarkProcessed records it. The two are separate so an id is
// only marked once its event has actually been applied: a failed apply must
// stay eligible for redelivery.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// lruDeduper answers repeat deliveries from process memory before consulting
// the shared backing store. The backing store may be nil, in which case the
// LRU alone decides; that is sufficient for single-instance deployments.
type lruDeduper struct {
	cache *lru.Cache[string, struct{}]
	next  Deduper
}

// NewLRUDeduper layers an in-process LRU of the given size in front of next.
func NewLRUDeduper(size int, next Deduper) (Deduper, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &lruDeduper{cache: cache, next: next}, nil
}

func (d *lruDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	if _, seen := d.cache.Get(eventID); seen {
		return true, nil
	}
	if d.next == nil {
		return false, nil
	}
	seen, err := d.next.Seen(ctx, eventID)
	if err != nil {
		return false, err
	}
	if seen {
		// Another instance applied it; answer repeats locally from now on.
		d.cache.Add(eventID, struct{}{})
	}
	return seen, nil
}

func (d *lruDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	if d.next != nil {
		// Not cached on error so a later delivery re-consults the store.
		if err := d.next.MarkProcessed(ctx, eventID); err != nil {
			return err
		}
	}
	d.cache.Add(eventID, struct{}{})
	return nil
}
