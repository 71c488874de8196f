package webhooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDeduper is a mock backing store for dedup tests.
type mockDeduper struct {
	seenFunc  func(eventID string) (bool, error)
	markFunc  func(eventID string) error
	seenCalls int
	markCalls int
}

func (m *mockDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	m.seenCalls++
	if m.seenFunc != nil {
		return m.seenFunc(eventID)
	}
	return false, nil
}

func (m *mockDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	m.markCalls++
	if m.markFunc != nil {
		return m.markFunc(eventID)
	}
	return nil
}

func TestLRUDeduperWithoutBackingStore(t *testing.T) {
	d, err := NewLRUDeduper(16, nil)
	require.NoError(t, err)

	seen, err := d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.MarkProcessed(context.Background(), "evt_1"))

	seen, err = d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLRUDeduperSeenOnlyAfterMark(t *testing.T) {
	d, err := NewLRUDeduper(16, nil)
	require.NoError(t, err)

	// A checked-but-never-marked id stays new: the apply failed and the
	// redelivery must not be treated as a duplicate.
	seen, err := d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLRUDeduperAnswersRepeatsLocally(t *testing.T) {
	backing := &mockDeduper{}
	d, err := NewLRUDeduper(16, backing)
	require.NoError(t, err)

	require.NoError(t, d.MarkProcessed(context.Background(), "evt_1"))
	assert.Equal(t, 1, backing.markCalls)

	// The repeat never reaches the backing store.
	seen, err := d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, 0, backing.seenCalls)
}

func TestLRUDeduperTrustsBackingStore(t *testing.T) {
	// Another instance processed the event already.
	backing := &mockDeduper{seenFunc: func(eventID string) (bool, error) {
		return true, nil
	}}
	d, err := NewLRUDeduper(16, backing)
	require.NoError(t, err)

	seen, err := d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	// The answer was cached; the repeat is local.
	seen, err = d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, 1, backing.seenCalls)
}

func TestLRUDeduperPropagatesSeenError(t *testing.T) {
	backingErr := errors.New("redis down")
	backing := &mockDeduper{seenFunc: func(eventID string) (bool, error) {
		return false, backingErr
	}}
	d, err := NewLRUDeduper(16, backing)
	require.NoError(t, err)

	_, err = d.Seen(context.Background(), "evt_1")
	assert.ErrorIs(t, err, backingErr)
}

func TestLRUDeduperMarkErrorNotCached(t *testing.T) {
	backingErr := errors.New("redis down")
	backing := &mockDeduper{markFunc: func(eventID string) error {
		return backingErr
	}}
	d, err := NewLRUDeduper(16, backing)
	require.NoError(t, err)

	err = d.MarkProcessed(context.Background(), "evt_1")
	assert.ErrorIs(t, err, backingErr)

	// The failed id was not cached; the next check consults the store.
	_, err = d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.seenCalls)

	backing.markFunc = nil
	require.NoError(t, d.MarkProcessed(context.Background(), "evt_1"))
	assert.Equal(t, 2, backing.markCalls)
}

func TestLRUDeduperEviction(t *testing.T) {
	d, err := NewLRUDeduper(2, nil)
	require.NoError(t, err)

	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		require.NoError(t, d.MarkProcessed(context.Background(), id))
	}

	// evt_1 was evicted; without a backing store it counts as new again.
	seen, err := d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
