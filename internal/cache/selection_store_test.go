package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/selection"
)

func TestSelectionKey(t *testing.T) {
	id := uuid.MustParse("0b8f3c1e-2a4d-4e6f-8a9b-1c2d3e4f5a6b")
	assert.Equal(t, "selection:0b8f3c1e-2a4d-4e6f-8a9b-1c2d3e4f5a6b", selectionKey(id))
}

func TestMemorySelectionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySelectionStore(time.Hour)
	id := uuid.New()

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSelectionNotFound)

	state := selection.New()
	state.ToggleRow(selection.Row{ID: 4, Email: "a@x.com"})
	require.NoError(t, store.Save(ctx, id, state))

	// Mutating after save does not touch the stored copy.
	state.ToggleRow(selection.Row{ID: 5, Email: "b@x.com"})

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, loaded.Materialize(model.ContactFilter{}).ContactIDs)
}

func TestMemorySelectionStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	store := NewMemorySelectionStore(time.Minute)
	store.now = func() time.Time { return now }

	id := uuid.New()
	require.NoError(t, store.Save(ctx, id, selection.New()))

	now = now.Add(59 * time.Second)
	_, err := store.Load(ctx, id)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSelectionNotFound)
}
