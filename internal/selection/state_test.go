package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
)

func TestExplicitToggle(t *testing.T) {
	s := New()
	s.ToggleRow(Row{ID: 1, Email: "a@x.com"})
	s.ToggleRow(Row{ID: 2, Email: "b@x.com"})
	s.ToggleRow(Row{ID: 1, Email: "a@x.com"})

	assert.Equal(t, ModeExplicit, s.Mode())
	assert.Equal(t, 1, s.EffectiveCount(500))
	assert.False(t, s.IsSelected(1))
	assert.True(t, s.IsSelected(2))

	sub := s.Materialize(model.ContactFilter{})
	assert.False(t, sub.SelectAllMatching)
	assert.Equal(t, []int64{2}, sub.ContactIDs)
	assert.Nil(t, sub.Filters)
}

func TestAllMatchingEffectiveCount(t *testing.T) {
	const total = 40
	s := New()
	s.SelectAllMatching(nil)
	for n := 0; n <= total; n++ {
		assert.Equal(t, total-n, s.EffectiveCount(total), "exclusions=%d", n)
		if n < total {
			s.ToggleRow(Row{ID: int64(n + 1), Email: "x@y.com"})
		}
	}

	// Toggling an excluded row brings it back.
	s.ToggleRow(Row{ID: 1, Email: "x@y.com"})
	assert.Equal(t, 1, s.EffectiveCount(total))
	assert.True(t, s.IsSelected(1))
}

func TestAmbiguousContactsStayPending(t *testing.T) {
	s := New()
	visible := []Row{
		{ID: 1, Email: "solo@x.com"},
		{ID: 2, Email: "first@x.com, second@x.com"},
		{ID: 3, Email: "a@x.com;b@x.com"},
	}
	s.SelectAllMatching(visible)

	assert.Equal(t, ModeAllMatching, s.Mode())
	assert.Equal(t, 2, s.PendingCount())
	assert.Equal(t, 100, s.EffectiveCount(100))
	assert.Equal(t, 98, s.ReadyCount(100))

	require.Error(t, s.ResolveEmail(visible[1], "third@x.com"))
	require.NoError(t, s.ResolveEmail(visible[1], "second@x.com"))
	assert.Equal(t, 1, s.PendingCount())

	sub := s.Materialize(model.ContactFilter{Search: "acme"})
	assert.True(t, sub.SelectAllMatching)
	require.NotNil(t, sub.Filters)
	assert.Equal(t, "acme", sub.Filters.Search)
	assert.Equal(t, []int64{3}, sub.Exclusions, "unresolved contact must not be submitted")
	assert.Equal(t, map[int64]string{2: "second@x.com"}, sub.ExplicitSelections)

	s.Skip(3)
	assert.Equal(t, 0, s.PendingCount())
	assert.Equal(t, 99, s.EffectiveCount(100))
	assert.Equal(t, 99, s.ReadyCount(100))
}

func TestExplicitPendingIsDroppedFromSubmission(t *testing.T) {
	s := New()
	s.ToggleRow(Row{ID: 7, Email: "a@x.com,b@x.com"})
	s.ToggleRow(Row{ID: 8, Email: "c@x.com"})

	assert.Equal(t, 2, s.EffectiveCount(0))
	assert.Equal(t, 1, s.ReadyCount(0))
	assert.Equal(t, []int64{8}, s.Materialize(model.ContactFilter{}).ContactIDs)

	s.Skip(7)
	assert.Equal(t, 1, s.EffectiveCount(0))
	assert.False(t, s.IsSelected(7))
}

func TestStateRoundTripsThroughJSON(t *testing.T) {
	s := New()
	s.SelectAllMatching([]Row{{ID: 5, Email: "a@x.com,b@x.com"}})
	s.ToggleRow(Row{ID: 9, Email: "z@x.com"})
	require.NoError(t, s.ResolveEmail(Row{ID: 5, Email: "a@x.com,b@x.com"}, "b@x.com"))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, s.Materialize(model.ContactFilter{}), restored.Materialize(model.ContactFilter{}))
	assert.Equal(t, s.EffectiveCount(10), restored.EffectiveCount(10))

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"sideways"}`), New()))
}
