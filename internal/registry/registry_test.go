package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/vector"
)

func fixture(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, r.Record(Entry{Slot: 0, DocumentID: 10, Content: "a", Visibility: models.Owned(1)}))
	require.NoError(t, r.Record(Entry{Slot: 1, DocumentID: 11, Content: "b", Visibility: models.Owned(2)}))
	require.NoError(t, r.Record(Entry{Slot: 2, DocumentID: 12, Content: "c", Visibility: models.Ephemeral("S1")}))
	require.NoError(t, r.Record(Entry{Slot: 3, DocumentID: 13, Content: "d", Visibility: models.Visibility{}}))
	return r
}

func TestRecord_RejectsOccupiedSlot(t *testing.T) {
	r := fixture(t)
	err := r.Record(Entry{Slot: 1, DocumentID: 99})
	assert.ErrorIs(t, err, ErrSlotOccupied)
	e, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(11), e.DocumentID)
}

func TestVisibleSlots(t *testing.T) {
	r := fixture(t)
	tests := []struct {
		name  string
		scope models.Scope
		want  []vector.Slot
	}{
		{"admin", models.Administrator(0), []vector.Slot{0, 1, 3}},
		{"owner 1", models.Owner(1), []vector.Slot{0}},
		{"owner 2", models.Owner(2), []vector.Slot{1}},
		{"session S1", models.Session("S1"), []vector.Slot{2}},
		{"session S2", models.Session("S2"), nil},
		{"zero scope", models.Scope{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.VisibleSlots(tt.scope)
			assert.Len(t, got, len(tt.want))
			for _, s := range tt.want {
				assert.Contains(t, got, s)
			}
			assert.Equal(t, len(tt.want) > 0, r.HasVisible(tt.scope))
		})
	}
}

func TestRemove(t *testing.T) {
	r := fixture(t)
	slots := r.Remove(10)
	assert.Equal(t, []vector.Slot{0}, slots)
	assert.False(t, r.Contains(10))
	assert.Equal(t, 3, r.Len())
	assert.NotContains(t, r.VisibleSlots(models.Owner(1)), vector.Slot(0))

	assert.Empty(t, r.Remove(10), "second removal is a no-op")
	assert.Empty(t, r.Remove(404))
	assert.Equal(t, 3, r.Len())
}

func TestRemove_MultipleSlotsForOneDocument(t *testing.T) {
	r := New()
	require.NoError(t, r.Record(Entry{Slot: 0, DocumentID: 7}))
	require.NoError(t, r.Record(Entry{Slot: 4, DocumentID: 7}))
	assert.ElementsMatch(t, []vector.Slot{0, 4}, r.Remove(7))
	assert.Zero(t, r.Len())
}

func TestReset(t *testing.T) {
	r := fixture(t)
	r.Reset()
	assert.Zero(t, r.Len())
	assert.False(t, r.HasVisible(models.Administrator(0)))
	require.NoError(t, r.Record(Entry{Slot: 0, DocumentID: 1}))
}
