// Package registry maps similarity-index slots to the documents they represent
// and answers which slots a caller may see.
package registry

import (
	"errors"
	"fmt"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/vector"
)

// ErrSlotOccupied is returned when recording into a slot that already holds a live entry.
var ErrSlotOccupied = errors.New("slot already occupied")

// Entry is the metadata stored for one indexed document.
type Entry struct {
	Slot       vector.Slot
	DocumentID int64
	Title      string
	Content    string
	Visibility models.Visibility
}

// Registry is a slot-keyed map of live entries. It is not safe for concurrent use.
type Registry struct {
	entries map[vector.Slot]*Entry
	byDoc   map[int64][]vector.Slot
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Record stores e under e.Slot.
func (r *Registry) Record(e Entry) error {
	if _, ok := r.entries[e.Slot]; ok {
		return fmt.Errorf("%w: %d", ErrSlotOccupied, e.Slot)
	}
	entry := e
	r.entries[e.Slot] = &entry
	r.byDoc[e.DocumentID] = append(r.byDoc[e.DocumentID], e.Slot)
	return nil
}

// Remove deletes every entry of docID and returns the freed slots. Unknown ids are a no-op.
func (r *Registry) Remove(docID int64) []vector.Slot {
	slots, ok := r.byDoc[docID]
	if !ok {
		return nil
	}
	for _, s := range slots {
		delete(r.entries, s)
	}
	delete(r.byDoc, docID)
	return slots
}

// VisibleSlots returns the set of slots scope is allowed to see.
func (r *Registry) VisibleSlots(scope models.Scope) map[vector.Slot]struct{} {
	visible := make(map[vector.Slot]struct{})
	for slot, e := range r.entries {
		if scope.Allows(e.Visibility) {
			visible[slot] = struct{}{}
		}
	}
	return visible
}

// HasVisible reports whether scope can see at least one entry.
func (r *Registry) HasVisible(scope models.Scope) bool {
	for _, e := range r.entries {
		if scope.Allows(e.Visibility) {
			return true
		}
	}
	return false
}

// Get returns a copy of the entry at slot.
func (r *Registry) Get(slot vector.Slot) (Entry, bool) {
	e, ok := r.entries[slot]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Contains reports whether docID has any live entry.
func (r *Registry) Contains(docID int64) bool {
	_, ok := r.byDoc[docID]
	return ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.entries = make(map[vector.Slot]*Entry)
	r.byDoc = make(map[int64][]vector.Slot)
}
