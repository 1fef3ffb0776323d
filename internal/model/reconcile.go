package model

import (
	"cmp"
	"slices"
)

// Normalize turns one untrusted record into a ListItem, substituting safe
// defaults for anything missing.
func Normalize(id string, s StoredItem) ListItem {
	it := ListItem{ID: id, Quantity: 1}
	if s.Text != nil {
		it.Text = *s.Text
	}
	if s.Completed != nil {
		it.Completed = *s.Completed
	}
	if s.Quantity != nil {
		it.Quantity = NormalizeQuantity(*s.Quantity)
	}
	if s.CreatedAt != nil {
		it.CreatedAt = *s.CreatedAt
	}
	return it
}

// Reconcile converts a snapshot into the list shown to the user: ordered by
// CreatedAt, then by id so equal timestamps still sort deterministically.
// A nil snapshot yields an empty, non-nil list.
func Reconcile(s Snapshot) []ListItem {
	items := make([]ListItem, 0, len(s))
	for id, raw := range s {
		items = append(items, Normalize(id, raw))
	}
	slices.SortFunc(items, func(a, b ListItem) int {
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return items
}

// Remaining counts the items not yet completed.
func Remaining(items []ListItem) int {
	n := 0
	for _, it := range items {
		if !it.Completed {
			n++
		}
	}
	return n
}
