package model

import "strings"

// ListItem is one row of a room's list after reconciliation.
// Quantity is always at least 1.
type ListItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Quantity  int    `json:"quantity"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// MatchKey is the normalized form used to detect duplicate entries:
// surrounding whitespace trimmed, lower-cased.
func MatchKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Patch is a merge-patch over a stored record. Nil fields are left alone.
type Patch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Quantity  *int    `json:"quantity,omitempty"`
}

func QuantityPatch(n int) Patch { return Patch{Quantity: &n} }

func CompletedPatch(done bool) Patch { return Patch{Completed: &done} }

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.Completed == nil && p.Quantity == nil
}

// Apply returns it with p merged in, normalized the way Reconcile would
// show the patched record.
func (it ListItem) Apply(p Patch) ListItem {
	if p.Text != nil {
		it.Text = *p.Text
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	if p.Quantity != nil {
		it.Quantity = NormalizeQuantity(float64(*p.Quantity))
	}
	return it
}
