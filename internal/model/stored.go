package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// StoredItem is a record as persisted under rooms/{room}/items/{id}.
// Every field is optional: other clients may have written anything, so
// decoding coerces loosely instead of failing.
type StoredItem struct {
	Text      *string  `json:"text,omitempty"`
	Completed *bool    `json:"completed,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	CreatedAt *int64   `json:"createdAt,omitempty"`
}

// Snapshot maps item id to record for one room.
type Snapshot map[string]StoredItem

// NewStoredItem returns a complete, fresh record.
func NewStoredItem(text string, quantity int, createdAt int64) StoredItem {
	done := false
	q := float64(quantity)
	return StoredItem{Text: &text, Completed: &done, Quantity: &q, CreatedAt: &createdAt}
}

// Apply returns a copy of s with p merged in.
func (s StoredItem) Apply(p Patch) StoredItem {
	s = s.clone()
	if p.Text != nil {
		t := *p.Text
		s.Text = &t
	}
	if p.Completed != nil {
		c := *p.Completed
		s.Completed = &c
	}
	if p.Quantity != nil {
		q := float64(*p.Quantity)
		s.Quantity = &q
	}
	return s
}

// Clone copies the snapshot so callers can hand it to subscribers safely.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, item := range s {
		out[id] = item.clone()
	}
	return out
}

func (s StoredItem) clone() StoredItem {
	var out StoredItem
	if s.Text != nil {
		t := *s.Text
		out.Text = &t
	}
	if s.Completed != nil {
		c := *s.Completed
		out.Completed = &c
	}
	if s.Quantity != nil {
		q := *s.Quantity
		out.Quantity = &q
	}
	if s.CreatedAt != nil {
		ts := *s.CreatedAt
		out.CreatedAt = &ts
	}
	return out
}

var errInvalidJSON = errors.New("stored item: invalid json")

// UnmarshalJSON decodes a record leniently. A value that is not an object
// decodes as an empty record; mistyped fields are coerced or dropped.
func (s *StoredItem) UnmarshalJSON(b []byte) error {
	if !json.Valid(b) {
		return errInvalidJSON
	}
	*s = StoredItem{}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if v, ok := raw["text"].(string); ok {
		s.Text = &v
	}
	if v, ok := coerceBool(raw["completed"]); ok {
		s.Completed = &v
	}
	if v, ok := coerceNumber(raw["quantity"]); ok {
		s.Quantity = &v
	}
	if v, ok := coerceNumber(raw["createdAt"]); ok && math.Abs(v) < math.MaxInt64 {
		ts := int64(v)
		s.CreatedAt = &ts
	}
	return nil
}

func coerceBool(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case float64:
		return x != 0 && !math.IsNaN(x), true
	case string:
		return x != "", true
	default:
		// objects and arrays are truthy
		return true, true
	}
}

func coerceNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, ok := parseNumber(x)
		return f, ok
	default:
		return 0, false
	}
}

// parseNumber reads free text as a number. Blank text is zero.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
