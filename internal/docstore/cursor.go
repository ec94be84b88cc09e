package docstore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is an opaque forward-pagination token naming the last document of a
// page and the ordering and filters it was produced under. The zero value
// means "start".
type Cursor string

// IsZero reports whether the cursor points at the start of a collection.
func (c Cursor) IsZero() bool { return c == "" }

type cursorPos struct {
	Order string `json:"o"`
	Scope string `json:"s,omitempty"`
	Key   string `json:"k"`
	ID    string `json:"id"`
}

// orderName is how an ordering is recorded in a cursor; insertion order has
// no field name.
func orderName(o OrderBy) string {
	if o.Field == "" {
		return "$seq"
	}
	return o.Field
}

// filterScope fingerprints a filter set so a cursor cannot be replayed
// against a different query.
func filterScope(filters []Filter) string {
	if len(filters) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range filters {
		op := f.Op
		if op == "" {
			op = OpEq
		}
		fmt.Fprintf(&b, "%s%s%q;", f.Field, op, f.Value)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}

func newCursor(o OrderBy, filters []Filter, key, id string) Cursor {
	raw, _ := json.Marshal(cursorPos{Order: orderName(o), Scope: filterScope(filters), Key: key, ID: id})
	return Cursor(base64.RawURLEncoding.EncodeToString(raw))
}

// position decodes the cursor and checks it was issued for the same
// ordering and filters.
func (c Cursor) position(o OrderBy, filters []Filter) (cursorPos, error) {
	var pos cursorPos
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return pos, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if err := json.Unmarshal(raw, &pos); err != nil {
		return pos, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if pos.ID == "" {
		return pos, ErrInvalidCursor
	}
	if pos.Order != orderName(o) {
		return pos, fmt.Errorf("%w: issued for %q", ErrCursorMismatch, pos.Order)
	}
	if pos.Scope != filterScope(filters) {
		return pos, fmt.Errorf("%w: filters differ", ErrCursorMismatch)
	}
	return pos, nil
}
