// Package docstore is the narrow document-store contract the services are
// written against: insert, equality-filtered cursor queries, partial
// updates and counts over named collections of JSON documents.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Collections used by the service.
const (
	CollectionAccounts             = "accounts"
	CollectionRewards              = "rewards"
	CollectionSubscriptions        = "subscriptions"
	CollectionOrganizationProfiles = "organization_profiles"
	CollectionOrganizationMembers  = "organization_members"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrDuplicate      = errors.New("duplicate document")
	ErrInvalidCursor  = errors.New("invalid cursor")
	ErrCursorMismatch = errors.New("cursor does not belong to this ordering")
	ErrInvalidName    = errors.New("invalid collection or field name")
)

// Op is a filter comparison. Values are compared as text.
type Op string

const (
	OpEq  Op = "=="
	OpLte Op = "<="
	OpGte Op = ">="
)

// Filter constrains a top-level document field.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Eq is shorthand for an equality filter.
func Eq(field, value string) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// OrderBy names the field a query is ordered by. An empty Field orders by
// insertion sequence.
type OrderBy struct {
	Field string
}

// Query describes one page request.
type Query struct {
	Filters    []Filter
	OrderBy    OrderBy
	Limit      int
	StartAfter Cursor
}

// Document is a stored JSON object with its id and the cursor pointing at it.
type Document struct {
	ID     string
	Cursor Cursor
	Data   json.RawMessage
}

// Decode unmarshals the document body into out.
func (d Document) Decode(out any) error {
	if err := json.Unmarshal(d.Data, out); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Result is a page of documents. LastCursor is empty when no document was returned.
type Result struct {
	Documents  []Document
	LastCursor Cursor
}

// Store is implemented by SQLStore and MemoryStore.
type Store interface {
	Insert(ctx context.Context, collection string, doc any) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) (*Result, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Count(ctx context.Context, collection string, filters ...Filter) (int, error)
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func validName(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return nil
}

func validateQuery(collection string, q Query) error {
	if err := validName(collection); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := validateFilter(f); err != nil {
			return err
		}
	}
	if q.OrderBy.Field != "" {
		if err := validName(q.OrderBy.Field); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

func validateFilter(f Filter) error {
	if err := validName(f.Field); err != nil {
		return err
	}
	switch f.Op {
	case "", OpEq, OpLte, OpGte:
		return nil
	default:
		return fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

// encodeObject marshals doc and makes sure it is a JSON object.
func encodeObject(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("encode document: not a JSON object")
	}
	return obj, nil
}

// fieldText renders a decoded JSON value the way filters and orderings
// compare it.
func fieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}
