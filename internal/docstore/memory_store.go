package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

type memDoc struct {
	id   string
	seq  int64
	body map[string]any
}

// MemoryStore is a thread-safe, in-memory Store. Documents keep insertion
// order, which is also the default query ordering.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]*memDoc
	unique      map[string][]string
	seq         int64
	newID       func() string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]*memDoc),
		unique:      make(map[string][]string),
		newID:       utilities.NewDocumentID,
	}
}

// EnsureUnique rejects later inserts and updates that would give two
// documents of collection the same non-empty value for field.
func (s *MemoryStore) EnsureUnique(_ context.Context, collection, field string) error {
	if err := validName(collection); err != nil {
		return err
	}
	if err := validName(field); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.unique[collection] {
		if f == field {
			return nil
		}
	}
	s.unique[collection] = append(s.unique[collection], field)
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, collection string, doc any) (string, error) {
	if err := validName(collection); err != nil {
		return "", err
	}
	body, err := encodeObject(doc)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUniqueLocked(collection, "", body); err != nil {
		return "", err
	}
	s.seq++
	d := &memDoc{id: s.newID(), seq: s.seq, body: body}
	s.collections[collection] = append(s.collections[collection], d)
	return d.id, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.collections[collection] {
		if d.id == id {
			return s.toDocument(d, OrderBy{}, nil)
		}
	}
	return Document{}, ErrNotFound
}

func (s *MemoryStore) Query(_ context.Context, collection string, q Query) (*Result, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}
	var after *cursorPos
	if !q.StartAfter.IsZero() {
		pos, err := q.StartAfter.position(q.OrderBy, q.Filters)
		if err != nil {
			return nil, err
		}
		after = &pos
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*memDoc, 0)
	for _, d := range s.collections[collection] {
		if matches(d.body, q.Filters) {
			matched = append(matched, d)
		}
	}
	if field := q.OrderBy.Field; field != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := fieldText(matched[i].body[field]), fieldText(matched[j].body[field])
			if a != b {
				return a < b
			}
			return matched[i].id < matched[j].id
		})
	}

	res := &Result{Documents: make([]Document, 0)}
	for _, d := range matched {
		if after != nil && !s.isAfter(d, q.OrderBy, *after) {
			continue
		}
		if q.Limit > 0 && len(res.Documents) == q.Limit {
			break
		}
		doc, err := s.toDocument(d, q.OrderBy, q.Filters)
		if err != nil {
			return nil, err
		}
		res.Documents = append(res.Documents, doc)
	}
	if n := len(res.Documents); n > 0 {
		res.LastCursor = res.Documents[n-1].Cursor
	}
	return res, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	patch, err := encodeObject(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.collections[collection] {
		if d.id != id {
			continue
		}
		merged := make(map[string]any, len(d.body)+len(patch))
		for k, v := range d.body {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		if err := s.checkUniqueLocked(collection, id, merged); err != nil {
			return err
		}
		d.body = merged
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) Count(_ context.Context, collection string, filters ...Filter) (int, error) {
	if err := validateQuery(collection, Query{Filters: filters}); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.collections[collection] {
		if matches(d.body, filters) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) checkUniqueLocked(collection, selfID string, body map[string]any) error {
	for _, field := range s.unique[collection] {
		v := fieldText(body[field])
		if v == "" {
			continue
		}
		for _, d := range s.collections[collection] {
			if d.id != selfID && fieldText(d.body[field]) == v {
				return fmt.Errorf("%w: %s.%s", ErrDuplicate, collection, field)
			}
		}
	}
	return nil
}

func (s *MemoryStore) isAfter(d *memDoc, o OrderBy, pos cursorPos) bool {
	if o.Field == "" {
		key, err := strconv.ParseInt(pos.Key, 10, 64)
		if err != nil {
			return false
		}
		return d.seq > key
	}
	v := fieldText(d.body[o.Field])
	return v > pos.Key || (v == pos.Key && d.id > pos.ID)
}

func (s *MemoryStore) toDocument(d *memDoc, o OrderBy, filters []Filter) (Document, error) {
	raw, err := json.Marshal(d.body)
	if err != nil {
		return Document{}, err
	}
	key := strconv.FormatInt(d.seq, 10)
	if o.Field != "" {
		key = fieldText(d.body[o.Field])
	}
	return Document{ID: d.id, Cursor: newCursor(o, filters, key, d.id), Data: raw}, nil
}

func matches(body map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v := fieldText(body[f.Field])
		switch f.Op {
		case OpLte:
			if v == "" || v > f.Value {
				return false
			}
		case OpGte:
			if v == "" || v < f.Value {
				return false
			}
		default:
			if v != f.Value {
				return false
			}
		}
	}
	return true
}
