package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs local development and tests, and
// can be told to refuse query shapes to exercise degraded catalog paths.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	collections map[string]*memCollection

	noOrdered  map[string]bool
	noFiltered map[string]bool
	faults     map[string]error
}

type memCollection struct {
	order   []string
	docs    map[string]map[string]any
	uniques map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		now:         time.Now,
		collections: make(map[string]*memCollection),
		noOrdered:   make(map[string]bool),
		noFiltered:  make(map[string]bool),
		faults:      make(map[string]error),
	}
}

// WithClock replaces the clock used for server timestamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// DisableOrderedQueries makes filtered+ordered queries on collection fail with
// ErrQueryCapability, like a missing composite index.
func (m *Memory) DisableOrderedQueries(collection string, disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noOrdered[collection] = disabled
}

// DisableFilteredQueries makes every filtered query on collection fail.
func (m *Memory) DisableFilteredQueries(collection string, disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noFiltered[collection] = disabled
}

// SetFault makes every operation on collection return err. A nil err clears it.
func (m *Memory) SetFault(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, collection)
		return
	}
	m.faults[collection] = err
}

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{
			docs:    make(map[string]map[string]any),
			uniques: make(map[string]string),
		}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[collection]; err != nil {
		return nil, err
	}
	if len(q.Filters) > 0 && m.noFiltered[collection] {
		return nil, fmt.Errorf("filtered query on %s: %w", collection, ErrQueryCapability)
	}
	if len(q.Filters) > 0 && q.OrderBy != "" && m.noOrdered[collection] {
		return nil, fmt.Errorf("ordered query on %s by %s: %w", collection, q.OrderBy, ErrQueryCapability)
	}

	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := jsonValue(f.Value)
		if err != nil {
			return nil, err
		}
		filters[i] = Filter{Field: f.Field, Value: v}
	}

	c := m.collection(collection)
	var out []Document
	for _, id := range c.order {
		fields := c.docs[id]
		if !matches(fields, filters) {
			continue
		}
		out = append(out, Document{ID: id, Fields: copyFields(fields)})
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return Less(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
		})
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[collection]; err != nil {
		return Document{}, err
	}
	fields, ok := m.collection(collection).docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Fields: copyFields(fields)}, nil
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	return m.create(collection, "", fields)
}

func (m *Memory) CreateUnique(ctx context.Context, collection, key string, fields map[string]any) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty unique key for %s", collection)
	}
	return m.create(collection, key, fields)
}

func (m *Memory) create(collection, key string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[collection]; err != nil {
		return "", err
	}
	c := m.collection(collection)
	if key != "" {
		if _, taken := c.uniques[key]; taken {
			return "", fmt.Errorf("%s key %q: %w", collection, key, ErrConflict)
		}
	}

	doc, err := normalize(fields, nil, m.now())
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	c.docs[id] = doc
	c.order = append(c.order, id)
	if key != "" {
		c.uniques[key] = id
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[collection]; err != nil {
		return err
	}
	doc, err := normalize(fields, nil, m.now())
	if err != nil {
		return err
	}
	c := m.collection(collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[collection]; err != nil {
		return err
	}
	doc, ok := m.collection(collection).docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	patch, err := normalize(fields, doc, m.now())
	if err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func jsonValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

// Less orders field values the way the stores do: numbers numerically,
// strings lexically, missing or non-numeric values as 0.
func Less(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return number(a) < number(b)
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
