// Package docstore is the document collaborator the portal keeps its
// profiles, catalog, progress and certificates in. Documents are schema-less
// field maps grouped into collections.
package docstore

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/waste3d/training-portal/internal/domain"
)

const (
	UserProfiles    = "user_profiles"
	TrainingModules = "training_modules"
	AIBasicsVideos  = "ai_basics_videos"
	UserProgress    = "user_progress"
	Certificates    = "certificates"
)

var (
	ErrNotFound        = domain.ErrNotFound
	ErrConflict        = domain.ErrConflict
	ErrQueryCapability = domain.ErrQueryCapability
)

type serverTimestamp struct{}

// ServerTimestamp asks the store to stamp the field with its own clock at write time.
var ServerTimestamp any = serverTimestamp{}

type transformOp int

const (
	opIncrement transformOp = iota + 1
	opGreatest
)

// fieldTransform is a numeric change the store applies against the stored
// value inside the write itself.
type fieldTransform struct {
	op    transformOp
	value float64
}

// Increment adds n to the stored numeric field. A missing field counts as 0.
func Increment(n float64) any { return fieldTransform{op: opIncrement, value: n} }

// Greatest keeps the larger of the stored numeric field and v.
func Greatest(v float64) any { return fieldTransform{op: opGreatest, value: v} }

func (t fieldTransform) apply(current any) float64 {
	base := number(current)
	if t.op == opIncrement {
		return base + t.value
	}
	return math.Max(base, t.value)
}

type Filter struct {
	Field string
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Value: value} }

// Query holds equality filters and an optional single-field ascending order.
type Query struct {
	Filters []Filter
	OrderBy string
}

type Document struct {
	ID     string
	Fields map[string]any
}

// Decode copies the document into dest through its JSON form, with the id
// exposed as "id".
func (d Document) Decode(dest any) error {
	m := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		m[k] = v
	}
	m["id"] = d.ID
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

type Store interface {
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// CreateUnique fails with ErrConflict when key is already used in the collection.
	CreateUnique(ctx context.Context, collection, key string, fields map[string]any) (string, error)
	// Set creates or replaces the document with a caller chosen id.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Ping(ctx context.Context) error
}

// Fields turns a struct into a field map using its json tags. The "id" key is dropped.
func Fields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "id")
	return m, nil
}

// normalize resolves server timestamps and transforms against current (nil
// for a new document) and reduces values to their JSON form, which is what a
// jsonb column would hand back.
func normalize(fields, current map[string]any, now time.Time) (map[string]any, error) {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case serverTimestamp:
			v = now
		case fieldTransform:
			v = t.apply(current[k])
		}
		resolved[k] = v
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
