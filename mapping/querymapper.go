package mapping

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// QueryMapper rewrites the field names of an already-rendered document tree
// to their wire-level form. It is the legacy compatibility pass the pipeline
// assembler applies when no type-bound context mapped names during rendering.
type QueryMapper struct {
	ctx *Context
}

// NewQueryMapper creates a mapper backed by the given metadata registry.
func NewQueryMapper(ctx *Context) *QueryMapper {
	return &QueryMapper{ctx: ctx}
}

// MapDocument recursively rewrites keys in doc against entity's metadata.
// Operator keys ($-prefixed) are kept and their values descended into with
// the same entity; unknown keys pass through unchanged. A nil entity turns
// the mapper into a structural no-op.
func (m *QueryMapper) MapDocument(doc bson.D, entity *Entity) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		key := e.Key
		next := entity

		if !strings.HasPrefix(key, "$") && entity != nil {
			if p, err := m.ctx.Resolve(entity, key); err == nil && p.Resolved() {
				key = p.Target()
				next = nil
				if p.Leaf().IsEntity() {
					if ne, err := m.ctx.Entity(p.Leaf().Type); err == nil {
						next = ne
					}
				}
			}
		}

		out = append(out, bson.E{Key: key, Value: m.mapValue(e.Value, next)})
	}
	return out
}

func (m *QueryMapper) mapValue(v any, entity *Entity) any {
	switch val := v.(type) {
	case bson.D:
		return m.MapDocument(val, entity)
	case bson.M:
		// Normalize unordered maps into ordered documents as we descend,
		// sorting keys so output stays deterministic.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		doc := make(bson.D, 0, len(val))
		for _, k := range keys {
			doc = append(doc, bson.E{Key: k, Value: val[k]})
		}
		return m.MapDocument(doc, entity)
	case bson.A:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = m.mapValue(item, entity)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = m.mapValue(item, entity)
		}
		return out
	default:
		return v
	}
}
