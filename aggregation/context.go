package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mangodm/mango/mapping"
)

// ErrUnmappedField is the resolution failure a strict context reports for a
// field reference no metadata backs.
var ErrUnmappedField = errors.New("aggregation: field cannot be mapped")

// Context resolves field references and maps raw criteria documents while a
// pipeline renders. The variant is chosen once per pipeline by the assembler,
// not per stage.
type Context interface {
	// Reference resolves a field to its wire-level reference.
	Reference(field Field) (FieldRef, error)

	// Mapped rewrites a raw document (a criteria tree, a sort spec) to wire
	// field names.
	Mapped(doc bson.D) (bson.D, error)
}

// defaultContext passes every name through untouched. It never fails.
type defaultContext struct{}

// DefaultContext is the untyped pass-through context.
var DefaultContext Context = defaultContext{}

func (defaultContext) Reference(field Field) (FieldRef, error) {
	return Ref(field.Target()), nil
}

func (defaultContext) Mapped(doc bson.D) (bson.D, error) {
	return doc, nil
}

// typeContext resolves references against one domain type's mapping metadata.
// strict makes unresolved references an error; relaxed lets the literal name
// pass through.
type typeContext struct {
	entity *mapping.Entity
	mc     *mapping.Context
	strict bool
}

// NewTypeContext creates a strict type-bound context for entity.
func NewTypeContext(mc *mapping.Context, entity *mapping.Entity) Context {
	return &typeContext{entity: entity, mc: mc, strict: true}
}

// NewRelaxedTypeContext creates a best-effort type-bound context for entity.
func NewRelaxedTypeContext(mc *mapping.Context, entity *mapping.Entity) Context {
	return &typeContext{entity: entity, mc: mc, strict: false}
}

func (c *typeContext) Reference(field Field) (FieldRef, error) {
	if field.Aliased() {
		// An explicit alias already names the wire field.
		return Ref(field.Target()), nil
	}
	path, err := c.mc.Resolve(c.entity, field.Name())
	if err != nil {
		return FieldRef{}, err
	}
	if !path.Resolved() && c.strict {
		return FieldRef{}, errors.Wrapf(ErrUnmappedField, "path %q on %s", field.Name(), c.entity.Name())
	}
	return Ref(path.Target()), nil
}

func (c *typeContext) Mapped(doc bson.D) (bson.D, error) {
	return mapping.NewQueryMapper(c.mc).MapDocument(doc, c.entity), nil
}

// exposedContext is threaded between stages: a field a prior stage exposed
// resolves directly to its target, everything else falls back to the previous
// context (inheriting stages) or to the pipeline's resolution policy.
type exposedContext struct {
	fields     ExposedFields
	previous   Context
	inheriting bool
	strict     bool
}

func newExposedContext(fields ExposedFields, previous Context, inheriting, strict bool) Context {
	return &exposedContext{fields: fields, previous: previous, inheriting: inheriting, strict: strict}
}

func (c *exposedContext) Reference(field Field) (FieldRef, error) {
	if f, ok := c.fields.FieldByName(field.Name()); ok {
		return Ref(f.Target()), nil
	}
	if c.inheriting {
		return c.previous.Reference(field)
	}
	if c.strict {
		return FieldRef{}, errors.Wrapf(ErrUnmappedField, "field %q not exposed by previous stage", field.Name())
	}
	return Ref(field.Target()), nil
}

func (c *exposedContext) Mapped(doc bson.D) (bson.D, error) {
	if c.inheriting {
		return c.previous.Mapped(doc)
	}
	return doc, nil
}
