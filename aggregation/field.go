package aggregation

import (
	"strings"

	"github.com/pkg/errors"
)

// Field is a logical reference into a document: the domain property name plus
// the wire-level name it renders to. target falls back to name when the field
// carries no alias.
type Field struct {
	name    string
	target  string
	aliased bool
}

// NewField creates a field reference for the given property name.
func NewField(name string) Field {
	if name == "" {
		panic("aggregation: field name must not be empty")
	}
	return Field{name: cleanName(name)}
}

// NewFieldWithTarget creates an aliased field reference rendering to target.
func NewFieldWithTarget(name, target string) Field {
	if name == "" {
		panic("aggregation: field name must not be empty")
	}
	if target == "" {
		return NewField(name)
	}
	return Field{name: cleanName(name), target: cleanName(target), aliased: true}
}

// cleanName strips a leading $ so callers may pass either form.
func cleanName(s string) string {
	return strings.TrimPrefix(s, "$")
}

// Name returns the domain property name.
func (f Field) Name() string { return f.name }

// Target returns the wire name this field renders to.
func (f Field) Target() string {
	if f.aliased {
		return f.target
	}
	return f.name
}

// Aliased reports whether the field carries an explicit target.
func (f Field) Aliased() bool { return f.aliased }

func (f Field) isZero() bool { return f.name == "" }

// Fields is an ordered list of field references with unique names.
type Fields struct {
	fields []Field
}

// NewFields builds a Fields list from property names.
func NewFields(names ...string) (Fields, error) {
	f := Fields{}
	for _, n := range names {
		var err error
		if f, err = f.With(NewField(n)); err != nil {
			return Fields{}, err
		}
	}
	return f, nil
}

// With returns a new Fields list including field. Duplicate names are
// rejected.
func (fs Fields) With(field Field) (Fields, error) {
	for _, f := range fs.fields {
		if f.Name() == field.Name() {
			return Fields{}, errors.Errorf("aggregation: duplicate field name %q", field.Name())
		}
	}
	next := make([]Field, 0, len(fs.fields)+1)
	next = append(next, fs.fields...)
	next = append(next, field)
	return Fields{fields: next}, nil
}

// List returns the fields in declaration order.
func (fs Fields) List() []Field {
	out := make([]Field, len(fs.fields))
	copy(out, fs.fields)
	return out
}

// Size returns the number of fields.
func (fs Fields) Size() int { return len(fs.fields) }

// FieldRef is a resolved field reference. Its String form carries the $
// prefix expressions use; Target is the raw wire name sort keys and output
// aliases use.
type FieldRef struct {
	target string
}

// Ref wraps an already-resolved wire name.
func Ref(target string) FieldRef { return FieldRef{target: target} }

// Target returns the raw wire name.
func (r FieldRef) Target() string { return r.target }

func (r FieldRef) String() string { return "$" + r.target }

// exposedField is one entry of an ExposedFields set.
type exposedField struct {
	field     Field
	synthetic bool
}

// ExposedFields is the named, ordered set of fields a stage makes visible to
// the stages after it. Synthetic fields are introduced by the stage itself
// (a $group alias, the $count output); non-synthetic ones pass through from
// the previous document shape.
type ExposedFields struct {
	fields []exposedField
}

// NewExposedFields builds an exposed set from fields, all sharing the given
// synthetic flag. Duplicate names are rejected.
func NewExposedFields(synthetic bool, fields ...Field) (ExposedFields, error) {
	ef := ExposedFields{}
	for _, f := range fields {
		var err error
		if ef, err = ef.With(f, synthetic); err != nil {
			return ExposedFields{}, err
		}
	}
	return ef, nil
}

// SyntheticFields is shorthand for a fully synthetic exposed set.
func SyntheticFields(fields ...Field) (ExposedFields, error) {
	return NewExposedFields(true, fields...)
}

// With returns a new set including field.
func (ef ExposedFields) With(field Field, synthetic bool) (ExposedFields, error) {
	if field.isZero() {
		return ExposedFields{}, errors.New("aggregation: cannot expose zero field")
	}
	for _, e := range ef.fields {
		if e.field.Name() == field.Name() {
			return ExposedFields{}, errors.Errorf("aggregation: field %q exposed twice", field.Name())
		}
	}
	next := make([]exposedField, 0, len(ef.fields)+1)
	next = append(next, ef.fields...)
	next = append(next, exposedField{field: field, synthetic: synthetic})
	return ExposedFields{fields: next}, nil
}

// mustWith is With for exposure paths whose stage already rejected duplicate
// names at construction.
func (ef ExposedFields) mustWith(field Field, synthetic bool) ExposedFields {
	next, err := ef.With(field, synthetic)
	if err != nil {
		panic(err)
	}
	return next
}

// FieldByName looks a field up by its domain name.
func (ef ExposedFields) FieldByName(name string) (Field, bool) {
	for _, e := range ef.fields {
		if e.field.Name() == name {
			return e.field, true
		}
	}
	return Field{}, false
}

// ExposesNoFields reports whether the set is empty.
func (ef ExposedFields) ExposesNoFields() bool { return len(ef.fields) == 0 }

// ExposesSingleFieldOnly reports whether exactly one field is exposed.
func (ef ExposedFields) ExposesSingleFieldOnly() bool { return len(ef.fields) == 1 }

// List returns the exposed fields in declaration order.
func (ef ExposedFields) List() []Field {
	out := make([]Field, len(ef.fields))
	for i, e := range ef.fields {
		out[i] = e.field
	}
	return out
}
