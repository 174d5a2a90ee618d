// Package mapping builds and serves domain-type metadata: which wire-level
// field a struct property renders to, and which properties are nested
// entities a dotted path may descend into. Metadata comes from `bson` struct
// tags, falling back to the driver's lowercased-field-name convention.
package mapping

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Property is one mapped property of an entity.
type Property struct {
	// Name is the Go field name.
	Name string
	// FieldName is the wire-level document key.
	FieldName string
	// Type is the property's Go type with pointers stripped.
	Type reflect.Type

	nested bool
}

// IsEntity reports whether the property is itself a mapped document a dotted
// path may continue into.
func (p Property) IsEntity() bool { return p.nested }

// Entity is the mapping metadata of one domain type. Immutable once built.
type Entity struct {
	name  string
	typ   reflect.Type
	props []Property
}

// Name returns the entity's type name.
func (e *Entity) Name() string { return e.name }

// Type returns the underlying struct type.
func (e *Entity) Type() reflect.Type { return e.typ }

// Properties returns the mapped properties in declaration order.
func (e *Entity) Properties() []Property {
	out := make([]Property, len(e.props))
	copy(out, e.props)
	return out
}

// Property looks up a property by name. Lookup is exact first, then
// case-insensitive, so the wire-facing "qty" finds the Go field "Qty".
func (e *Entity) Property(name string) (Property, bool) {
	for _, p := range e.props {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range e.props {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Property{}, false
}

var timeType = reflect.TypeOf(time.Time{})

// newEntity builds metadata for t, which must be a struct type.
func newEntity(t reflect.Type) (*Entity, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("mapping: %s is not a struct type", t)
	}

	e := &Entity{name: t.Name(), typ: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		fieldName := strings.ToLower(f.Name)
		if tag, ok := f.Tag.Lookup("bson"); ok {
			parts := strings.Split(tag, ",")
			switch parts[0] {
			case "-":
				continue
			case "":
				// keep the default
			default:
				fieldName = parts[0]
			}
		}

		e.props = append(e.props, Property{
			Name:      f.Name,
			FieldName: fieldName,
			Type:      derefType(f.Type),
			nested:    isNestedEntity(f.Type),
		})
	}
	return e, nil
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t
}

// isNestedEntity reports whether t maps to an embedded document (or an array
// of them) rather than a scalar wire value.
func isNestedEntity(t reflect.Type) bool {
	t = derefType(t)
	if t == timeType {
		return false
	}
	if t.Kind() == reflect.Struct {
		return t.PkgPath() != "go.mongodb.org/mongo-driver/v2/bson"
	}
	return false
}
