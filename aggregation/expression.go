package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrShape is returned when a named argument is appended to an expression
// whose payload is not a document.
var ErrShape = errors.New("aggregation: operator payload is not a document")

// Expression is anything that renders itself to a document fragment against
// a context.
type Expression interface {
	Render(ctx Context) (bson.D, error)
}

// payloadKind discriminates the payload an Expr wraps. The switch over it in
// unpack is exhaustive; adding a kind without extending unpack is a bug.
type payloadKind int

const (
	scalarPayload payloadKind = iota
	listPayload
	entriesPayload
)

type entry struct {
	key string
	val any
}

// Expr is the one expression-node type every operator shares: a wire operator
// keyword plus a tagged payload (scalar, ordered list, or ordered key/value
// entries). Nodes are immutable; Append and AppendEntry return new nodes, so
// a rendered node can safely be reused across pipeline branches.
type Expr struct {
	op      string
	kind    payloadKind
	scalar  any
	list    []any
	entries []entry
}

// NewExpr creates an operator node with a scalar payload. A Field payload
// resolves through the rendering context; an Expression payload renders
// itself; anything else passes through.
func NewExpr(op string, value any) *Expr {
	return &Expr{op: op, kind: scalarPayload, scalar: value}
}

// NewListExpr creates an operator node with positional arguments.
func NewListExpr(op string, values ...any) *Expr {
	list := make([]any, len(values))
	copy(list, values)
	return &Expr{op: op, kind: listPayload, list: list}
}

// NewEntriesExpr creates an operator node with named arguments, preserving
// the given key order.
func NewEntriesExpr(op string, doc bson.D) *Expr {
	entries := make([]entry, len(doc))
	for i, e := range doc {
		entries[i] = entry{key: e.Key, val: e.Value}
	}
	return &Expr{op: op, kind: entriesPayload, entries: entries}
}

// Operator returns the wire operator keyword.
func (e *Expr) Operator() string { return e.op }

// Render produces {op: payload} with every nested expression, field reference
// and list/document member recursively unpacked against ctx.
func (e *Expr) Render(ctx Context) (bson.D, error) {
	v, err := unpack(e.payload(), ctx)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: e.op, Value: v}}, nil
}

func (e *Expr) payload() any {
	switch e.kind {
	case listPayload:
		return e.list
	case entriesPayload:
		return e.entries
	default:
		return e.scalar
	}
}

// Append returns a new node with v added to the positional argument list. A
// list payload is extended (flattening v when it is itself a list); any other
// payload becomes the first element of a new 2-element list.
func (e *Expr) Append(v any) *Expr {
	if e.kind == listPayload {
		next := make([]any, 0, len(e.list)+1)
		next = append(next, e.list...)
		switch vs := v.(type) {
		case []any:
			next = append(next, vs...)
		case bson.A:
			next = append(next, vs...)
		default:
			next = append(next, v)
		}
		return &Expr{op: e.op, kind: listPayload, list: next}
	}
	return &Expr{op: e.op, kind: listPayload, list: []any{e.payload(), v}}
}

// AppendEntry returns a new node with the named argument added. Only valid
// for nodes built with named arguments; anything else is caller misuse and
// reports ErrShape.
func (e *Expr) AppendEntry(key string, v any) (*Expr, error) {
	if e.kind != entriesPayload {
		return nil, errors.Wrapf(ErrShape, "cannot append %q to %s", key, e.op)
	}
	return e.withEntry(key, v), nil
}

// withEntry is AppendEntry for internal construction paths that created the
// entries payload themselves.
func (e *Expr) withEntry(key string, v any) *Expr {
	if e.kind != entriesPayload {
		panic("aggregation: named append on non-document payload")
	}
	next := make([]entry, len(e.entries))
	copy(next, e.entries)
	for i, en := range next {
		if en.key == key {
			next[i].val = v
			return &Expr{op: e.op, kind: entriesPayload, entries: next}
		}
	}
	next = append(next, entry{key: key, val: v})
	return &Expr{op: e.op, kind: entriesPayload, entries: next}
}

// Values normalizes the payload to an ordered slice: the list itself, the
// entry values in key order, or a singleton.
func (e *Expr) Values() []any {
	switch e.kind {
	case listPayload:
		out := make([]any, len(e.list))
		copy(out, e.list)
		return out
	case entriesPayload:
		out := make([]any, len(e.entries))
		for i, en := range e.entries {
			out[i] = en.val
		}
		return out
	default:
		return []any{e.scalar}
	}
}

// currentDate marks a value that renders to the server-evaluated "now"
// sentinel.
type currentDate struct{}

// CurrentDate returns the marker rendering to the $$NOW system variable.
func CurrentDate() any { return currentDate{} }

// unpack recursively converts a payload value to its wire form.
func unpack(value any, ctx Context) (any, error) {
	switch v := value.(type) {
	case Expression:
		return v.Render(ctx)
	case currentDate:
		return "$$NOW", nil
	case Field:
		ref, err := ctx.Reference(v)
		if err != nil {
			return nil, err
		}
		return ref.String(), nil
	case []any:
		out := make(bson.A, len(v))
		for i, item := range v {
			u, err := unpack(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	case bson.A:
		out := make(bson.A, len(v))
		for i, item := range v {
			u, err := unpack(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	case []entry:
		out := make(bson.D, len(v))
		for i, en := range v {
			u, err := unpack(en.val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = bson.E{Key: en.key, Value: u}
		}
		return out, nil
	case bson.D:
		out := make(bson.D, len(v))
		for i, en := range v {
			u, err := unpack(en.Value, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = bson.E{Key: en.Key, Value: u}
		}
		return out, nil
	default:
		return value, nil
	}
}
