package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// WindowUnit is the time unit of a range window boundary.
type WindowUnit int

// Window units. UnitDefault leaves the unit off the wire.
const (
	UnitDefault WindowUnit = iota
	UnitYear
	UnitQuarter
	UnitMonth
	UnitWeek
	UnitDay
	UnitHour
	UnitMinute
	UnitSecond
	UnitMillisecond
)

func (u WindowUnit) String() string {
	switch u {
	case UnitYear:
		return "year"
	case UnitQuarter:
		return "quarter"
	case UnitMonth:
		return "month"
	case UnitWeek:
		return "week"
	case UnitDay:
		return "day"
	case UnitHour:
		return "hour"
	case UnitMinute:
		return "minute"
	case UnitSecond:
		return "second"
	case UnitMillisecond:
		return "millisecond"
	default:
		return ""
	}
}

type windowKind int

const (
	documentsWindow windowKind = iota
	rangeWindow
)

// Window bounds an accumulator in $setWindowFields to a span of documents
// or values around the current document. Bounds are either a numeric
// offset, "current", or "unbounded".
type Window struct {
	kind  windowKind
	lower any
	upper any
	unit  WindowUnit
}

// Documents starts a documents window spanning lower to upper.
func Documents(lower, upper any) Window {
	return Window{kind: documentsWindow, lower: lower, upper: upper}
}

// DocumentsUnboundedToCurrent is the common running-total window.
func DocumentsUnboundedToCurrent() Window {
	return Documents("unbounded", "current")
}

// Range starts a range window spanning lower to upper.
func Range(lower, upper any) Window {
	return Window{kind: rangeWindow, lower: lower, upper: upper}
}

// From replaces the lower bound.
func (w Window) From(bound any) Window { w.lower = bound; return w }

// To replaces the upper bound.
func (w Window) To(bound any) Window { w.upper = bound; return w }

// FromUnbounded opens the lower bound.
func (w Window) FromUnbounded() Window { return w.From("unbounded") }

// FromCurrent anchors the lower bound at the current document.
func (w Window) FromCurrent() Window { return w.From("current") }

// ToUnbounded opens the upper bound.
func (w Window) ToUnbounded() Window { return w.To("unbounded") }

// ToCurrent anchors the upper bound at the current document.
func (w Window) ToCurrent() Window { return w.To("current") }

// Unit sets the time unit of a range window.
func (w Window) Unit(u WindowUnit) Window { w.unit = u; return w }

func (w Window) render() bson.D {
	bounds := bson.A{w.lower, w.upper}
	switch w.kind {
	case rangeWindow:
		inner := bson.D{{Key: "range", Value: bounds}}
		if w.unit != UnitDefault {
			inner = append(inner, bson.E{Key: "unit", Value: w.unit.String()})
		}
		return inner
	default:
		return bson.D{{Key: "documents", Value: bounds}}
	}
}

// ComputedField pairs an output alias with its window accumulator.
type ComputedField struct {
	alias  string
	expr   Expression
	window *Window
}

// NewComputedField creates an unwindowed computed field.
func NewComputedField(alias string, expr Expression) ComputedField {
	return ComputedField{alias: alias, expr: expr}
}

// WithWindow bounds the computed field.
func (f ComputedField) WithWindow(w Window) ComputedField {
	f.window = &w
	return f
}

// SetWindowFieldsStage performs windowed accumulation over partitioned,
// ordered documents.
type SetWindowFieldsStage struct {
	partitionBy any
	sortBy      *SortStage
	fields      []ComputedField
}

// SetWindowFields creates an empty $setWindowFields stage.
func SetWindowFields() *SetWindowFieldsStage {
	return &SetWindowFieldsStage{}
}

// PartitionByField partitions the input by a field.
func (s *SetWindowFieldsStage) PartitionByField(name string) *SetWindowFieldsStage {
	next := s.clone()
	next.partitionBy = NewField(name)
	return next
}

// PartitionByExpression partitions the input by an expression.
func (s *SetWindowFieldsStage) PartitionByExpression(expr Expression) *SetWindowFieldsStage {
	next := s.clone()
	next.partitionBy = expr
	return next
}

// SortBy orders documents within each partition. The sort renders inside
// the stage without its $sort envelope.
func (s *SetWindowFieldsStage) SortBy(sort *SortStage) *SetWindowFieldsStage {
	next := s.clone()
	next.sortBy = sort
	return next
}

// Output appends a computed field. Aliases render in declaration order.
func (s *SetWindowFieldsStage) Output(field ComputedField) (*SetWindowFieldsStage, error) {
	if field.alias == "" {
		return nil, errors.New("aggregation: setWindowFields output alias must not be empty")
	}
	if field.expr == nil {
		return nil, errors.New("aggregation: setWindowFields output expression must not be nil")
	}
	for _, f := range s.fields {
		if f.alias == field.alias {
			return nil, errors.Errorf("aggregation: setWindowFields output %q declared twice", field.alias)
		}
	}
	next := s.clone()
	next.fields = append(next.fields, field)
	return next, nil
}

func (s *SetWindowFieldsStage) clone() *SetWindowFieldsStage {
	next := &SetWindowFieldsStage{partitionBy: s.partitionBy, sortBy: s.sortBy}
	next.fields = make([]ComputedField, len(s.fields))
	copy(next.fields, s.fields)
	return next
}

func (s *SetWindowFieldsStage) Operator() string { return "$setWindowFields" }

func (s *SetWindowFieldsStage) Render(ctx Context) (bson.D, error) {
	doc := bson.D{}
	if s.partitionBy != nil {
		partition, err := unpack(s.partitionBy, ctx)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: "partitionBy", Value: partition})
	}
	if s.sortBy != nil {
		envelope, err := s.sortBy.Render(ctx)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: "sortBy", Value: envelope[0].Value})
	}
	output := make(bson.D, 0, len(s.fields))
	for _, f := range s.fields {
		rendered, err := f.expr.Render(ctx)
		if err != nil {
			return nil, err
		}
		value := rendered
		if f.window != nil {
			value = append(append(bson.D{}, rendered...), bson.E{Key: "window", Value: f.window.render()})
		}
		output = append(output, bson.E{Key: f.alias, Value: value})
	}
	doc = append(doc, bson.E{Key: "output", Value: output})
	return bson.D{{Key: "$setWindowFields", Value: doc}}, nil
}

// Fields exposes the computed aliases alongside the inherited input shape.
func (s *SetWindowFieldsStage) Fields() ExposedFields {
	ef := ExposedFields{}
	for _, f := range s.fields {
		ef = ef.mustWith(NewField(f.alias), true)
	}
	return ef
}

// InheritsFields marks the stage as passing through its input fields.
func (s *SetWindowFieldsStage) InheritsFields() {}
