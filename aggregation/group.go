package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type groupOutput struct {
	alias string
	expr  Expression
}

// GroupStage groups documents by a discriminator and computes accumulator
// outputs.
type GroupStage struct {
	idFields Fields
	idExpr   Expression
	outputs  []groupOutput
}

// Group creates a $group stage keyed by the given fields. No fields means a
// single group over the whole stream (_id: null).
func Group(fields ...string) (*GroupStage, error) {
	fs, err := NewFields(fields...)
	if err != nil {
		return nil, err
	}
	return &GroupStage{idFields: fs}, nil
}

// GroupByExpression creates a $group stage keyed by an expression.
func GroupByExpression(expr Expression) *GroupStage {
	return &GroupStage{idExpr: expr}
}

// And adds an accumulator output under the given alias. An alias that
// collides with a grouping key or an earlier output panics.
func (s *GroupStage) And(alias string, expr Expression) *GroupStage {
	if alias == "" {
		panic("aggregation: group output alias must not be empty")
	}
	for _, f := range s.idFields.List() {
		if f.Name() == alias {
			panic(errors.Errorf("aggregation: group output %q collides with a grouping key", alias))
		}
	}
	for _, out := range s.outputs {
		if out.alias == alias {
			panic(errors.Errorf("aggregation: group output %q declared twice", alias))
		}
	}
	next := s.clone()
	next.outputs = append(next.outputs, groupOutput{alias: alias, expr: expr})
	return next
}

// AndCount adds a document-count output under the given alias.
func (s *GroupStage) AndCount(alias string) *GroupStage {
	return s.And(alias, CountAll())
}

// AndSum adds a $sum over the given field.
func (s *GroupStage) AndSum(field, alias string) *GroupStage {
	return s.And(alias, ValueOf(field).Sum())
}

// AndAvg adds an $avg over the given field.
func (s *GroupStage) AndAvg(field, alias string) *GroupStage {
	return s.And(alias, ValueOf(field).Avg())
}

// AndMin adds a $min over the given field.
func (s *GroupStage) AndMin(field, alias string) *GroupStage {
	return s.And(alias, ValueOf(field).Min())
}

// AndMax adds a $max over the given field.
func (s *GroupStage) AndMax(field, alias string) *GroupStage {
	return s.And(alias, ValueOf(field).Max())
}

// AndPush adds a $push over the given field.
func (s *GroupStage) AndPush(field, alias string) *GroupStage {
	return s.And(alias, ValueOf(field).Push())
}

func (s *GroupStage) clone() *GroupStage {
	next := &GroupStage{idFields: s.idFields, idExpr: s.idExpr}
	next.outputs = make([]groupOutput, len(s.outputs))
	copy(next.outputs, s.outputs)
	return next
}

func (s *GroupStage) Operator() string { return "$group" }

func (s *GroupStage) Render(ctx Context) (bson.D, error) {
	id, err := s.renderID(ctx)
	if err != nil {
		return nil, err
	}

	doc := bson.D{{Key: "_id", Value: id}}
	for _, out := range s.outputs {
		rendered, err := out.expr.Render(ctx)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: out.alias, Value: rendered})
	}
	return bson.D{{Key: "$group", Value: doc}}, nil
}

func (s *GroupStage) renderID(ctx Context) (any, error) {
	if s.idExpr != nil {
		return s.idExpr.Render(ctx)
	}
	switch s.idFields.Size() {
	case 0:
		return nil, nil
	case 1:
		ref, err := ctx.Reference(s.idFields.List()[0])
		if err != nil {
			return nil, err
		}
		return ref.String(), nil
	default:
		id := bson.D{}
		for _, f := range s.idFields.List() {
			ref, err := ctx.Reference(f)
			if err != nil {
				return nil, err
			}
			id = append(id, bson.E{Key: f.Name(), Value: ref.String()})
		}
		return id, nil
	}
}

// Fields exposes the grouping keys and the accumulator aliases; everything a
// $group emits is synthetic.
func (s *GroupStage) Fields() ExposedFields {
	ef := ExposedFields{}
	for _, f := range s.idFields.List() {
		ef = ef.mustWith(f, true)
	}
	for _, out := range s.outputs {
		ef = ef.mustWith(NewField(out.alias), true)
	}
	return ef
}
