package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mangodm/mango/query"
)

// Cond builds a $cond expression with named if/then/else arguments. The
// condition may be a field name (truthiness of the field), a Criteria tree,
// a raw expression document, or a nested expression.
//
// Construction validates eagerly: an empty or nil condition, a missing
// branch, or an unfinished nested builder is rejected when the expression is
// built, never deferred to render time.
type CondBuilder struct {
	cond any
	then any
	err  error
}

// NewCondBuilder starts a $cond chain.
func NewCondBuilder() *CondBuilder {
	return &CondBuilder{}
}

// WhenField conditions on the truthiness of a field.
func (b *CondBuilder) WhenField(field string) *CondBuilder {
	if field == "" {
		return b.fail(errors.New("aggregation: cond field name must not be empty"))
	}
	b.cond = NewField(field)
	return b
}

// When conditions on a criteria tree, translated into its
// aggregation-expression form.
func (b *CondBuilder) When(criteria query.CriteriaDefinition) *CondBuilder {
	if criteria == nil {
		return b.fail(errors.New("aggregation: cond criteria must not be nil"))
	}
	doc := criteria.CriteriaObject()
	if len(doc) == 0 {
		return b.fail(errors.New("aggregation: cond criteria must not be empty"))
	}
	b.cond = criteriaToExpression(doc)
	return b
}

// WhenDocument conditions on a raw expression document.
func (b *CondBuilder) WhenDocument(doc bson.D) *CondBuilder {
	if len(doc) == 0 {
		return b.fail(errors.New("aggregation: cond document must not be empty"))
	}
	b.cond = doc
	return b
}

// WhenExpression conditions on a nested expression.
func (b *CondBuilder) WhenExpression(expr Expression) *CondBuilder {
	if expr == nil {
		return b.fail(errors.New("aggregation: cond expression must not be nil"))
	}
	b.cond = expr
	return b
}

// Then sets the value produced when the condition holds. Passing an
// unfinished CondBuilder is caller misuse; build the nested condition first.
func (b *CondBuilder) Then(v any) *CondBuilder {
	if _, ok := v.(*CondBuilder); ok {
		return b.fail(errors.New("aggregation: then value is an unfinished cond builder"))
	}
	if v == nil {
		return b.fail(errors.New("aggregation: then value must not be nil"))
	}
	b.then = v
	return b
}

// Otherwise sets the else branch and builds the expression.
func (b *CondBuilder) Otherwise(v any) (*Expr, error) {
	if b.err != nil {
		return nil, b.err
	}
	if _, ok := v.(*CondBuilder); ok {
		return nil, errors.New("aggregation: otherwise value is an unfinished cond builder")
	}
	if v == nil {
		return nil, errors.New("aggregation: otherwise value must not be nil")
	}
	if b.cond == nil {
		return nil, errors.New("aggregation: cond requires a condition")
	}
	if b.then == nil {
		return nil, errors.New("aggregation: cond requires a then value")
	}
	return NewEntriesExpr("$cond", bson.D{
		{Key: "if", Value: b.cond},
		{Key: "then", Value: b.then},
		{Key: "else", Value: v},
	}), nil
}

func (b *CondBuilder) fail(err error) *CondBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// IfNull builds {$ifNull: [value, replacement]}.
func IfNull(value, replacement any) *Expr {
	return NewListExpr("$ifNull", value, replacement)
}

// SwitchBranch is one case/then pair of a $switch.
type SwitchBranch struct {
	Case any
	Then any
}

// Switch builds a $switch over the given branches with an optional default.
func Switch(branches []SwitchBranch, defaultValue any) (*Expr, error) {
	if len(branches) == 0 {
		return nil, errors.New("aggregation: switch requires at least one branch")
	}
	list := make([]any, len(branches))
	for i, br := range branches {
		if br.Case == nil || br.Then == nil {
			return nil, errors.New("aggregation: switch branch requires case and then")
		}
		list[i] = branchDoc(br)
	}
	doc := bson.D{{Key: "branches", Value: list}}
	if defaultValue != nil {
		doc = append(doc, bson.E{Key: "default", Value: defaultValue})
	}
	return NewEntriesExpr("$switch", doc), nil
}

func branchDoc(br SwitchBranch) bson.D {
	return bson.D{{Key: "case", Value: br.Case}, {Key: "then", Value: br.Then}}
}

// criteriaOps maps query-language comparison operators to their
// aggregation-expression counterparts.
var criteriaOps = map[string]string{
	"$eq":  "$eq",
	"$ne":  "$ne",
	"$gt":  "$gt",
	"$gte": "$gte",
	"$lt":  "$lt",
	"$lte": "$lte",
	"$in":  "$in",
}

// criteriaToExpression rewrites a criteria document into its
// aggregation-expression form: {f: {$gte: 1}} becomes {$gte: ["$f", 1]} and
// bare equality becomes $eq. A document with several root conditions renders
// as a list, matching the server's implicit-and inside $cond.
func criteriaToExpression(doc bson.D) any {
	var parts []any
	for _, e := range doc {
		switch {
		case e.Key == "$and" || e.Key == "$or" || e.Key == "$nor":
			parts = append(parts, logicalToExpression(e.Key, e.Value))
		default:
			parts = append(parts, fieldCriteriaToExpression(e.Key, e.Value)...)
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts
}

func logicalToExpression(op string, v any) any {
	items, ok := v.(bson.A)
	if !ok {
		return bson.D{{Key: op, Value: v}}
	}
	out := make(bson.A, 0, len(items))
	for _, item := range items {
		if d, ok := item.(bson.D); ok {
			out = append(out, criteriaToExpression(d))
		} else {
			out = append(out, item)
		}
	}
	return bson.D{{Key: op, Value: out}}
}

func fieldCriteriaToExpression(field string, v any) []any {
	ref := "$" + field
	sub, ok := v.(bson.D)
	if !ok {
		return []any{bson.D{{Key: "$eq", Value: bson.A{ref, v}}}}
	}
	var out []any
	for _, e := range sub {
		op, known := criteriaOps[e.Key]
		if !known {
			// operators with no expression counterpart keep query form
			out = append(out, bson.D{{Key: e.Key, Value: bson.D{{Key: field, Value: e.Value}}}})
			continue
		}
		out = append(out, bson.D{{Key: op, Value: bson.A{ref, e.Value}}})
	}
	return out
}
