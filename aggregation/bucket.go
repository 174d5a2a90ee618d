package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Granularity is a preferred-number series for $bucketAuto boundary
// rounding, rendered as its wire string.
type Granularity string

// Supported granularity series.
const (
	GranularityR5        Granularity = "R5"
	GranularityR10       Granularity = "R10"
	GranularityR20       Granularity = "R20"
	GranularityR40       Granularity = "R40"
	GranularityR80       Granularity = "R80"
	GranularitySeries125 Granularity = "1-2-5"
	GranularityE6        Granularity = "E6"
	GranularityE12       Granularity = "E12"
	GranularityE24       Granularity = "E24"
	GranularityE48       Granularity = "E48"
	GranularityE96       Granularity = "E96"
	GranularityE192      Granularity = "E192"
	GranularityPowersOf2 Granularity = "POWERSOF2"
)

type bucketOutput struct {
	alias string
	expr  Expression
}

func renderBucketOutputs(ctx Context, outputs []bucketOutput) (bson.D, error) {
	doc := make(bson.D, 0, len(outputs))
	for _, out := range outputs {
		rendered, err := out.expr.Render(ctx)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: out.alias, Value: rendered})
	}
	return doc, nil
}

func appendBucketOutput(outputs []bucketOutput, alias string, expr Expression) []bucketOutput {
	if alias == "" {
		panic("aggregation: bucket output alias must not be empty")
	}
	for _, out := range outputs {
		if out.alias == alias {
			panic(errors.Errorf("aggregation: bucket output %q declared twice", alias))
		}
	}
	return append(outputs, bucketOutput{alias: alias, expr: expr})
}

func exposeBucketOutputs(outputs []bucketOutput) ExposedFields {
	ef := ExposedFields{}
	for _, out := range outputs {
		ef = ef.mustWith(NewField(out.alias), true)
	}
	return ef
}

// ------------------------------------------------------------------- $bucket

// BucketStage groups documents into explicit boundary buckets.
type BucketStage struct {
	groupBy    any
	boundaries []any
	defaultKey any
	outputs    []bucketOutput
}

// Bucket creates a $bucket stage grouping by the given field.
func Bucket(groupBy string) (*BucketStage, error) {
	if groupBy == "" {
		return nil, errors.New("aggregation: bucket groupBy must not be empty")
	}
	return &BucketStage{groupBy: NewField(groupBy)}, nil
}

// BucketByExpression creates a $bucket stage grouping by an expression.
func BucketByExpression(groupBy Expression) (*BucketStage, error) {
	if groupBy == nil {
		return nil, errors.New("aggregation: bucket groupBy must not be nil")
	}
	return &BucketStage{groupBy: groupBy}, nil
}

// WithBoundaries sets the explicit bucket boundary list.
func (s *BucketStage) WithBoundaries(values ...any) *BucketStage {
	next := s.clone()
	next.boundaries = append(next.boundaries, values...)
	return next
}

// WithDefaultBucket routes out-of-range documents into the given bucket key.
func (s *BucketStage) WithDefaultBucket(key any) *BucketStage {
	next := s.clone()
	next.defaultKey = key
	return next
}

// AndOutput starts an accumulator output over the given field.
func (s *BucketStage) AndOutput(field string) *BucketOutputBuilder {
	return &BucketOutputBuilder{stage: s, value: NewField(field)}
}

// AndOutputCount starts a document-count output.
func (s *BucketStage) AndOutputCount() *BucketOutputBuilder {
	return &BucketOutputBuilder{stage: s, expr: CountAll()}
}

// AndOutputExpression starts an output over the given expression.
func (s *BucketStage) AndOutputExpression(expr Expression) *BucketOutputBuilder {
	return &BucketOutputBuilder{stage: s, expr: expr}
}

func (s *BucketStage) clone() *BucketStage {
	next := &BucketStage{groupBy: s.groupBy, defaultKey: s.defaultKey}
	next.boundaries = make([]any, len(s.boundaries))
	copy(next.boundaries, s.boundaries)
	next.outputs = make([]bucketOutput, len(s.outputs))
	copy(next.outputs, s.outputs)
	return next
}

func (s *BucketStage) withOutput(alias string, expr Expression) *BucketStage {
	next := s.clone()
	next.outputs = appendBucketOutput(next.outputs, alias, expr)
	return next
}

func (s *BucketStage) Operator() string { return "$bucket" }

func (s *BucketStage) Render(ctx Context) (bson.D, error) {
	groupBy, err := unpack(s.groupBy, ctx)
	if err != nil {
		return nil, err
	}
	doc := bson.D{{Key: "groupBy", Value: groupBy}}
	if len(s.boundaries) > 0 {
		doc = append(doc, bson.E{Key: "boundaries", Value: bson.A(s.boundaries)})
	}
	if s.defaultKey != nil {
		doc = append(doc, bson.E{Key: "default", Value: s.defaultKey})
	}
	if len(s.outputs) > 0 {
		output, err := renderBucketOutputs(ctx, s.outputs)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: "output", Value: output})
	}
	return bson.D{{Key: "$bucket", Value: doc}}, nil
}

// Fields exposes the accumulator aliases.
func (s *BucketStage) Fields() ExposedFields {
	return exposeBucketOutputs(s.outputs)
}

// --------------------------------------------------------------- $bucketAuto

// BucketAutoStage groups documents into a fixed number of evenly distributed
// buckets.
type BucketAutoStage struct {
	groupBy     any
	buckets     int
	granularity Granularity
	outputs     []bucketOutput
}

// BucketAuto creates a $bucketAuto stage grouping by field into buckets.
// The bucket count must be positive.
func BucketAuto(groupBy string, buckets int) (*BucketAutoStage, error) {
	if groupBy == "" {
		return nil, errors.New("aggregation: bucketAuto groupBy must not be empty")
	}
	if buckets <= 0 {
		return nil, errors.Errorf("aggregation: bucketAuto bucket count must be positive, got %d", buckets)
	}
	return &BucketAutoStage{groupBy: NewField(groupBy), buckets: buckets}, nil
}

// BucketAutoByExpression creates a $bucketAuto stage grouping by expression.
func BucketAutoByExpression(groupBy Expression, buckets int) (*BucketAutoStage, error) {
	if groupBy == nil {
		return nil, errors.New("aggregation: bucketAuto groupBy must not be nil")
	}
	if buckets <= 0 {
		return nil, errors.Errorf("aggregation: bucketAuto bucket count must be positive, got %d", buckets)
	}
	return &BucketAutoStage{groupBy: groupBy, buckets: buckets}, nil
}

// WithBuckets replaces the bucket count.
func (s *BucketAutoStage) WithBuckets(buckets int) (*BucketAutoStage, error) {
	if buckets <= 0 {
		return nil, errors.Errorf("aggregation: bucketAuto bucket count must be positive, got %d", buckets)
	}
	next := s.clone()
	next.buckets = buckets
	return next, nil
}

// WithGranularity sets the preferred-number rounding series.
func (s *BucketAutoStage) WithGranularity(g Granularity) *BucketAutoStage {
	next := s.clone()
	next.granularity = g
	return next
}

// AndOutput starts an accumulator output over the given field.
func (s *BucketAutoStage) AndOutput(field string) *BucketAutoOutputBuilder {
	return &BucketAutoOutputBuilder{stage: s, value: NewField(field)}
}

// AndOutputCount starts a document-count output.
func (s *BucketAutoStage) AndOutputCount() *BucketAutoOutputBuilder {
	return &BucketAutoOutputBuilder{stage: s, expr: CountAll()}
}

// AndOutputExpression starts an output over the given expression.
func (s *BucketAutoStage) AndOutputExpression(expr Expression) *BucketAutoOutputBuilder {
	return &BucketAutoOutputBuilder{stage: s, expr: expr}
}

func (s *BucketAutoStage) clone() *BucketAutoStage {
	next := &BucketAutoStage{groupBy: s.groupBy, buckets: s.buckets, granularity: s.granularity}
	next.outputs = make([]bucketOutput, len(s.outputs))
	copy(next.outputs, s.outputs)
	return next
}

func (s *BucketAutoStage) withOutput(alias string, expr Expression) *BucketAutoStage {
	next := s.clone()
	next.outputs = appendBucketOutput(next.outputs, alias, expr)
	return next
}

func (s *BucketAutoStage) Operator() string { return "$bucketAuto" }

func (s *BucketAutoStage) Render(ctx Context) (bson.D, error) {
	groupBy, err := unpack(s.groupBy, ctx)
	if err != nil {
		return nil, err
	}
	doc := bson.D{
		{Key: "groupBy", Value: groupBy},
		{Key: "buckets", Value: s.buckets},
	}
	if s.granularity != "" {
		doc = append(doc, bson.E{Key: "granularity", Value: string(s.granularity)})
	}
	if len(s.outputs) > 0 {
		output, err := renderBucketOutputs(ctx, s.outputs)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: "output", Value: output})
	}
	return bson.D{{Key: "$bucketAuto", Value: doc}}, nil
}

// Fields exposes the accumulator aliases.
func (s *BucketAutoStage) Fields() ExposedFields {
	return exposeBucketOutputs(s.outputs)
}

// --------------------------------------------------------- output builders

// BucketOutputBuilder picks the accumulator and alias for one $bucket output
// field.
type BucketOutputBuilder struct {
	stage *BucketStage
	value any
	expr  Expression
}

// Sum accumulates with $sum.
func (b *BucketOutputBuilder) Sum() *BucketOutputBuilder { return b.acc("$sum") }

// Avg accumulates with $avg.
func (b *BucketOutputBuilder) Avg() *BucketOutputBuilder { return b.acc("$avg") }

// Min accumulates with $min.
func (b *BucketOutputBuilder) Min() *BucketOutputBuilder { return b.acc("$min") }

// Max accumulates with $max.
func (b *BucketOutputBuilder) Max() *BucketOutputBuilder { return b.acc("$max") }

// Push accumulates with $push.
func (b *BucketOutputBuilder) Push() *BucketOutputBuilder { return b.acc("$push") }

// AddToSet accumulates with $addToSet.
func (b *BucketOutputBuilder) AddToSet() *BucketOutputBuilder { return b.acc("$addToSet") }

func (b *BucketOutputBuilder) acc(op string) *BucketOutputBuilder {
	return &BucketOutputBuilder{stage: b.stage, expr: NewExpr(op, b.value)}
}

// As binds the output under the given alias and returns the stage. Reusing
// an alias panics.
func (b *BucketOutputBuilder) As(alias string) *BucketStage {
	return b.stage.withOutput(alias, b.outputExpr())
}

func (b *BucketOutputBuilder) outputExpr() Expression {
	if b.expr != nil {
		return b.expr
	}
	// a bare field without an accumulator is treated as $first so the
	// alias always carries a valid accumulator document
	return NewExpr("$first", b.value)
}

// BucketAutoOutputBuilder picks the accumulator and alias for one
// $bucketAuto output field.
type BucketAutoOutputBuilder struct {
	stage *BucketAutoStage
	value any
	expr  Expression
}

// Sum accumulates with $sum.
func (b *BucketAutoOutputBuilder) Sum() *BucketAutoOutputBuilder { return b.acc("$sum") }

// Avg accumulates with $avg.
func (b *BucketAutoOutputBuilder) Avg() *BucketAutoOutputBuilder { return b.acc("$avg") }

// Min accumulates with $min.
func (b *BucketAutoOutputBuilder) Min() *BucketAutoOutputBuilder { return b.acc("$min") }

// Max accumulates with $max.
func (b *BucketAutoOutputBuilder) Max() *BucketAutoOutputBuilder { return b.acc("$max") }

// Push accumulates with $push.
func (b *BucketAutoOutputBuilder) Push() *BucketAutoOutputBuilder { return b.acc("$push") }

// AddToSet accumulates with $addToSet.
func (b *BucketAutoOutputBuilder) AddToSet() *BucketAutoOutputBuilder { return b.acc("$addToSet") }

func (b *BucketAutoOutputBuilder) acc(op string) *BucketAutoOutputBuilder {
	return &BucketAutoOutputBuilder{stage: b.stage, expr: NewExpr(op, b.value)}
}

// As binds the output under the given alias and returns the stage. Reusing
// an alias panics.
func (b *BucketAutoOutputBuilder) As(alias string) *BucketAutoStage {
	return b.stage.withOutput(alias, b.outputExpr())
}

func (b *BucketAutoOutputBuilder) outputExpr() Expression {
	if b.expr != nil {
		return b.expr
	}
	return NewExpr("$first", b.value)
}
