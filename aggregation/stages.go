package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mangodm/mango/query"
)

// Stage is one named pipeline step.
type Stage interface {
	// Render produces the stage document, e.g. {$match: {...}}.
	Render(ctx Context) (bson.D, error)

	// Operator returns the stage's wire keyword.
	Operator() string
}

// FieldsExposer is implemented by stages that change the document shape seen
// by later stages.
type FieldsExposer interface {
	Fields() ExposedFields
}

// fieldInheriting marks exposing stages whose output keeps the previous
// shape's fields alongside the new ones.
type fieldInheriting interface {
	InheritsFields()
}

// dynamicallyShaped marks stages whose output shape is not statically known;
// their presence downgrades strict context selection.
type dynamicallyShaped interface {
	DynamicallyShaped()
}

// ------------------------------------------------------------------- $match

// MatchStage filters documents with a criteria tree.
type MatchStage struct {
	criteria query.CriteriaDefinition
}

// Match creates a $match stage from a criteria definition.
func Match(criteria query.CriteriaDefinition) (*MatchStage, error) {
	if criteria == nil {
		return nil, errors.New("aggregation: match criteria must not be nil")
	}
	return &MatchStage{criteria: criteria}, nil
}

// MatchDocument creates a $match stage from an already-built criteria
// document.
func MatchDocument(doc bson.D) (*MatchStage, error) {
	if doc == nil {
		return nil, errors.New("aggregation: match document must not be nil")
	}
	return &MatchStage{criteria: rawCriteria(doc)}, nil
}

type rawCriteria bson.D

func (r rawCriteria) CriteriaObject() bson.D { return bson.D(r) }

func (s *MatchStage) Operator() string { return "$match" }

func (s *MatchStage) Render(ctx Context) (bson.D, error) {
	mapped, err := ctx.Mapped(s.criteria.CriteriaObject())
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$match", Value: mapped}}, nil
}

// ------------------------------------------------------------------ $project

type projection struct {
	field   Field
	exclude bool
	expr    Expression
}

// ProjectStage reshapes documents.
type ProjectStage struct {
	projections []projection
}

// Project creates a $project stage including the given fields. Naming a
// field twice panics.
func Project(fields ...string) *ProjectStage {
	s := &ProjectStage{}
	for _, f := range fields {
		s.projections = appendProjection(s.projections, projection{field: NewField(f)})
	}
	return s
}

// AndExclude excludes fields from the projection.
func (s *ProjectStage) AndExclude(fields ...string) *ProjectStage {
	next := s.clone()
	for _, f := range fields {
		next.projections = appendProjection(next.projections, projection{field: NewField(f), exclude: true})
	}
	return next
}

// AndExpression projects the expression under the given alias.
func (s *ProjectStage) AndExpression(alias string, expr Expression) *ProjectStage {
	next := s.clone()
	next.projections = appendProjection(next.projections, projection{field: NewField(alias), expr: expr})
	return next
}

func appendProjection(ps []projection, p projection) []projection {
	for _, existing := range ps {
		if existing.field.Name() == p.field.Name() {
			panic(errors.Errorf("aggregation: field %q projected twice", p.field.Name()))
		}
	}
	return append(ps, p)
}

func (s *ProjectStage) clone() *ProjectStage {
	next := &ProjectStage{projections: make([]projection, len(s.projections))}
	copy(next.projections, s.projections)
	return next
}

func (s *ProjectStage) Operator() string { return "$project" }

func (s *ProjectStage) Render(ctx Context) (bson.D, error) {
	doc := make(bson.D, 0, len(s.projections))
	for _, p := range s.projections {
		switch {
		case p.expr != nil:
			rendered, err := p.expr.Render(ctx)
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: p.field.Name(), Value: rendered})
		case p.exclude:
			ref, err := ctx.Reference(p.field)
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: ref.Target(), Value: 0})
		default:
			ref, err := ctx.Reference(p.field)
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: ref.Target(), Value: 1})
		}
	}
	return bson.D{{Key: "$project", Value: doc}}, nil
}

// Fields exposes the projected names: included fields pass through,
// expression aliases are new.
func (s *ProjectStage) Fields() ExposedFields {
	ef := ExposedFields{}
	for _, p := range s.projections {
		if p.exclude {
			continue
		}
		ef = ef.mustWith(p.field, p.expr != nil)
	}
	return ef
}

// --------------------------------------------------------------------- $sort

// Direction is a sort direction.
type Direction int

// Sort directions.
const (
	Ascending  Direction = 1
	Descending Direction = -1
)

type sortEntry struct {
	field Field
	dir   Direction
}

// SortStage orders documents. Key order is significant and preserved.
type SortStage struct {
	entries []sortEntry
}

// Sort creates a $sort stage over the given fields, all in one direction.
func Sort(dir Direction, fields ...string) *SortStage {
	s := &SortStage{}
	for _, f := range fields {
		s.entries = append(s.entries, sortEntry{field: NewField(f), dir: dir})
	}
	return s
}

// And appends another sort key.
func (s *SortStage) And(dir Direction, fields ...string) *SortStage {
	next := &SortStage{entries: make([]sortEntry, len(s.entries))}
	copy(next.entries, s.entries)
	for _, f := range fields {
		next.entries = append(next.entries, sortEntry{field: NewField(f), dir: dir})
	}
	return next
}

func (s *SortStage) Operator() string { return "$sort" }

func (s *SortStage) Render(ctx Context) (bson.D, error) {
	doc := make(bson.D, 0, len(s.entries))
	for _, e := range s.entries {
		ref, err := ctx.Reference(e.field)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: ref.Target(), Value: int(e.dir)})
	}
	return bson.D{{Key: "$sort", Value: doc}}, nil
}

// ------------------------------------------------------------- $skip, $limit

// SkipStage skips the first n documents.
type SkipStage struct {
	n int64
}

// Skip creates a $skip stage.
func Skip(n int64) (*SkipStage, error) {
	if n < 0 {
		return nil, errors.Errorf("aggregation: skip count must not be negative, got %d", n)
	}
	return &SkipStage{n: n}, nil
}

func (s *SkipStage) Operator() string { return "$skip" }

func (s *SkipStage) Render(Context) (bson.D, error) {
	return bson.D{{Key: "$skip", Value: s.n}}, nil
}

// LimitStage caps the number of documents.
type LimitStage struct {
	n int64
}

// Limit creates a $limit stage.
func Limit(n int64) (*LimitStage, error) {
	if n <= 0 {
		return nil, errors.Errorf("aggregation: limit must be positive, got %d", n)
	}
	return &LimitStage{n: n}, nil
}

func (s *LimitStage) Operator() string { return "$limit" }

func (s *LimitStage) Render(Context) (bson.D, error) {
	return bson.D{{Key: "$limit", Value: s.n}}, nil
}

// -------------------------------------------------------------------- $count

// CountStage counts the documents reaching it into one output field.
type CountStage struct {
	field Field
}

// Count creates a $count stage writing to fieldName.
func Count(fieldName string) (*CountStage, error) {
	if fieldName == "" {
		return nil, errors.New("aggregation: count field name must not be empty")
	}
	return &CountStage{field: NewField(fieldName)}, nil
}

func (s *CountStage) Operator() string { return "$count" }

func (s *CountStage) Render(Context) (bson.D, error) {
	return bson.D{{Key: "$count", Value: s.field.Name()}}, nil
}

// Fields exposes exactly the count output field.
func (s *CountStage) Fields() ExposedFields {
	ef, _ := SyntheticFields(s.field)
	return ef
}

// ------------------------------------------------------------------- $unwind

// UnwindStage deconstructs an array field into one document per element.
type UnwindStage struct {
	field                      Field
	preserveNullAndEmptyArrays bool
}

// Unwind creates a $unwind stage over the given array field.
func Unwind(field string) (*UnwindStage, error) {
	if field == "" {
		return nil, errors.New("aggregation: unwind field must not be empty")
	}
	return &UnwindStage{field: NewField(field)}, nil
}

// PreserveNullAndEmptyArrays keeps documents whose array is null or empty.
func (s *UnwindStage) PreserveNullAndEmptyArrays() *UnwindStage {
	return &UnwindStage{field: s.field, preserveNullAndEmptyArrays: true}
}

func (s *UnwindStage) Operator() string { return "$unwind" }

func (s *UnwindStage) Render(ctx Context) (bson.D, error) {
	ref, err := ctx.Reference(s.field)
	if err != nil {
		return nil, err
	}
	if !s.preserveNullAndEmptyArrays {
		return bson.D{{Key: "$unwind", Value: ref.String()}}, nil
	}
	return bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: ref.String()},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}, nil
}

// InheritsFields marks unwind as shape-preserving.
func (s *UnwindStage) InheritsFields() {}

// ---------------------------------------------------------------- $unionWith

// UnionWithStage appends another collection's documents to the stream. Its
// output shape is not statically known, so a strict pipeline containing one
// resolves fields best-effort instead of failing.
type UnionWithStage struct {
	coll     string
	pipeline []Stage
}

// UnionWith creates a $unionWith stage for the given collection.
func UnionWith(collection string) (*UnionWithStage, error) {
	if collection == "" {
		return nil, errors.New("aggregation: unionWith collection must not be empty")
	}
	return &UnionWithStage{coll: collection}, nil
}

// WithPipeline runs the given stages over the unioned collection.
func (s *UnionWithStage) WithPipeline(stages ...Stage) *UnionWithStage {
	next := &UnionWithStage{coll: s.coll, pipeline: make([]Stage, len(s.pipeline))}
	copy(next.pipeline, s.pipeline)
	next.pipeline = append(next.pipeline, stages...)
	return next
}

func (s *UnionWithStage) Operator() string { return "$unionWith" }

func (s *UnionWithStage) Render(ctx Context) (bson.D, error) {
	if len(s.pipeline) == 0 {
		return bson.D{{Key: "$unionWith", Value: bson.D{{Key: "coll", Value: s.coll}}}}, nil
	}
	rendered := make(bson.A, 0, len(s.pipeline))
	for _, st := range s.pipeline {
		doc, err := st.Render(ctx)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, doc)
	}
	return bson.D{{Key: "$unionWith", Value: bson.D{
		{Key: "coll", Value: s.coll},
		{Key: "pipeline", Value: rendered},
	}}}, nil
}

// DynamicallyShaped marks the stage's output shape as unknown ahead of time.
func (s *UnionWithStage) DynamicallyShaped() {}
