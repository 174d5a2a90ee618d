package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mangodm/mango/mapping"
	"github.com/mangodm/mango/query"
)

// countField is the output field name of the count fast path.
const countField = "totalEntityCount"

// CreateContext picks the rendering context for an aggregation. Untyped
// pipelines and ModeNone get the pass-through context. Strict mapping is
// downgraded to relaxed when the pipeline contains a dynamically shaped
// stage, since documents from a foreign collection cannot be resolved
// against the input type.
func CreateContext(agg *Aggregation, mc *mapping.Context) (Context, error) {
	if agg.DomainType() == nil || agg.Options().DomainTypeMapping == ModeNone {
		return DefaultContext, nil
	}
	entity, err := mc.Entity(agg.DomainType())
	if err != nil {
		return nil, errors.Wrap(err, "aggregation: domain type metadata")
	}
	mode := agg.Options().DomainTypeMapping
	if mode == ModeStrict && agg.ContainsDynamicallyShaped() {
		mode = ModeRelaxed
	}
	if mode == ModeStrict {
		return NewTypeContext(mc, entity), nil
	}
	return NewRelaxedTypeContext(mc, entity), nil
}

// BuildCommand renders the aggregation into a runnable database command.
// With the pass-through context the rendered pipeline additionally goes
// through the query mapper, so raw criteria written against Go field names
// still end up with wire names. Typed contexts already mapped during
// rendering and skip that pass.
func BuildCommand(collection string, agg *Aggregation, ctx Context, mc *mapping.Context) (bson.D, error) {
	if collection == "" {
		return nil, errors.New("aggregation: collection must not be empty")
	}
	if ctx == nil {
		ctx = DefaultContext
	}
	pipeline, err := agg.ToPipeline(ctx)
	if err != nil {
		return nil, err
	}
	if ctx == DefaultContext && agg.DomainType() != nil && mc != nil {
		entity, err := mc.Entity(agg.DomainType())
		if err != nil {
			return nil, errors.Wrap(err, "aggregation: domain type metadata")
		}
		mapper := mapping.NewQueryMapper(mc)
		for i, stage := range pipeline {
			pipeline[i] = mapper.MapDocument(stage, entity)
		}
	}

	stages := make(bson.A, len(pipeline))
	for i, stage := range pipeline {
		stages[i] = stage
	}
	cmd := bson.D{
		{Key: "aggregate", Value: collection},
		{Key: "pipeline", Value: stages},
	}
	opts := agg.Options()
	if opts.Explain {
		cmd = append(cmd, bson.E{Key: "explain", Value: true})
	}
	if opts.Collation != nil {
		cmd = append(cmd, bson.E{Key: "collation", Value: collationDocument(opts.Collation)})
	}
	cursor := bson.D{}
	if opts.CursorBatchSize > 0 {
		cursor = append(cursor, bson.E{Key: "batchSize", Value: opts.CursorBatchSize})
	}
	cmd = append(cmd, bson.E{Key: "cursor", Value: cursor})
	return cmd, nil
}

// CountAggregation builds the two-stage count fast path for a query: an
// optional $match followed by {$count: "totalEntityCount"}. The query's
// collation is carried onto the aggregation options.
func CountAggregation(q *query.Query, domainType any) (*Aggregation, error) {
	count, err := Count(countField)
	if err != nil {
		return nil, err
	}
	stages := []Stage{}
	if criteria := q.QueryObject(); len(criteria) > 0 {
		match, err := MatchDocument(criteria)
		if err != nil {
			return nil, err
		}
		stages = append(stages, match)
	}
	stages = append(stages, count)

	var agg *Aggregation
	if domainType != nil {
		agg, err = NewTypedAggregation(domainType, stages...)
	} else {
		agg, err = NewAggregation(stages...)
	}
	if err != nil {
		return nil, err
	}
	if c := q.Collation(); c != nil {
		agg = agg.WithOptions(agg.Options().WithCollation(c))
	}
	return agg, nil
}

// CountFieldName returns the alias the count fast path writes its total to.
func CountFieldName() string { return countField }

func collationDocument(c *options.Collation) bson.D {
	doc := bson.D{{Key: "locale", Value: c.Locale}}
	if c.CaseLevel {
		doc = append(doc, bson.E{Key: "caseLevel", Value: true})
	}
	if c.CaseFirst != "" {
		doc = append(doc, bson.E{Key: "caseFirst", Value: c.CaseFirst})
	}
	if c.Strength != 0 {
		doc = append(doc, bson.E{Key: "strength", Value: c.Strength})
	}
	if c.NumericOrdering {
		doc = append(doc, bson.E{Key: "numericOrdering", Value: true})
	}
	if c.Alternate != "" {
		doc = append(doc, bson.E{Key: "alternate", Value: c.Alternate})
	}
	if c.MaxVariable != "" {
		doc = append(doc, bson.E{Key: "maxVariable", Value: c.MaxVariable})
	}
	if c.Normalization {
		doc = append(doc, bson.E{Key: "normalization", Value: true})
	}
	if c.Backwards {
		doc = append(doc, bson.E{Key: "backwards", Value: true})
	}
	return doc
}
