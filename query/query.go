package query

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Query is a minimal read description: a filter plus the options a count or
// find fast path needs. It deliberately knows nothing about pipelines.
type Query struct {
	criteria  []CriteriaDefinition
	sort      bson.D
	collation *options.Collation
	limit     int64
	skip      int64
}

// New creates an empty query.
func New() *Query { return &Query{} }

// AddCriteria appends a criteria definition to the filter.
func (q *Query) AddCriteria(c CriteriaDefinition) *Query {
	q.criteria = append(q.criteria, c)
	return q
}

// WithSort sets the sort document (ordered keys, 1/-1 values).
func (q *Query) WithSort(sort bson.D) *Query {
	q.sort = sort
	return q
}

// WithCollation sets the collation.
func (q *Query) WithCollation(c *options.Collation) *Query {
	q.collation = c
	return q
}

// Limit caps the number of returned documents.
func (q *Query) Limit(n int64) *Query {
	q.limit = n
	return q
}

// Skip skips the first n documents.
func (q *Query) Skip(n int64) *Query {
	q.skip = n
	return q
}

// QueryObject merges all criteria into one filter document.
func (q *Query) QueryObject() bson.D {
	doc := bson.D{}
	for _, c := range q.criteria {
		doc = append(doc, c.CriteriaObject()...)
	}
	return doc
}

// SortObject returns the sort document.
func (q *Query) SortObject() bson.D { return q.sort }

// Collation returns the collation, nil when unset.
func (q *Query) Collation() *options.Collation { return q.collation }

// GetLimit returns the limit, zero when unset.
func (q *Query) GetLimit() int64 { return q.limit }

// GetSkip returns the skip, zero when unset.
func (q *Query) GetSkip() int64 { return q.skip }
