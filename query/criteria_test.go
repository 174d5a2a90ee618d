package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestCriteriaBareEquality(t *testing.T) {
	got := Where("status").Is("active").CriteriaObject()
	assert.Equal(t, bson.D{{Key: "status", Value: "active"}}, got)
}

func TestCriteriaOperators(t *testing.T) {
	tests := []struct {
		name string
		c    *Criteria
		want bson.D
	}{
		{
			name: "gte",
			c:    Where("age").Gte(21),
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 21}}}},
		},
		{
			name: "range on one key",
			c:    Where("age").Gte(21).Lt(65),
			want: bson.D{{Key: "age", Value: bson.D{
				{Key: "$gte", Value: 21},
				{Key: "$lt", Value: 65},
			}}},
		},
		{
			name: "in",
			c:    Where("state").In("NY", "CA"),
			want: bson.D{{Key: "state", Value: bson.D{{Key: "$in", Value: bson.A{"NY", "CA"}}}}},
		},
		{
			name: "exists",
			c:    Where("deletedAt").Exists(false),
			want: bson.D{{Key: "deletedAt", Value: bson.D{{Key: "$exists", Value: false}}}},
		},
		{
			name: "regex",
			c:    Where("name").Regex("^A"),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^A"}}}},
		},
		{
			name: "chained keys",
			c:    Where("a").Is(1).And("b").Gt(2),
			want: bson.D{
				{Key: "a", Value: 1},
				{Key: "b", Value: bson.D{{Key: "$gt", Value: 2}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.CriteriaObject())
		})
	}
}

// mixing Is with another operator on the same key forces the $eq form
func TestCriteriaMixedEqualityRendersEq(t *testing.T) {
	got := Where("a").Is(1).Ne(2).CriteriaObject()
	assert.Equal(t, bson.D{{Key: "a", Value: bson.D{
		{Key: "$eq", Value: 1},
		{Key: "$ne", Value: 2},
	}}}, got)
}

func TestCriteriaKeyWithoutPredicateContributesNothing(t *testing.T) {
	got := Where("a").CriteriaObject()
	assert.Empty(t, got)

	got = Where("a").And("b").Is(2).CriteriaObject()
	assert.Equal(t, bson.D{{Key: "b", Value: 2}}, got)
}

func TestCriteriaLogicalGroups(t *testing.T) {
	got := Where("state").Is("NY").
		OrOperator(Where("age").Lt(18), Where("age").Gt(65)).
		CriteriaObject()
	assert.Equal(t, bson.D{
		{Key: "state", Value: "NY"},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: 18}}}},
			bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 65}}}},
		}},
	}, got)
}

func TestQueryAccessors(t *testing.T) {
	q := New().
		AddCriteria(Where("a").Is(1)).
		WithSort(bson.D{{Key: "a", Value: -1}}).
		Limit(10).
		Skip(5)

	assert.Equal(t, bson.D{{Key: "a", Value: 1}}, q.QueryObject())
	assert.Equal(t, bson.D{{Key: "a", Value: -1}}, q.SortObject())
	assert.Equal(t, int64(10), q.GetLimit())
	assert.Equal(t, int64(5), q.GetSkip())
	assert.Nil(t, q.Collation())
}
