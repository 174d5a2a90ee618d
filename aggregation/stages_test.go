package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mangodm/mango/query"
)

func TestMatchRendersCriteria(t *testing.T) {
	match, err := Match(query.Where("status").Is("active").And("age").Gte(21))
	require.NoError(t, err)
	doc, err := match.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "status", Value: "active"},
		{Key: "age", Value: bson.D{{Key: "$gte", Value: 21}}},
	}}}, doc)
}

func TestMatchRejectsNilCriteria(t *testing.T) {
	_, err := Match(nil)
	require.Error(t, err)
	_, err = MatchDocument(nil)
	require.Error(t, err)
}

func TestProjectRender(t *testing.T) {
	stage := Project("name", "score").
		AndExclude("_id").
		AndExpression("doubled", Multiply(NewField("score"), 2))
	doc, err := stage.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "name", Value: 1},
		{Key: "score", Value: 1},
		{Key: "_id", Value: 0},
		{Key: "doubled", Value: bson.D{{Key: "$multiply", Value: bson.A{"$score", 2}}}},
	}}}, doc)
}

func TestProjectExposesIncludedAndAliased(t *testing.T) {
	stage := Project("name").AndExclude("_id").AndExpression("total", CountAll())
	fields := stage.Fields()

	_, ok := fields.FieldByName("name")
	assert.True(t, ok)
	_, ok = fields.FieldByName("total")
	assert.True(t, ok)
	_, ok = fields.FieldByName("_id")
	assert.False(t, ok)
}

func TestProjectRejectsDuplicateName(t *testing.T) {
	assert.Panics(t, func() { Project("name", "name") })
	assert.Panics(t, func() { Project("name").AndExpression("name", CountAll()) })
}

func TestSortRenderPreservesKeyOrder(t *testing.T) {
	stage := Sort(Descending, "score").And(Ascending, "name")
	doc, err := stage.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{
		{Key: "score", Value: -1},
		{Key: "name", Value: 1},
	}}}, doc)
}

func TestSkipLimitValidation(t *testing.T) {
	_, err := Skip(-1)
	require.Error(t, err)

	skip, err := Skip(0)
	require.NoError(t, err)
	doc, err := skip.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$skip", Value: int64(0)}}, doc)

	_, err = Limit(0)
	require.Error(t, err)
	_, err = Limit(-3)
	require.Error(t, err)

	limit, err := Limit(25)
	require.NoError(t, err)
	doc, err = limit.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(25)}}, doc)
}

func TestCountRender(t *testing.T) {
	count, err := Count("total")
	require.NoError(t, err)
	doc, err := count.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$count", Value: "total"}}, doc)
}

func TestCountRejectsEmptyFieldName(t *testing.T) {
	_, err := Count("")
	require.Error(t, err)
}

func TestCountExposesSingleSyntheticField(t *testing.T) {
	count, err := Count("total")
	require.NoError(t, err)
	fields := count.Fields()
	assert.True(t, fields.ExposesSingleFieldOnly())
	f, ok := fields.FieldByName("total")
	require.True(t, ok)
	assert.Equal(t, "total", f.Target())
}

func TestUnwindRender(t *testing.T) {
	unwind, err := Unwind("items")
	require.NoError(t, err)
	doc, err := unwind.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unwind", Value: "$items"}}, doc)

	doc, err = unwind.PreserveNullAndEmptyArrays().Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$items"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}, doc)
}

func TestUnionWithRender(t *testing.T) {
	union, err := UnionWith("archive")
	require.NoError(t, err)
	doc, err := union.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unionWith", Value: bson.D{{Key: "coll", Value: "archive"}}}}, doc)

	match, err := Match(query.Where("year").Lt(2020))
	require.NoError(t, err)
	doc, err = union.WithPipeline(match).Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unionWith", Value: bson.D{
		{Key: "coll", Value: "archive"},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "year", Value: bson.D{{Key: "$lt", Value: 2020}}}}}},
		}},
	}}}, doc)
}

func TestUnionWithRejectsEmptyCollection(t *testing.T) {
	_, err := UnionWith("")
	require.Error(t, err)
}
