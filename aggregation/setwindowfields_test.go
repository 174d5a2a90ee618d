package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mangodm/mango/mapping"
)

type cakeSale struct {
	State      string `bson:"state"`
	OrderDate  string `bson:"orderDate"`
	Quantity   int    `bson:"qty"`
	TotalValue int    `bson:"total"`
}

func TestSetWindowFieldsDocumentsWindow(t *testing.T) {
	stage, err := SetWindowFields().
		PartitionByField("state").
		SortBy(Sort(Ascending, "orderDate")).
		Output(NewComputedField("cumulative", ValueOf("qty").Sum()).
			WithWindow(Documents("unbounded", "current")))
	require.NoError(t, err)

	doc, err := stage.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$setWindowFields", Value: bson.D{
		{Key: "partitionBy", Value: "$state"},
		{Key: "sortBy", Value: bson.D{{Key: "orderDate", Value: 1}}},
		{Key: "output", Value: bson.D{
			{Key: "cumulative", Value: bson.D{
				{Key: "$sum", Value: "$qty"},
				{Key: "window", Value: bson.D{
					{Key: "documents", Value: bson.A{"unbounded", "current"}},
				}},
			}},
		}},
	}}}, doc)
}

func TestSetWindowFieldsRangeWindowWithUnit(t *testing.T) {
	stage, err := SetWindowFields().
		Output(NewComputedField("recent", ValueOf("total").Avg()).
			WithWindow(Range(-1, 0).Unit(UnitDay)))
	require.NoError(t, err)

	doc, err := stage.Render(DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$setWindowFields", Value: bson.D{
		{Key: "output", Value: bson.D{
			{Key: "recent", Value: bson.D{
				{Key: "$avg", Value: "$total"},
				{Key: "window", Value: bson.D{
					{Key: "range", Value: bson.A{-1, 0}},
					{Key: "unit", Value: "day"},
				}},
			}},
		}},
	}}}, doc)
}

func TestWindowBuilderRoundTrip(t *testing.T) {
	w := Documents(0, 0).FromUnbounded().ToCurrent()
	assert.Equal(t, bson.D{
		{Key: "documents", Value: bson.A{"unbounded", "current"}},
	}, w.render())

	r := Range(0, 0).FromCurrent().To(7).Unit(UnitWeek)
	assert.Equal(t, bson.D{
		{Key: "range", Value: bson.A{"current", 7}},
		{Key: "unit", Value: "week"},
	}, r.render())
}

func TestWindowDefaultUnitIsSuppressed(t *testing.T) {
	w := Range(-5, 5)
	assert.Equal(t, bson.D{{Key: "range", Value: bson.A{-5, 5}}}, w.render())
}

func TestSetWindowFieldsOutputValidation(t *testing.T) {
	_, err := SetWindowFields().Output(NewComputedField("", CountAll()))
	require.Error(t, err)
	_, err = SetWindowFields().Output(NewComputedField("x", nil))
	require.Error(t, err)

	stage, err := SetWindowFields().Output(NewComputedField("total", CountAll()))
	require.NoError(t, err)
	_, err = stage.Output(NewComputedField("total", CountAll()))
	require.Error(t, err, "duplicate output alias")
}

// Field names written against the Go struct resolve to their wire names
// when the stage renders with a type-bound context.
func TestSetWindowFieldsTypedRename(t *testing.T) {
	mc, err := mapping.NewContext()
	require.NoError(t, err)
	entity, err := mc.Entity(cakeSale{})
	require.NoError(t, err)
	ctx := NewRelaxedTypeContext(mc, entity)

	stage, err := SetWindowFields().
		PartitionByField("State").
		SortBy(Sort(Ascending, "OrderDate")).
		Output(NewComputedField("cumulative", ValueOf("Quantity").Sum()).
			WithWindow(DocumentsUnboundedToCurrent()))
	require.NoError(t, err)

	doc, err := stage.Render(ctx)
	require.NoError(t, err)
	inner := doc[0].Value.(bson.D)
	assert.Equal(t, bson.E{Key: "partitionBy", Value: "$state"}, inner[0])
	assert.Equal(t, bson.E{Key: "sortBy", Value: bson.D{{Key: "orderDate", Value: 1}}}, inner[1])
	output := inner[2].Value.(bson.D)
	assert.Equal(t, bson.D{
		{Key: "$sum", Value: "$qty"},
		{Key: "window", Value: bson.D{{Key: "documents", Value: bson.A{"unbounded", "current"}}}},
	}, output[0].Value)
}
