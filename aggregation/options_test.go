package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mangodm/mango/query"
)

func TestOptionsDefaults(t *testing.T) {
	o := NewOptions()
	assert.False(t, o.Explain)
	assert.Zero(t, o.CursorBatchSize)
	assert.Nil(t, o.Collation)
	assert.Equal(t, ModeRelaxed, o.DomainTypeMapping)
}

func TestOptionsBuilderIsImmutable(t *testing.T) {
	base := NewOptions()
	tuned := base.WithExplain().WithCursorBatchSize(64).WithDomainTypeMapping(ModeStrict)

	assert.False(t, base.Explain)
	assert.True(t, tuned.Explain)
	assert.Equal(t, int32(64), tuned.CursorBatchSize)
	assert.Equal(t, ModeStrict, tuned.DomainTypeMapping)
}

func TestOptionsFromMap(t *testing.T) {
	o, err := OptionsFromMap(map[string]any{
		"explain":             true,
		"cursor_batch_size":   "200", // weakly typed on purpose
		"domain_type_mapping": "strict",
	})
	require.NoError(t, err)
	assert.True(t, o.Explain)
	assert.Equal(t, int32(200), o.CursorBatchSize)
	assert.Equal(t, ModeStrict, o.DomainTypeMapping)
}

func TestOptionsFromMapDefaultsMode(t *testing.T) {
	o, err := OptionsFromMap(map[string]any{"explain": false})
	require.NoError(t, err)
	assert.Equal(t, ModeRelaxed, o.DomainTypeMapping)
}

func TestOptionsFromMapRejectsUnknownMode(t *testing.T) {
	_, err := OptionsFromMap(map[string]any{"domain_type_mapping": "maybe"})
	require.Error(t, err)
}

func TestBuildCommandCarriesCollationAndExplain(t *testing.T) {
	match, err := Match(query.Where("name").Is("x"))
	require.NoError(t, err)
	agg, err := NewAggregation(match)
	require.NoError(t, err)
	agg = agg.WithOptions(NewOptions().
		WithExplain().
		WithCollation(&options.Collation{Locale: "en", Strength: 2}))

	cmd, err := BuildCommand("orders", agg, DefaultContext, nil)
	require.NoError(t, err)

	var explain, collation any
	for _, e := range cmd {
		switch e.Key {
		case "explain":
			explain = e.Value
		case "collation":
			collation = e.Value
		}
	}
	assert.Equal(t, true, explain)
	assert.Equal(t, bson.D{
		{Key: "locale", Value: "en"},
		{Key: "strength", Value: 2},
	}, collation)
}
