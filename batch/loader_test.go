package batch

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mangodm/mango/internal/util"
)

// fakeExecutor replays scripted replies and records every command it saw.
type fakeExecutor struct {
	replies []bson.M
	errs    []error
	calls   []bson.D
}

func (f *fakeExecutor) ExecuteCommand(_ context.Context, cmd bson.D) (bson.M, error) {
	i := len(f.calls)
	f.calls = append(f.calls, cmd)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.replies[i], nil
}

func aggregateCmd() bson.D {
	return bson.D{
		{Key: "aggregate", Value: "orders"},
		{Key: "pipeline", Value: bson.A{}},
		{Key: "cursor", Value: bson.D{}},
	}
}

func TestLoadSingleBatch(t *testing.T) {
	exec := &fakeExecutor{replies: []bson.M{
		{"cursor": bson.M{
			"id":         int64(0),
			"firstBatch": bson.A{bson.M{"x": 1}, bson.M{"x": 2}},
		}},
	}}
	loader := NewLoader(exec, 0, nil)

	docs, err := loader.Load(context.Background(), aggregateCmd())
	require.NoError(t, err)
	assert.Equal(t, bson.A{bson.M{"x": 1}, bson.M{"x": 2}}, docs)
	assert.Len(t, exec.calls, 1)
}

// A live cursor triggers exactly one getMore per remaining batch, and the
// batches land in arrival order.
func TestLoadFollowsCursor(t *testing.T) {
	exec := &fakeExecutor{replies: []bson.M{
		{"cursor": bson.M{
			"id":         int64(99),
			"firstBatch": bson.A{bson.M{"x": 1}},
		}},
		{"cursor": bson.M{
			"id":        int64(0),
			"nextBatch": bson.A{bson.M{"x": 2}, bson.M{"x": 3}},
		}},
	}}
	loader := NewLoader(exec, 50, util.NewLogger(true))

	docs, err := loader.Load(context.Background(), aggregateCmd())
	require.NoError(t, err)
	assert.Equal(t, bson.A{bson.M{"x": 1}, bson.M{"x": 2}, bson.M{"x": 3}}, docs)

	require.Len(t, exec.calls, 2)
	assert.Equal(t, bson.D{
		{Key: "getMore", Value: int64(99)},
		{Key: "collection", Value: "orders"},
		{Key: "batchSize", Value: int32(50)},
	}, exec.calls[1])
}

func TestLoadResultShortcut(t *testing.T) {
	exec := &fakeExecutor{replies: []bson.M{
		{"result": bson.A{bson.M{"x": 1}}},
	}}
	loader := NewLoader(exec, 10, nil)

	docs, err := loader.Load(context.Background(), aggregateCmd())
	require.NoError(t, err)
	assert.Equal(t, bson.A{bson.M{"x": 1}}, docs)
	assert.Len(t, exec.calls, 1, "no getMore for a complete result")
}

func TestLoadPropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	exec := &fakeExecutor{errs: []error{boom}}
	loader := NewLoader(exec, 10, nil)

	_, err := loader.Load(context.Background(), aggregateCmd())
	assert.ErrorIs(t, err, boom)
}

func TestLoadPropagatesGetMoreErrors(t *testing.T) {
	boom := errors.New("cursor gone")
	exec := &fakeExecutor{
		replies: []bson.M{
			{"cursor": bson.M{
				"id":         int64(7),
				"firstBatch": bson.A{},
			}},
			nil,
		},
		errs: []error{nil, boom},
	}
	loader := NewLoader(exec, 10, nil)

	_, err := loader.Load(context.Background(), aggregateCmd())
	assert.ErrorIs(t, err, boom)
}

func TestLoadRejectsMalformedReplies(t *testing.T) {
	exec := &fakeExecutor{replies: []bson.M{{"ok": 1}}}
	loader := NewLoader(exec, 10, nil)
	_, err := loader.Load(context.Background(), aggregateCmd())
	require.Error(t, err)

	exec = &fakeExecutor{replies: []bson.M{
		{"cursor": bson.M{"firstBatch": bson.A{}}},
	}}
	loader = NewLoader(exec, 10, nil)
	_, err = loader.Load(context.Background(), aggregateCmd())
	require.Error(t, err)
}

func TestLoadOmitsBatchSizeWhenUnset(t *testing.T) {
	exec := &fakeExecutor{replies: []bson.M{
		{"cursor": bson.M{
			"id":         int64(5),
			"firstBatch": bson.A{},
		}},
		{"cursor": bson.M{
			"id":        int64(0),
			"nextBatch": bson.A{},
		}},
	}}
	loader := NewLoader(exec, 0, nil)

	_, err := loader.Load(context.Background(), aggregateCmd())
	require.NoError(t, err)
	require.Len(t, exec.calls, 2)
	assert.Equal(t, bson.D{
		{Key: "getMore", Value: int64(5)},
		{Key: "collection", Value: "orders"},
	}, exec.calls[1])
}
