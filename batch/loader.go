// Package batch drains server-side aggregation cursors into a single
// result slice, following the getMore protocol for commands whose output
// exceeds one batch.
package batch

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// Executor runs a raw database command and returns its reply document.
type Executor interface {
	ExecuteCommand(ctx context.Context, cmd bson.D) (bson.M, error)
}

// Loader issues an aggregate command and follows its cursor until the
// server reports exhaustion. Batches are fetched strictly one after the
// other and documents keep their arrival order.
type Loader struct {
	exec      Executor
	batchSize int32
	log       *zap.Logger
}

// NewLoader creates a loader fetching batchSize documents per round trip.
// A non-positive batchSize leaves the server default in place.
func NewLoader(exec Executor, batchSize int32, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{exec: exec, batchSize: batchSize, log: log}
}

// Load runs cmd and returns every result document. Replies carrying a
// plain "result" array are returned as-is; replies carrying a cursor are
// drained with getMore until the cursor id reaches zero. Transport errors
// propagate unchanged.
func (l *Loader) Load(ctx context.Context, cmd bson.D) (bson.A, error) {
	reply, err := l.exec.ExecuteCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if result, ok := reply["result"]; ok {
		docs, err := asArray(result)
		if err != nil {
			return nil, errors.Wrap(err, "batch: result field")
		}
		return docs, nil
	}

	collection, err := commandCollection(cmd)
	if err != nil {
		return nil, err
	}
	id, docs, err := readCursor(reply, "firstBatch")
	if err != nil {
		return nil, err
	}
	results := docs
	for id != 0 {
		l.log.Debug("fetching next batch", zap.Int64("cursor", id), zap.String("collection", collection))
		more := bson.D{
			{Key: "getMore", Value: id},
			{Key: "collection", Value: collection},
		}
		if l.batchSize > 0 {
			more = append(more, bson.E{Key: "batchSize", Value: l.batchSize})
		}
		reply, err = l.exec.ExecuteCommand(ctx, more)
		if err != nil {
			return nil, err
		}
		id, docs, err = readCursor(reply, "nextBatch")
		if err != nil {
			return nil, err
		}
		results = append(results, docs...)
	}
	return results, nil
}

func commandCollection(cmd bson.D) (string, error) {
	for _, e := range cmd {
		if e.Key == "aggregate" {
			if name, ok := e.Value.(string); ok && name != "" {
				return name, nil
			}
			return "", errors.New("batch: aggregate command names no collection")
		}
	}
	return "", errors.New("batch: command carries no aggregate key")
}

func readCursor(reply bson.M, batchKey string) (int64, bson.A, error) {
	raw, ok := reply["cursor"]
	if !ok {
		return 0, nil, errors.New("batch: reply carries neither result nor cursor")
	}
	cursor, err := asDocument(raw)
	if err != nil {
		return 0, nil, errors.Wrap(err, "batch: cursor field")
	}
	id, err := cursorID(cursor["id"])
	if err != nil {
		return 0, nil, err
	}
	batch := bson.A{}
	if raw, ok := cursor[batchKey]; ok {
		batch, err = asArray(raw)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "batch: %s field", batchKey)
		}
	}
	return id, batch, nil
}

func cursorID(v any) (int64, error) {
	switch id := v.(type) {
	case int64:
		return id, nil
	case int32:
		return int64(id), nil
	case int:
		return int64(id), nil
	case nil:
		return 0, errors.New("batch: cursor document carries no id")
	default:
		return 0, errors.Errorf("batch: unexpected cursor id type %T", v)
	}
}

func asDocument(v any) (bson.M, error) {
	switch doc := v.(type) {
	case bson.M:
		return doc, nil
	case bson.D:
		m := make(bson.M, len(doc))
		for _, e := range doc {
			m[e.Key] = e.Value
		}
		return m, nil
	default:
		return nil, errors.Errorf("unexpected document type %T", v)
	}
}

func asArray(v any) (bson.A, error) {
	switch arr := v.(type) {
	case bson.A:
		return append(bson.A{}, arr...), nil
	case []any:
		return append(bson.A{}, arr...), nil
	default:
		return nil, errors.Errorf("unexpected array type %T", v)
	}
}

// DatabaseExecutor adapts a live database handle to the Executor interface.
type DatabaseExecutor struct {
	db *mongo.Database
}

// NewDatabaseExecutor wraps db for command execution.
func NewDatabaseExecutor(db *mongo.Database) *DatabaseExecutor {
	return &DatabaseExecutor{db: db}
}

// ExecuteCommand runs cmd against the wrapped database.
func (e *DatabaseExecutor) ExecuteCommand(ctx context.Context, cmd bson.D) (bson.M, error) {
	var reply bson.M
	if err := e.db.RunCommand(ctx, cmd).Decode(&reply); err != nil {
		return nil, errors.Wrap(err, "batch: run command")
	}
	return reply, nil
}
