package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/mson"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type flowMongoRepo struct {
	coll *mongo.Collection
}

// NewMongoFlowRepository stores one document per flow in coll; works and
// tasks are embedded.
func NewMongoFlowRepository(coll *mongo.Collection) FlowRepository {
	return &flowMongoRepo{coll: coll}
}

func (r *flowMongoRepo) Insert(ctx context.Context, rec *domain.FlowRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("insert flow: empty id")
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("flow %s: %w", rec.ID, persistence.ErrAlreadyExists)
		}
		return fmt.Errorf("mongo insert flow: %w", err)
	}
	return nil
}

func (r *flowMongoRepo) Get(ctx context.Context, id string) (*domain.FlowRecord, error) {
	var rec domain.FlowRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("flow %s: %w", id, persistence.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find flow: %w", err)
	}
	normalizeFlow(&rec)
	return &rec, nil
}

func (r *flowMongoRepo) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo delete flow: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("flow %s: %w", id, persistence.ErrNotFound)
	}
	return nil
}

func (r *flowMongoRepo) List(ctx context.Context) ([]*domain.FlowRecord, error) {
	return r.find(ctx, bson.M{})
}

func (r *flowMongoRepo) FindByStatus(ctx context.Context, status string) ([]*domain.FlowRecord, error) {
	return r.find(ctx, bson.M{"status": status})
}

func (r *flowMongoRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo aggregate status: %w", err)
	}
	var rows []struct {
		Status string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongo decode status counts: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *flowMongoRepo) find(ctx context.Context, filter bson.M) ([]*domain.FlowRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find flows: %w", err)
	}
	out := []*domain.FlowRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo decode flows: %w", err)
	}
	for _, rec := range out {
		normalizeFlow(rec)
	}
	return out, nil
}

// normalizeFlow rewrites driver container types in free-form fields to plain
// maps and slices so records look the same whatever backend produced them.
func normalizeFlow(rec *domain.FlowRecord) {
	for i := range rec.Works {
		for j := range rec.Works[i].Tasks {
			t := &rec.Works[i].Tasks[j]
			t.Input = plainMap(t.Input)
			t.Report = plainMap(t.Report)
			if t.Results != nil {
				t.Results.InitialStructure = mson.Dict(plainMap(t.Results.InitialStructure))
				t.Results.FinalStructure = plainMap(t.Results.FinalStructure)
			}
		}
	}
}

func plainMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case primitive.M:
		return plainMap(x)
	case map[string]any:
		return plainMap(x)
	case primitive.D:
		return plainMap(x.Map())
	case primitive.A:
		return plainSlice(x)
	case []any:
		return plainSlice(x)
	case int32:
		return int64(x)
	default:
		return v
	}
}

func plainSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = plain(v)
	}
	return out
}
