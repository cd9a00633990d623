package sync

import (
	"context"

	"go-edu/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SyncLogRepository interface {
	Create(ctx context.Context, log *SyncLog) error
	Update(ctx context.Context, log *SyncLog) error
	List(ctx context.Context, limit int64) ([]SyncLog, error)
}

type SyncLogRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewSyncLogRepository(mongodb *database.MongodbDB) SyncLogRepository {
	return &SyncLogRepositoryImpl{
		Collection: mongodb.DB.Collection("sync_logs"),
	}
}

func (r *SyncLogRepositoryImpl) Create(ctx context.Context, log *SyncLog) error {
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *SyncLogRepositoryImpl) Update(ctx context.Context, log *SyncLog) error {
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": log.ID}, log)
	return err
}

func (r *SyncLogRepositoryImpl) List(ctx context.Context, limit int64) ([]SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	cursor, err := r.Collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"start_time": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []SyncLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
