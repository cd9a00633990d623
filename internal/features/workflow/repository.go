package workflow

import (
	"context"
	"time"

	"go-edu/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type WorkflowRepository interface {
	Create(ctx context.Context, def *WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*WorkflowDefinition, error)
	GetActiveByType(ctx context.Context, workflowType string) (*WorkflowDefinition, error)
	List(ctx context.Context, includeSuperseded bool) ([]WorkflowDefinition, error)
	MarkSuperseded(ctx context.Context, id primitive.ObjectID, successor primitive.ObjectID) error
}

type WorkflowRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewWorkflowRepository(mongodb *database.MongodbDB) WorkflowRepository {
	return &WorkflowRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_definitions"),
	}
}

func (r *WorkflowRepositoryImpl) Create(ctx context.Context, def *WorkflowDefinition) error {
	if def.ID.IsZero() {
		def.ID = primitive.NewObjectID()
	}
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	_, err := r.Collection.InsertOne(ctx, def)
	return err
}

func (r *WorkflowRepositoryImpl) GetByID(ctx context.Context, id string) (*WorkflowDefinition, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrWorkflowNotFound
	}

	var def WorkflowDefinition
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&def)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	return &def, nil
}

func (r *WorkflowRepositoryImpl) GetActiveByType(ctx context.Context, workflowType string) (*WorkflowDefinition, error) {
	opts := options.FindOne().SetSort(bson.M{"version": -1})

	var def WorkflowDefinition
	err := r.Collection.FindOne(ctx, bson.M{"workflow_type": workflowType, "status": StatusActive}, opts).Decode(&def)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	return &def, nil
}

func (r *WorkflowRepositoryImpl) List(ctx context.Context, includeSuperseded bool) ([]WorkflowDefinition, error) {
	filter := bson.M{}
	if !includeSuperseded {
		filter["status"] = StatusActive
	}

	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var defs []WorkflowDefinition
	if err = cursor.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *WorkflowRepositoryImpl) MarkSuperseded(ctx context.Context, id primitive.ObjectID, successor primitive.ObjectID) error {
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":        StatusSuperseded,
			"superseded_by": successor,
			"updated_at":    time.Now(),
		},
	})
	return err
}
