package institution

import (
	"context"
	"time"

	"go-edu/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type InstitutionRepository interface {
	Create(ctx context.Context, inst *Institution) error
	FindByID(ctx context.Context, id string) (*Institution, error)
	FindByUtisCode(ctx context.Context, code string) (*Institution, error)
	ListAll(ctx context.Context) ([]Institution, error)
	ListByLevel(ctx context.Context, level int, includeInactive bool) ([]Institution, error)
	Update(ctx context.Context, inst *Institution) error
	SetActive(ctx context.Context, id string, active bool) error
	// MoveSubtree atomically re-parents a node and rewrites the level of
	// every listed descendant in one transaction, so readers never observe
	// a half-re-leveled subtree.
	MoveSubtree(ctx context.Context, nodeID primitive.ObjectID, newParentID *primitive.ObjectID, levels map[primitive.ObjectID]int) error
}

type InstitutionRepositoryImpl struct {
	mongodb    *database.MongodbDB
	Collection *mongo.Collection
}

func NewInstitutionRepository(mongodb *database.MongodbDB) InstitutionRepository {
	return &InstitutionRepositoryImpl{
		mongodb:    mongodb,
		Collection: mongodb.DB.Collection("institutions"),
	}
}

func (r *InstitutionRepositoryImpl) Create(ctx context.Context, inst *Institution) error {
	if inst.ID.IsZero() {
		inst.ID = primitive.NewObjectID()
	}
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	_, err := r.Collection.InsertOne(ctx, inst)
	return err
}

func (r *InstitutionRepositoryImpl) FindByID(ctx context.Context, id string) (*Institution, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNodeNotFound
	}

	var inst Institution
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&inst)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *InstitutionRepositoryImpl) FindByUtisCode(ctx context.Context, code string) (*Institution, error) {
	var inst Institution
	err := r.Collection.FindOne(ctx, bson.M{"utis_code": code}).Decode(&inst)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// ListAll returns every node including inactive ones. Tree traversal always
// works on the full structure; visibility filtering happens in the arena.
func (r *InstitutionRepositoryImpl) ListAll(ctx context.Context) ([]Institution, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var institutions []Institution
	if err = cursor.All(ctx, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

func (r *InstitutionRepositoryImpl) ListByLevel(ctx context.Context, level int, includeInactive bool) ([]Institution, error) {
	filter := bson.M{"level": level}
	if !includeInactive {
		filter["is_active"] = true
	}

	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var institutions []Institution
	if err = cursor.All(ctx, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

func (r *InstitutionRepositoryImpl) Update(ctx context.Context, inst *Institution) error {
	inst.UpdatedAt = time.Now()
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": inst.ID}, bson.M{"$set": inst})
	return err
}

// SetActive soft-(de)activates a node. Nodes with approval history are never
// hard-deleted; routing simply stops seeing them.
func (r *InstitutionRepositoryImpl) SetActive(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNodeNotFound
	}

	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (r *InstitutionRepositoryImpl) MoveSubtree(ctx context.Context, nodeID primitive.ObjectID, newParentID *primitive.ObjectID, levels map[primitive.ObjectID]int) error {
	return r.mongodb.WithTransaction(ctx, func(sc mongo.SessionContext) error {
		now := time.Now()

		parentSet := bson.M{"parent_id": newParentID, "updated_at": now}
		if newParentID == nil {
			// Unset rather than store an explicit null for roots.
			if _, err := r.Collection.UpdateOne(sc, bson.M{"_id": nodeID}, bson.M{
				"$unset": bson.M{"parent_id": ""},
				"$set":   bson.M{"updated_at": now},
			}); err != nil {
				return err
			}
		} else {
			if _, err := r.Collection.UpdateOne(sc, bson.M{"_id": nodeID}, bson.M{"$set": parentSet}); err != nil {
				return err
			}
		}

		models := make([]mongo.WriteModel, 0, len(levels))
		for id, level := range levels {
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": id}).
				SetUpdate(bson.M{"$set": bson.M{"level": level, "updated_at": now}}))
		}
		if len(models) == 0 {
			return nil
		}
		_, err := r.Collection.BulkWrite(sc, models)
		return err
	})
}
