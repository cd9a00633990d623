package approval

import (
	"context"
	"time"

	"go-edu/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Transition is one compare-and-set state change of a request. FromLevel
// and FromStatus are the expected current state: if the stored request no
// longer matches, the write is rejected with ErrAlreadyDecided. This is
// what makes a decision at a level happen at most once under concurrent
// approvers.
type Transition struct {
	RequestID  primitive.ObjectID
	FromLevel  int
	FromStatus string

	ToLevel  int
	ToStatus string
	// ApproverInstitutionID is the resolved owner of the next level; nil
	// clears the field (terminal states, returns to the submitter).
	ApproverInstitutionID *primitive.ObjectID
	LevelEnteredAt        time.Time
	CompletedAt           *time.Time
	Deadline              *time.Time

	Action ApprovalAction
}

type ApprovalRepository interface {
	// CreateRequest inserts the request and its "submitted" history entry
	// in one transaction.
	CreateRequest(ctx context.Context, req *ApprovalRequest, action ApprovalAction) error
	FindByID(ctx context.Context, id string) (*ApprovalRequest, error)
	FindActiveByRef(ctx context.Context, approvableType, approvableID string) (*ApprovalRequest, error)
	// Transition applies a compare-and-set state change plus its history
	// entry atomically, returning the updated request.
	Transition(ctx context.Context, t Transition) (*ApprovalRequest, error)
	AddDelegation(ctx context.Context, requestID primitive.ObjectID, fromLevel int, d Delegation, action ApprovalAction) error
	ListRequests(ctx context.Context, filter bson.M, page, limit int64) ([]ApprovalRequest, error)
	// ListOpenEnteredBefore returns open requests whose current level was
	// entered before the cutoff; the sweeper narrows them further against
	// each workflow's own timeout.
	ListOpenEnteredBefore(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error)
	ListActions(ctx context.Context, requestID primitive.ObjectID) ([]ApprovalAction, error)
	Analytics(ctx context.Context, now time.Time) (*Analytics, error)
}

type ApprovalRepositoryImpl struct {
	mongodb    *database.MongodbDB
	Requests   *mongo.Collection
	Actions    *mongo.Collection
}

func NewApprovalRepository(mongodb *database.MongodbDB) ApprovalRepository {
	return &ApprovalRepositoryImpl{
		mongodb:  mongodb,
		Requests: mongodb.DB.Collection("approval_requests"),
		Actions:  mongodb.DB.Collection("approval_actions"),
	}
}

func (r *ApprovalRepositoryImpl) CreateRequest(ctx context.Context, req *ApprovalRequest, action ApprovalAction) error {
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	action.RequestID = req.ID
	if action.ID.IsZero() {
		action.ID = primitive.NewObjectID()
	}

	return r.mongodb.WithTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.Requests.InsertOne(sc, req); err != nil {
			return err
		}
		_, err := r.Actions.InsertOne(sc, action)
		return err
	})
}

func (r *ApprovalRepositoryImpl) FindByID(ctx context.Context, id string) (*ApprovalRequest, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	var req ApprovalRequest
	err = r.Requests.FindOne(ctx, bson.M{"_id": oid}).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *ApprovalRepositoryImpl) FindActiveByRef(ctx context.Context, approvableType, approvableID string) (*ApprovalRequest, error) {
	var req ApprovalRequest
	err := r.Requests.FindOne(ctx, bson.M{
		"approvable_type": approvableType,
		"approvable_id":   approvableID,
		"current_status":  bson.M{"$in": []string{StatusPending, StatusInProgress, StatusReturned}},
	}).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *ApprovalRepositoryImpl) Transition(ctx context.Context, t Transition) (*ApprovalRequest, error) {
	set := bson.M{
		"current_status":   t.ToStatus,
		"current_level":    t.ToLevel,
		"level_entered_at": t.LevelEnteredAt,
		"updated_at":       time.Now(),
	}
	unset := bson.M{}
	if t.ApproverInstitutionID != nil {
		set["current_approver_institution_id"] = *t.ApproverInstitutionID
	} else {
		unset["current_approver_institution_id"] = ""
	}
	if t.CompletedAt != nil {
		set["completed_at"] = *t.CompletedAt
	}
	if t.Deadline != nil {
		set["deadline"] = *t.Deadline
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	t.Action.RequestID = t.RequestID
	if t.Action.ID.IsZero() {
		t.Action.ID = primitive.NewObjectID()
	}

	var updated ApprovalRequest
	err := r.mongodb.WithTransaction(ctx, func(sc mongo.SessionContext) error {
		err := r.Requests.FindOneAndUpdate(sc,
			bson.M{
				"_id":            t.RequestID,
				"current_level":  t.FromLevel,
				"current_status": t.FromStatus,
			},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				// Lost the race: someone already moved the request past
				// the state this decision was made against.
				return ErrAlreadyDecided
			}
			return err
		}
		_, err = r.Actions.InsertOne(sc, t.Action)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *ApprovalRepositoryImpl) AddDelegation(ctx context.Context, requestID primitive.ObjectID, fromLevel int, d Delegation, action ApprovalAction) error {
	action.RequestID = requestID
	if action.ID.IsZero() {
		action.ID = primitive.NewObjectID()
	}

	return r.mongodb.WithTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.Requests.UpdateOne(sc,
			bson.M{
				"_id":            requestID,
				"current_level":  fromLevel,
				"current_status": bson.M{"$in": []string{StatusPending, StatusInProgress}},
			},
			bson.M{
				"$push": bson.M{"delegations": d},
				"$set":  bson.M{"updated_at": time.Now()},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrAlreadyDecided
		}
		_, err = r.Actions.InsertOne(sc, action)
		return err
	})
}

func (r *ApprovalRepositoryImpl) ListRequests(ctx context.Context, filter bson.M, page, limit int64) ([]ApprovalRequest, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.M{"submitted_at": -1}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.Requests.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	requests := []ApprovalRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *ApprovalRepositoryImpl) ListOpenEnteredBefore(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error) {
	cursor, err := r.Requests.Find(ctx, bson.M{
		"current_status":   bson.M{"$in": []string{StatusPending, StatusInProgress}},
		"level_entered_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	requests := []ApprovalRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *ApprovalRepositoryImpl) ListActions(ctx context.Context, requestID primitive.ObjectID) ([]ApprovalAction, error) {
	cursor, err := r.Actions.Find(ctx,
		bson.M{"request_id": requestID},
		options.Find().SetSort(bson.M{"occurred_at": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	actions := []ApprovalAction{}
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *ApprovalRepositoryImpl) Analytics(ctx context.Context, now time.Time) (*Analytics, error) {
	out := &Analytics{ByStatus: []StatusCount{}}

	cursor, err := r.Requests.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{"_id": "$current_status", "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &out.ByStatus); err != nil {
		return nil, err
	}
	for _, row := range out.ByStatus {
		if row.Status == StatusPending || row.Status == StatusInProgress {
			out.Open += row.Count
		}
	}

	out.Overdue, err = r.Requests.CountDocuments(ctx, bson.M{
		"current_status": bson.M{"$in": []string{StatusPending, StatusInProgress}},
		"deadline":       bson.M{"$lt": now},
	})
	if err != nil {
		return nil, err
	}

	durCursor, err := r.Requests.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"current_status": StatusApproved, "completed_at": bson.M{"$ne": nil}}}},
		bson.D{{Key: "$project", Value: bson.M{
			"duration_ms": bson.M{"$subtract": bson.A{"$completed_at", "$submitted_at"}},
		}}},
		bson.D{{Key: "$group", Value: bson.M{"_id": nil, "avg_ms": bson.M{"$avg": "$duration_ms"}}}},
	})
	if err != nil {
		return nil, err
	}
	var avg []struct {
		AvgMs float64 `bson:"avg_ms"`
	}
	if err := durCursor.All(ctx, &avg); err != nil {
		return nil, err
	}
	if len(avg) > 0 {
		out.AvgCompletionHours = avg[0].AvgMs / float64(time.Hour.Milliseconds())
	}
	return out, nil
}
