package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type taskDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description *string   `bson:"description,omitempty"`
	Completed   bool      `bson:"completed"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toTaskDocument(t *domain.Task) taskDocument {
	return taskDocument{
		ID:          t.ID.String(),
		UserID:      t.UserID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDocument) toDomain() (*domain.Task, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed task id %q: %w", d.ID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("malformed task owner %q: %w", d.UserID, err)
	}
	return &domain.Task{
		ID:          id,
		UserID:      userID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// Tasks implements repository.TaskStore on a MongoDB collection.
type Tasks struct {
	coll *mongo.Collection
}

var _ repository.TaskStore = (*Tasks)(nil)

// NewTasks creates a task store on coll.
func NewTasks(coll *mongo.Collection) *Tasks {
	return &Tasks{coll: coll}
}

func ownedBy(userID, id uuid.UUID) bson.M {
	return bson.M{"_id": id.String(), "user_id": userID.String()}
}

// Create inserts a new task.
func (s *Tasks) Create(ctx context.Context, task *domain.Task) error {
	if _, err := s.coll.InsertOne(ctx, toTaskDocument(task)); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

// Update replaces a task owned by task.UserID.
func (s *Tasks) Update(ctx context.Context, task *domain.Task) error {
	res, err := s.coll.ReplaceOne(ctx, ownedBy(task.UserID, task.ID), toTaskDocument(task))
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Delete removes a task owned by userID.
func (s *Tasks) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.coll.DeleteOne(ctx, ownedBy(userID, id))
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// GetByID retrieves a task owned by userID.
func (s *Tasks) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	var doc taskDocument
	err := s.coll.FindOne(ctx, ownedBy(userID, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.toDomain()
}

// List returns the user's tasks matching filter, newest first.
func (s *Tasks) List(ctx context.Context, userID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error) {
	query := bson.M{"user_id": userID.String()}
	if filter.Completed != nil {
		query["completed"] = *filter.Completed
	}
	if filter.Query != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}

	cur, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	defer cur.Close(ctx)

	tasks := []*domain.Task{}
	for cur.Next(ctx) {
		var doc taskDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo error: %w", err)
		}
		task, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return tasks, nil
}

// ToggleCompleted flips the completed flag with a pipeline update.
func (s *Tasks) ToggleCompleted(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "completed", Value: bson.D{{Key: "$not", Value: bson.A{"$completed"}}}},
			{Key: "updated_at", Value: time.Now()},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc taskDocument
	err := s.coll.FindOneAndUpdate(ctx, ownedBy(userID, id), update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.toDomain()
}

// DeleteByUserID removes every task owned by userID.
func (s *Tasks) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"user_id": userID.String()}); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}
