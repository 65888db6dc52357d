package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/access-control/internal/domain"
)

const usersCollection = "users"

type mongoUser struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Role         string    `bson:"role"`
	Active       bool      `bson:"active"`
	CardUID      *string   `bson:"cardUid,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (m mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Active:       m.Active,
		CardUID:      m.CardUID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository returns a MongoDB-backed implementation.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureUserIndexes creates the unique indexes the repository relies on.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "cardUid", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"cardUid": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	doc := mongoUser{
		ID:           uuid.NewString(),
		Username:     user.Username,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		Active:       user.Active,
		CardUID:      user.CardUID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}
	user.ID = doc.ID
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := r.findOne(ctx, bson.M{"username": identifier})
	if !errors.Is(err, ErrNotFound) {
		return user, err
	}
	// Emails are stored lowercased.
	return r.findOne(ctx, bson.M{"email": strings.ToLower(identifier)})
}

func (r *mongoUserRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := bson.M{}
	if filter.Role != nil {
		query["role"] = string(*filter.Role)
	}
	if filter.Active != nil {
		query["active"] = *filter.Active
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetLimit(int64(filter.limit())).
		SetSkip(int64(filter.offset()))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoUser
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, *doc.toDomain())
	}
	return users, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc mongoUser
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}
