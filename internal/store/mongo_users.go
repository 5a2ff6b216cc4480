package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"noisewatch/internal/database"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepository implements UserRepository on MongoDB
type MongoUserRepository struct {
	users   *mongo.Collection
	reports *mongo.Collection
	logger  *observability.Logger
}

var _ UserRepository = (*MongoUserRepository)(nil)

// NewMongoUserRepository creates a user repository over db
func NewMongoUserRepository(db *mongo.Database, logger *observability.Logger) *MongoUserRepository {
	return &MongoUserRepository{
		users:   db.Collection(database.UsersCollection),
		reports: db.Collection(database.ReportsCollection),
		logger:  logger,
	}
}

// Create inserts a new user. The unique email index turns a taken email into ErrRecordExists.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, finish := mongoSpan(ctx, "create_user", observability.AttributeUserID(user.ID))
	defer finish(&err)

	if _, err = r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return contextutils.WrapErrorf(contextutils.ErrRecordExists, "email %s is already registered", user.Email)
		}
		return contextutils.WrapError(err, "failed to insert user")
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", what)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user")
	}
	return &user, nil
}

// GetByID returns a user by id
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (result *models.User, err error) {
	ctx, finish := mongoSpan(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer finish(&err)

	return r.findOne(ctx, bson.M{"_id": id}, id)
}

// GetByEmail returns a user by lower-cased email
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (result *models.User, err error) {
	ctx, finish := mongoSpan(ctx, "get_user_by_email")
	defer finish(&err)

	email = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, bson.M{"email": email}, email)
}

// List returns users newest first
func (r *MongoUserRepository) List(ctx context.Context, since *time.Time, limit int) (result []models.User, err error) {
	ctx, finish := mongoSpan(ctx, "list_users", observability.AttributeLimit(limit))
	defer finish(&err)

	filter := bson.M{}
	if since != nil {
		filter["createdAt"] = bson.M{"$gte": *since}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list users")
	}
	defer func() { _ = cursor.Close(ctx) }()

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode users")
	}
	return users, nil
}

// MarkVerified sets isVerified once
func (r *MongoUserRepository) MarkVerified(ctx context.Context, id string, at time.Time) (changed bool, err error) {
	ctx, finish := mongoSpan(ctx, "mark_user_verified", observability.AttributeUserID(id))
	defer finish(&err)

	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id, "isVerified": false},
		bson.M{"$set": bson.M{"isVerified": true, "verifiedAt": at, "updatedAt": at}},
	)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to verify user")
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	if _, err := r.findOne(ctx, bson.M{"_id": id}, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *MongoUserRepository) setFields(ctx context.Context, id string, fields bson.M) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return contextutils.WrapError(err, "failed to update user")
	}
	if res.MatchedCount == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", id)
	}
	return nil
}

// UpdatePassword replaces the password hash
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (err error) {
	ctx, finish := mongoSpan(ctx, "update_user_password", observability.AttributeUserID(id))
	defer finish(&err)

	return r.setFields(ctx, id, bson.M{"password": passwordHash, "updatedAt": at})
}

// UpdateProfilePhoto replaces the profile photo URL
func (r *MongoUserRepository) UpdateProfilePhoto(ctx context.Context, id, url string, at time.Time) (err error) {
	ctx, finish := mongoSpan(ctx, "update_user_profile_photo", observability.AttributeUserID(id))
	defer finish(&err)

	return r.setFields(ctx, id, bson.M{"profilePhoto": url, "updatedAt": at})
}

// SetUserType changes the role of a user
func (r *MongoUserRepository) SetUserType(ctx context.Context, id string, userType models.UserType, at time.Time) (err error) {
	ctx, finish := mongoSpan(ctx, "set_user_type", observability.AttributeUserID(id))
	defer finish(&err)

	return r.setFields(ctx, id, bson.M{"userType": userType, "updatedAt": at})
}

// Delete removes a user and clears userId on their reports
func (r *MongoUserRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := mongoSpan(ctx, "delete_user", observability.AttributeUserID(id))
	defer finish(&err)

	res, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return contextutils.WrapError(err, "failed to delete user")
	}
	if res.DeletedCount == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", id)
	}

	detached, err := r.reports.UpdateMany(ctx, bson.M{"userId": id}, bson.M{"$set": bson.M{"userId": nil}})
	if err != nil {
		return contextutils.WrapError(err, "failed to detach reports of deleted user")
	}
	r.logger.Debug(ctx, "Detached reports from deleted user", map[string]interface{}{
		"user_id": id,
		"reports": detached.ModifiedCount,
	})
	return nil
}

// Counts returns total and verified user counts
func (r *MongoUserRepository) Counts(ctx context.Context) (total, verified int, err error) {
	ctx, finish := mongoSpan(ctx, "count_users")
	defer finish(&err)

	t, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, contextutils.WrapError(err, "failed to count users")
	}
	v, err := r.users.CountDocuments(ctx, bson.M{"isVerified": true})
	if err != nil {
		return 0, 0, contextutils.WrapError(err, "failed to count verified users")
	}
	return int(t), int(v), nil
}
