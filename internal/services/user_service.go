package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentsafi/server/internal/auth"
	"rentsafi/server/internal/db"
	"rentsafi/server/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned when login credentials don't match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, name, email, password, phone string, role models.Role) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateDetails(ctx context.Context, userID primitive.ObjectID, updates map[string]interface{}) (*models.User, error)
	UpdatePassword(ctx context.Context, userID primitive.ObjectID, currentPassword, newPassword string) error
	AddFavorite(ctx context.Context, userID, propertyID primitive.ObjectID) error
	RemoveFavorite(ctx context.Context, userID, propertyID primitive.ObjectID) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db          *mongo.Database
	propertySvc IPropertyService
}

// NewUserService creates a new UserService. The property service is
// used to keep favorite counters in step with favorites lists.
func NewUserService(database *mongo.Database, propertySvc IPropertyService) IUserService {
	return &userService{db: database, propertySvc: propertySvc}
}

// Register creates a new account with a hashed password. Email
// uniqueness is enforced by the unique index on the users collection;
// the insert is retried on transient duplicate-key collisions and
// reported as ErrEmailExists when the email itself is taken.
func (s *userService) Register(ctx context.Context, name, email, password, phone string, role models.Role) (*models.User, error) {
	collection := s.db.Collection(usersCollection)
	email = strings.ToLower(strings.TrimSpace(email))

	count, err := collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newUser := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	operation := func() error {
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}

	return newUser, nil
}

// Authenticate verifies email/password and returns the matching user.
// The same error is returned for unknown email and wrong password so
// callers cannot probe which accounts exist.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByID finds a user by ID.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)

	err := collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

// FindByEmail finds a user by their email address.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)

	err := collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// allowedUserUpdates are the profile fields a user may change about
// themselves. Role, email and counters have dedicated paths or are
// immutable here.
var allowedUserUpdates = map[string]bool{
	"name": true, "phone": true, "profileImage": true,
	"preferredLocations": true, "maxBudget": true,
}

// UpdateDetails updates mutable profile fields of a user.
func (s *userService) UpdateDetails(ctx context.Context, userID primitive.ObjectID, updates map[string]interface{}) (*models.User, error) {
	collection := s.db.Collection(usersCollection)

	allowed := bson.M{}
	for key, value := range updates {
		if !allowedUserUpdates[key] {
			return nil, fmt.Errorf("field '%s' cannot be updated", key)
		}
		allowed[key] = value
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update")
	}
	allowed["updatedAt"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": allowed}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update user %s: %w", userID.Hex(), err)
	}
	return &updated, nil
}

// UpdatePassword verifies the current password before replacing it.
func (s *userService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, currentPassword, newPassword string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()}}
	result, err := s.db.Collection(usersCollection).UpdateByID(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("failed to update password for user %s: %w", userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddFavorite records a property on the user's favorites list and bumps
// the property's favorite counter. $addToSet keeps the list free of
// duplicates; the counter is only bumped when the list actually grew.
func (s *userService) AddFavorite(ctx context.Context, userID, propertyID primitive.ObjectID) error {
	collection := s.db.Collection(usersCollection)

	// The membership filter makes the update a no-op when the property
	// is already favorited, so the counter bump stays paired with an
	// actual list change.
	filter := bson.M{"_id": userID, "favorites": bson.M{"$ne": propertyID}}
	update := bson.M{
		"$addToSet": bson.M{"favorites": propertyID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adding favorite %s for user %s: %w", propertyID.Hex(), userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		// Either the user is unknown or the property is already on the
		// list; only the former is an error.
		if _, findErr := s.FindByID(ctx, userID); findErr != nil {
			return findErr
		}
		return nil
	}

	return s.propertySvc.IncFavoriteCount(ctx, propertyID, 1)
}

// RemoveFavorite removes a property from the user's favorites list and
// decrements the property's favorite counter when it was present.
func (s *userService) RemoveFavorite(ctx context.Context, userID, propertyID primitive.ObjectID) error {
	collection := s.db.Collection(usersCollection)

	filter := bson.M{"_id": userID, "favorites": propertyID}
	update := bson.M{
		"$pull": bson.M{"favorites": propertyID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error removing favorite %s for user %s: %w", propertyID.Hex(), userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		if _, findErr := s.FindByID(ctx, userID); findErr != nil {
			return findErr
		}
		return nil
	}

	return s.propertySvc.IncFavoriteCount(ctx, propertyID, -1)
}
