package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentsafi/server/internal/config"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/query"
)

// ErrNotOwner is returned when a principal attempts to mutate a
// property it does not own and is not an admin.
var ErrNotOwner = errors.New("property does not belong to this user")

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID primitive.ObjectID
	Role   models.Role
}

// CanManage reports whether the principal may mutate a property owned
// by landlordID. Admins may manage any property.
func (p Principal) CanManage(landlordID primitive.ObjectID) bool {
	return p.Role == models.RoleAdmin || p.UserID == landlordID
}

// ListParams carries the parsed inputs of the generic listing operation.
type ListParams struct {
	Predicate  *query.Predicate
	Sort       bson.D
	Projection bson.D
	Window     query.Window
}

// IPropertyService defines the interface for property-related operations.
type IPropertyService interface {
	List(ctx context.Context, params ListParams) ([]models.Property, int, error)
	Search(ctx context.Context, filter query.SearchFilter) ([]models.Property, error)
	FindByID(ctx context.Context, propertyID primitive.ObjectID, countView bool) (*models.Property, error)
	Create(ctx context.Context, landlordID primitive.ObjectID, property *models.Property) (*models.Property, error)
	Update(ctx context.Context, propertyID primitive.ObjectID, principal Principal, updates map[string]interface{}) (*models.Property, error)
	Delete(ctx context.Context, propertyID primitive.ObjectID, principal Principal) error
	AddImage(ctx context.Context, propertyID primitive.ObjectID, image models.PropertyImage) error
	Report(ctx context.Context, propertyID, userID primitive.ObjectID, reason, description string) error
	IncFavoriteCount(ctx context.Context, propertyID primitive.ObjectID, delta int) error
}

const propertiesCollection = "properties"

// propertyService implements IPropertyService.
type propertyService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(db *mongo.Database, cfg *config.Config) IPropertyService {
	return &propertyService{db: db, cfg: cfg}
}

// List runs the generic listing operation: predicate, sort, projection
// and window are applied as given, with no forced availability
// constraint. The total is counted over the same predicate so
// pagination metadata and the window stay consistent (modulo
// concurrent writes, which may make the count slightly stale).
func (s *propertyService) List(ctx context.Context, params ListParams) ([]models.Property, int, error) {
	collection := s.db.Collection(propertiesCollection)
	filter := params.Predicate.ToBSON()

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count properties: %w", err)
	}

	opts := options.Find().
		SetSort(params.Sort).
		SetSkip(int64(params.Window.Skip())).
		SetLimit(int64(params.Window.Limit))
	if params.Projection != nil {
		opts.SetProjection(params.Projection)
	}

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	defer cursor.Close(ctx)

	var properties []models.Property
	if err = cursor.All(ctx, &properties); err != nil {
		return nil, 0, fmt.Errorf("failed to decode properties: %w", err)
	}

	if err := s.resolveLandlords(ctx, properties); err != nil {
		return nil, 0, err
	}

	return properties, int(total), nil
}

// Search runs the public search operation: the availability constraint
// is always applied, results are sorted newest-first and not paginated.
// The asymmetry with List is deliberate.
func (s *propertyService) Search(ctx context.Context, filter query.SearchFilter) ([]models.Property, error) {
	collection := s.db.Collection(propertiesCollection)
	predicate := query.FromSearchFilter(filter, true)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := collection.Find(ctx, predicate.ToBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search properties: %w", err)
	}
	defer cursor.Close(ctx)

	var properties []models.Property
	if err = cursor.All(ctx, &properties); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	if err := s.resolveLandlords(ctx, properties); err != nil {
		return nil, err
	}

	return properties, nil
}

// FindByID fetches a single property. When countView is true the view
// counter is incremented atomically as part of the fetch, so the
// returned document already reflects this view.
func (s *propertyService) FindByID(ctx context.Context, propertyID primitive.ObjectID, countView bool) (*models.Property, error) {
	collection := s.db.Collection(propertiesCollection)

	var property models.Property
	var err error
	if countView {
		update := bson.M{"$inc": bson.M{"viewCount": 1}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = collection.FindOneAndUpdate(ctx, bson.M{"_id": propertyID}, update, opts).Decode(&property)
	} else {
		err = collection.FindOne(ctx, bson.M{"_id": propertyID}).Decode(&property)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding property %s: %w", propertyID.Hex(), err)
	}

	properties := []models.Property{property}
	if err := s.resolveLandlords(ctx, properties); err != nil {
		return nil, err
	}
	return &properties[0], nil
}

// Create inserts a new property owned by landlordID and records it on
// the landlord's properties array.
func (s *propertyService) Create(ctx context.Context, landlordID primitive.ObjectID, property *models.Property) (*models.Property, error) {
	collection := s.db.Collection(propertiesCollection)
	now := time.Now().UTC()

	property.ID = primitive.NewObjectID()
	property.LandlordID = landlordID
	property.Landlord = nil
	// New listings go live immediately; availability is a toggle the
	// owner flips off, not on.
	property.IsAvailable = true
	property.ViewCount = 0
	property.FavoriteCount = 0
	property.Rating = 0
	property.ReviewCount = 0
	property.CreatedAt = now
	property.UpdatedAt = now
	if property.LeaseTerm == "" {
		property.LeaseTerm = models.LeaseTermMonthly
	}
	if property.Images == nil {
		property.Images = []models.PropertyImage{}
	}
	if property.Amenities == nil {
		property.Amenities = []string{}
	}

	if _, err := collection.InsertOne(ctx, property); err != nil {
		return nil, fmt.Errorf("failed to insert property for landlord %s: %w", landlordID.Hex(), err)
	}

	userUpdate := bson.M{"$push": bson.M{"properties": property.ID}}
	if _, err := s.db.Collection(usersCollection).UpdateByID(ctx, landlordID, userUpdate); err != nil {
		return nil, fmt.Errorf("property %s created but failed to record on landlord %s: %w",
			property.ID.Hex(), landlordID.Hex(), err)
	}

	return property, nil
}

// allowedPropertyUpdates are the fields mutable via Update. Counters,
// ownership and verification flags change only through dedicated paths.
var allowedPropertyUpdates = map[string]bool{
	"title": true, "description": true, "price": true, "location": true,
	"propertyType": true, "bedrooms": true, "bathrooms": true, "size": true,
	"amenities": true, "virtualTour": true, "isAvailable": true,
	"leaseTerm": true, "deposit": true, "contactPhone": true,
	"contactEmail": true, "availableFrom": true,
}

// Update mutates a property owned by the principal (or any property,
// for admins). The updates map holds BSON field names and new values.
func (s *propertyService) Update(ctx context.Context, propertyID primitive.ObjectID, principal Principal, updates map[string]interface{}) (*models.Property, error) {
	collection := s.db.Collection(propertiesCollection)

	allowed := bson.M{}
	for key, value := range updates {
		if !allowedPropertyUpdates[key] {
			return nil, fmt.Errorf("field '%s' cannot be updated", key)
		}
		allowed[key] = value
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update")
	}
	allowed["updatedAt"] = time.Now().UTC()

	var existing models.Property
	if err := collection.FindOne(ctx, bson.M{"_id": propertyID}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding property %s for update: %w", propertyID.Hex(), err)
	}
	if !principal.CanManage(existing.LandlordID) {
		return nil, ErrNotOwner
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Property
	err := collection.FindOneAndUpdate(ctx, bson.M{"_id": propertyID}, bson.M{"$set": allowed}, opts).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update property %s: %w", propertyID.Hex(), err)
	}

	return &updated, nil
}

// Delete removes a property permanently and detaches it from its
// landlord's properties array. Soft exclusion from search goes through
// isAvailable instead; this is the hard-delete path.
func (s *propertyService) Delete(ctx context.Context, propertyID primitive.ObjectID, principal Principal) error {
	collection := s.db.Collection(propertiesCollection)

	var existing models.Property
	if err := collection.FindOne(ctx, bson.M{"_id": propertyID}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return mongo.ErrNoDocuments
		}
		return fmt.Errorf("error finding property %s for delete: %w", propertyID.Hex(), err)
	}
	if !principal.CanManage(existing.LandlordID) {
		return ErrNotOwner
	}

	if _, err := collection.DeleteOne(ctx, bson.M{"_id": propertyID}); err != nil {
		return fmt.Errorf("failed to delete property %s: %w", propertyID.Hex(), err)
	}

	userUpdate := bson.M{"$pull": bson.M{"properties": propertyID}}
	if _, err := s.db.Collection(usersCollection).UpdateByID(ctx, existing.LandlordID, userUpdate); err != nil {
		return fmt.Errorf("property %s deleted but failed to detach from landlord %s: %w",
			propertyID.Hex(), existing.LandlordID.Hex(), err)
	}

	return nil
}

// AddImage appends a processed image to a property's image list.
// It is called by the image worker once processing completes.
func (s *propertyService) AddImage(ctx context.Context, propertyID primitive.ObjectID, image models.PropertyImage) error {
	collection := s.db.Collection(propertiesCollection)

	update := bson.M{
		"$push": bson.M{"images": image},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := collection.UpdateByID(ctx, propertyID, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to property %s: %w", image.StorageID, propertyID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Report records a user report against a property.
func (s *propertyService) Report(ctx context.Context, propertyID, userID primitive.ObjectID, reason, description string) error {
	collection := s.db.Collection(propertiesCollection)

	report := models.PropertyReport{
		UserID:      userID,
		Reason:      reason,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	result, err := collection.UpdateByID(ctx, propertyID, bson.M{"$push": bson.M{"reports": report}})
	if err != nil {
		return fmt.Errorf("db error reporting property %s: %w", propertyID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// IncFavoriteCount adjusts a property's favorite counter atomically.
// The counter never goes below zero.
func (s *propertyService) IncFavoriteCount(ctx context.Context, propertyID primitive.ObjectID, delta int) error {
	collection := s.db.Collection(propertiesCollection)

	filter := bson.M{"_id": propertyID}
	if delta < 0 {
		// Guard against decrementing past zero.
		filter["favoriteCount"] = bson.M{"$gte": -delta}
	}
	result, err := collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"favoriteCount": delta}})
	if err != nil {
		return fmt.Errorf("db error adjusting favorite count for property %s: %w", propertyID.Hex(), err)
	}
	if result.MatchedCount == 0 && delta >= 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// resolveLandlords replaces each property's landlord reference with a
// name/email/phone summary, fetched in a single $in query. Password
// hashes never leave the users collection here: the projection is
// limited to the summary fields.
func (s *propertyService) resolveLandlords(ctx context.Context, properties []models.Property) error {
	if len(properties) == 0 {
		return nil
	}

	idSet := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, p := range properties {
		if !p.LandlordID.IsZero() && !idSet[p.LandlordID] {
			idSet[p.LandlordID] = true
			ids = append(ids, p.LandlordID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	opts := options.Find().SetProjection(bson.D{
		{Key: "name", Value: 1},
		{Key: "email", Value: 1},
		{Key: "phone", Value: 1},
	})
	cursor, err := s.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return fmt.Errorf("failed to resolve landlords: %w", err)
	}
	defer cursor.Close(ctx)

	var summaries []models.LandlordSummary
	if err = cursor.All(ctx, &summaries); err != nil {
		return fmt.Errorf("failed to decode landlord summaries: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.LandlordSummary, len(summaries))
	for _, summary := range summaries {
		byID[summary.ID] = summary
	}
	for i := range properties {
		if summary, ok := byID[properties[i].LandlordID]; ok {
			properties[i].Landlord = &summary
		}
	}
	return nil
}
