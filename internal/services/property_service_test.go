package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/config"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/query"
	"rentsafi/server/internal/utils"
)

func setupTestDBProperty(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "properties", "users")
}

func createTestLandlord(db *mongo.Database) (primitive.ObjectID, error) {
	landlord := models.User{
		ID:        primitive.NewObjectID(),
		Name:      "Test Landlord",
		Email:     "landlord@example.com",
		Phone:     "+254700000000",
		Role:      models.RoleLandlord,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err := db.Collection("users").InsertOne(context.Background(), landlord)
	return landlord.ID, err
}

func seedProperty(svc IPropertyService, landlordID primitive.ObjectID, title string, price float64, bedrooms int, available bool) (*models.Property, error) {
	p := &models.Property{
		Title:        title,
		Description:  "Seeded for tests",
		PropertyType: models.PropertyTypeApartment,
		Bedrooms:     bedrooms,
		Price:        price,
		Location:     models.Location{Area: "Kilimani", City: "Nairobi"},
		IsAvailable:  available,
	}
	created, err := svc.Create(context.Background(), landlordID, p)
	if err != nil {
		return nil, err
	}
	if !available {
		// Create always inserts available listings; flip explicitly so
		// the search availability tests have both kinds of documents.
		_, err = svc.Update(context.Background(), created.ID,
			Principal{UserID: landlordID, Role: models.RoleLandlord},
			map[string]interface{}{"isAvailable": false})
	}
	return created, err
}

func TestPropertyService_CRUD(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_crud")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	owner := Principal{UserID: landlordID, Role: models.RoleLandlord}

	created, err := seedProperty(svc, landlordID, "Two bed apartment", 45000, 2, true)
	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, landlordID, created.LandlordID)
	assert.Equal(t, models.LeaseTermMonthly, created.LeaseTerm)

	// The landlord's properties array records the new ID.
	var landlord models.User
	err = db.Collection("users").FindOne(ctx, bson.M{"_id": landlordID}).Decode(&landlord)
	assert.NoError(t, err)
	assert.Contains(t, landlord.Properties, created.ID)

	// Fetch without counting a view
	found, err := svc.FindByID(ctx, created.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, 0, found.ViewCount)
	assert.NotNil(t, found.Landlord)
	assert.Equal(t, "Test Landlord", found.Landlord.Name)

	// Unknown ID
	_, err = svc.FindByID(ctx, primitive.NewObjectID(), false)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	// Update by owner
	updated, err := svc.Update(ctx, created.ID, owner, map[string]interface{}{"price": 47000.0})
	assert.NoError(t, err)
	assert.Equal(t, 47000.0, updated.Price)

	// Update of a guarded field is rejected
	_, err = svc.Update(ctx, created.ID, owner, map[string]interface{}{"viewCount": 999})
	assert.Error(t, err)

	// Update by a stranger
	stranger := Principal{UserID: primitive.NewObjectID(), Role: models.RoleLandlord}
	_, err = svc.Update(ctx, created.ID, stranger, map[string]interface{}{"price": 1.0})
	assert.ErrorIs(t, err, ErrNotOwner)

	// Admins may update anything
	admin := Principal{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
	_, err = svc.Update(ctx, created.ID, admin, map[string]interface{}{"title": "Renamed by admin"})
	assert.NoError(t, err)

	// Delete by stranger is refused, by owner succeeds
	err = svc.Delete(ctx, created.ID, stranger)
	assert.ErrorIs(t, err, ErrNotOwner)
	err = svc.Delete(ctx, created.ID, owner)
	assert.NoError(t, err)

	_, err = svc.FindByID(ctx, created.ID, false)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	err = db.Collection("users").FindOne(ctx, bson.M{"_id": landlordID}).Decode(&landlord)
	assert.NoError(t, err)
	assert.NotContains(t, landlord.Properties, created.ID)
}

func TestPropertyService_ViewCountIncrements(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_views")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	created, err := seedProperty(svc, landlordID, "Viewed flat", 30000, 1, true)
	assert.NoError(t, err)

	first, err := svc.FindByID(ctx, created.ID, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, first.ViewCount)

	second, err := svc.FindByID(ctx, created.ID, true)
	assert.NoError(t, err)
	assert.Equal(t, 2, second.ViewCount)

	// A plain fetch does not bump the counter.
	plain, err := svc.FindByID(ctx, created.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, 2, plain.ViewCount)
}

func TestPropertyService_List_Pagination(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_list")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)

	titles := []string{"A", "B", "C", "D", "E"}
	for i, title := range titles {
		_, err := seedProperty(svc, landlordID, title, float64(10000*(i+1)), i+1, true)
		assert.NoError(t, err)
	}

	params := ListParams{
		Predicate: query.NewPredicate(),
		Sort:      bson.D{{Key: "price", Value: 1}},
		Window:    query.Window{Page: 1, Limit: 2},
	}
	page1, total, err := svc.List(ctx, params)
	assert.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page1, 2)
	assert.Equal(t, "A", page1[0].Title)

	params.Window = query.Window{Page: 3, Limit: 2}
	page3, total, err := svc.List(ctx, params)
	assert.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page3, 1)
	assert.Equal(t, "E", page3[0].Title)

	// Pagination metadata is derived from the same total.
	meta := params.Window.Describe(total)
	assert.Nil(t, meta.Next)
	assert.NotNil(t, meta.Prev)
}

func TestPropertyService_List_RangePredicate(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_range")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	for i := 1; i <= 4; i++ {
		_, err := seedProperty(svc, landlordID, "P", float64(10000*i), i, true)
		assert.NoError(t, err)
	}

	pred := query.NewPredicate().
		Add("price", query.OpGTE, float64(20000)).
		Add("price", query.OpLTE, float64(30000))
	results, total, err := svc.List(ctx, ListParams{
		Predicate: pred,
		Sort:      bson.D{{Key: "price", Value: 1}},
		Window:    query.Window{Page: 1, Limit: 10},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, results, 2)
	for _, p := range results {
		assert.GreaterOrEqual(t, p.Price, 20000.0)
		assert.LessOrEqual(t, p.Price, 30000.0)
	}

	// An inverted range is passed through and simply matches nothing.
	inverted := query.NewPredicate().
		Add("price", query.OpGTE, float64(50000)).
		Add("price", query.OpLTE, float64(10000))
	results, total, err = svc.List(ctx, ListParams{
		Predicate: inverted,
		Window:    query.Window{Page: 1, Limit: 10},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, results)
}

func TestPropertyService_Create_NewListingsAreAvailable(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_create_available")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)

	// The create payload carries no availability flag; a fresh listing
	// must be findable through search straight away.
	created, err := svc.Create(ctx, landlordID, &models.Property{
		Title:        "Fresh listing",
		Description:  "Just posted",
		PropertyType: models.PropertyTypeApartment,
		Price:        32000,
		Location:     models.Location{Area: "Westlands", City: "Nairobi"},
	})
	assert.NoError(t, err)
	assert.True(t, created.IsAvailable)

	results, err := svc.Search(ctx, query.SearchFilter{})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, created.ID, results[0].ID)
}

func TestPropertyService_Search_FreeText(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_text")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	match, err := seedProperty(svc, landlordID, "Spacious garden cottage", 40000, 2, true)
	assert.NoError(t, err)
	_, err = seedProperty(svc, landlordID, "City studio", 18000, 0, true)
	assert.NoError(t, err)

	results, err := svc.Search(ctx, query.SearchFilter{Query: "garden"})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, match.ID, results[0].ID)

	// No matches is an empty result, not an error.
	results, err = svc.Search(ctx, query.SearchFilter{Query: "lighthouse"})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestPropertyService_Search_ForcesAvailability(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_search")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	_, err = seedProperty(svc, landlordID, "Available flat", 25000, 2, true)
	assert.NoError(t, err)
	_, err = seedProperty(svc, landlordID, "Taken flat", 25000, 2, false)
	assert.NoError(t, err)

	results, err := svc.Search(ctx, query.SearchFilter{})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "Available flat", results[0].Title)

	// The unfiltered List still sees both.
	all, total, err := svc.List(ctx, ListParams{
		Predicate: query.NewPredicate(),
		Window:    query.Window{Page: 1, Limit: 10},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)
}

func TestPropertyService_Search_BedroomsAtLeast(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_bedrooms")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	for _, bedrooms := range []int{1, 2, 3} {
		_, err := seedProperty(svc, landlordID, "Flat", 20000, bedrooms, true)
		assert.NoError(t, err)
	}

	two := 2
	results, err := svc.Search(ctx, query.SearchFilter{MinBedrooms: &two})
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	for _, p := range results {
		assert.GreaterOrEqual(t, p.Bedrooms, 2)
	}
}

func TestPropertyService_ReportAndFavoriteCount(t *testing.T) {
	db := setupTestDBProperty(t, "testdb_property_service_report")
	svc := NewPropertyService(db, &config.Config{})
	ctx := context.Background()

	landlordID, err := createTestLandlord(db)
	assert.NoError(t, err)
	created, err := seedProperty(svc, landlordID, "Reported flat", 20000, 1, true)
	assert.NoError(t, err)

	reporterID := primitive.NewObjectID()
	err = svc.Report(ctx, created.ID, reporterID, "scam", "Upfront deposit demanded")
	assert.NoError(t, err)
	err = svc.Report(ctx, primitive.NewObjectID(), reporterID, "scam", "")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	// Reports are stored but never serialized to clients.
	var raw bson.M
	err = db.Collection("properties").FindOne(ctx, bson.M{"_id": created.ID}).Decode(&raw)
	assert.NoError(t, err)
	reports := raw["reports"].(primitive.A)
	assert.Len(t, reports, 1)

	err = svc.IncFavoriteCount(ctx, created.ID, 1)
	assert.NoError(t, err)
	err = svc.IncFavoriteCount(ctx, created.ID, -1)
	assert.NoError(t, err)
	// Decrementing below zero is a no-op rather than an error.
	err = svc.IncFavoriteCount(ctx, created.ID, -1)
	assert.NoError(t, err)

	found, err := svc.FindByID(ctx, created.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, 0, found.FavoriteCount)
}
