package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PropertyType enumerates the kinds of rental properties supported.
type PropertyType string

const (
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeStudio     PropertyType = "studio"
	PropertyTypeBedsitter  PropertyType = "bedsitter"
	PropertyTypeMaisonette PropertyType = "maisonette"
	PropertyTypePenthouse  PropertyType = "penthouse"
)

// ValidPropertyType reports whether s is one of the six supported types.
func ValidPropertyType(s string) bool {
	switch PropertyType(s) {
	case PropertyTypeApartment, PropertyTypeHouse, PropertyTypeStudio,
		PropertyTypeBedsitter, PropertyTypeMaisonette, PropertyTypePenthouse:
		return true
	}
	return false
}

// LeaseTerm enumerates the supported lease periods.
type LeaseTerm string

const (
	LeaseTermMonthly   LeaseTerm = "monthly"
	LeaseTermQuarterly LeaseTerm = "quarterly"
	LeaseTermYearly    LeaseTerm = "yearly"
)

// Coordinates is an optional lat/lng pair for a property location.
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Location describes where a property is.
type Location struct {
	Area        string       `bson:"area" json:"area"`
	City        string       `bson:"city" json:"city"`
	Coordinates *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Address     string       `bson:"address" json:"address"`
}

// PropertyImage is a stored image reference: the public URL plus the
// storage key needed to delete or reprocess it.
type PropertyImage struct {
	URL       string `bson:"url" json:"url"`
	StorageID string `bson:"storage_id" json:"storageId"`
}

// PropertyReport is a user-submitted report against a property.
type PropertyReport struct {
	UserID      primitive.ObjectID `bson:"user" json:"user"`
	Reason      string             `bson:"reason" json:"reason"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

// LandlordSummary is the public projection of a property's landlord.
// It deliberately carries contact fields only, never the full user record.
type LandlordSummary struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
	Phone string             `bson:"phone" json:"phone"`
}

// Property represents a rental listing.
type Property struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Price         float64            `bson:"price" json:"price"`
	Location      Location           `bson:"location" json:"location"`
	PropertyType  PropertyType       `bson:"propertyType" json:"propertyType"`
	Bedrooms      int                `bson:"bedrooms" json:"bedrooms"`
	Bathrooms     int                `bson:"bathrooms" json:"bathrooms"`
	Size          float64            `bson:"size" json:"size"` // square feet
	Amenities     []string           `bson:"amenities" json:"amenities"`
	Images        []PropertyImage    `bson:"images" json:"images"`
	VirtualTour   string             `bson:"virtualTour,omitempty" json:"virtualTour,omitempty"`
	LandlordID    primitive.ObjectID `bson:"landlord" json:"landlordId"`
	Landlord      *LandlordSummary   `bson:"-" json:"landlord,omitempty"`
	IsAvailable   bool               `bson:"isAvailable" json:"isAvailable"`
	IsVerified    bool               `bson:"isVerified" json:"isVerified"`
	IsFeatured    bool               `bson:"isFeatured" json:"isFeatured"`
	ViewCount     int                `bson:"viewCount" json:"viewCount"`
	FavoriteCount int                `bson:"favoriteCount" json:"favoriteCount"`
	LeaseTerm     LeaseTerm          `bson:"leaseTerm" json:"leaseTerm"`
	Deposit       float64            `bson:"deposit" json:"deposit"`
	ContactPhone  string             `bson:"contactPhone" json:"contactPhone"`
	ContactEmail  string             `bson:"contactEmail" json:"contactEmail"`
	AvailableFrom time.Time          `bson:"availableFrom" json:"availableFrom"`
	Reports       []PropertyReport   `bson:"reports,omitempty" json:"-"`
	Rating        float64            `bson:"rating" json:"rating"`
	ReviewCount   int                `bson:"reviewCount" json:"reviewCount"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
