package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role defines the access level of a user.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
	RoleAdmin    Role = "admin"
)

// ValidRole reports whether s is a role callers may register with.
// Admin accounts are created out of band, never via the register endpoint.
func ValidRole(s string) bool {
	return Role(s) == RoleLandlord || Role(s) == RoleTenant
}

// User represents a registered account.
// PasswordHash is never serialized to clients.
type User struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name               string               `bson:"name" json:"name"`
	Email              string               `bson:"email" json:"email"`
	PasswordHash       string               `bson:"password" json:"-"`
	Phone              string               `bson:"phone" json:"phone"`
	Role               Role                 `bson:"role" json:"role"`
	ProfileImage       string               `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	IsVerified         bool                 `bson:"isVerified" json:"isVerified"`
	IsActive           bool                 `bson:"isActive" json:"isActive"`
	Properties         []primitive.ObjectID `bson:"properties,omitempty" json:"properties,omitempty"` // landlord side
	Favorites          []primitive.ObjectID `bson:"favorites,omitempty" json:"favorites,omitempty"`   // tenant side
	PreferredLocations []string             `bson:"preferredLocations,omitempty" json:"preferredLocations,omitempty"`
	MaxBudget          *float64             `bson:"maxBudget,omitempty" json:"maxBudget,omitempty"`
	IDDocument         string               `bson:"idDocument,omitempty" json:"-"`
	Rating             float64              `bson:"rating" json:"rating"`
	ReviewCount        int                  `bson:"reviewCount" json:"reviewCount"`
	CreatedAt          time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// LandlordSummaryOf projects a user down to the fields exposed alongside
// their properties.
func LandlordSummaryOf(u *User) *LandlordSummary {
	if u == nil {
		return nil
	}
	return &LandlordSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}
