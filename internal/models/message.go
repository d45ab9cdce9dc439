package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType categorizes messages for filtering.
type MessageType string

const (
	MessageTypeInquiry  MessageType = "inquiry"
	MessageTypeResponse MessageType = "response"
	MessageTypeGeneral  MessageType = "general"
)

// ValidMessageType reports whether s is a recognized message type.
func ValidMessageType(s string) bool {
	switch MessageType(s) {
	case MessageTypeInquiry, MessageTypeResponse, MessageTypeGeneral:
		return true
	}
	return false
}

// ViewingStatus tracks the lifecycle of a viewing request.
type ViewingStatus string

const (
	ViewingStatusPending   ViewingStatus = "pending"
	ViewingStatusAccepted  ViewingStatus = "accepted"
	ViewingStatusRejected  ViewingStatus = "rejected"
	ViewingStatusCompleted ViewingStatus = "completed"
)

// ValidViewingStatus reports whether s is a recognized viewing status.
func ValidViewingStatus(s string) bool {
	switch ViewingStatus(s) {
	case ViewingStatusPending, ViewingStatusAccepted, ViewingStatusRejected, ViewingStatusCompleted:
		return true
	}
	return false
}

// ViewingRequest is an optional sub-record for scheduling property viewings.
type ViewingRequest struct {
	RequestedDate time.Time     `bson:"requestedDate" json:"requestedDate"`
	RequestedTime string        `bson:"requestedTime" json:"requestedTime"`
	Status        ViewingStatus `bson:"status" json:"status"`
	Notes         string        `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Message is a property-scoped message between two users.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SenderID       primitive.ObjectID `bson:"sender" json:"sender"`
	ReceiverID     primitive.ObjectID `bson:"receiver" json:"receiver"`
	PropertyID     primitive.ObjectID `bson:"property" json:"property"`
	Subject        string             `bson:"subject" json:"subject"`
	Content        string             `bson:"content" json:"content"`
	IsRead         bool               `bson:"isRead" json:"isRead"`
	ReadAt         *time.Time         `bson:"readAt,omitempty" json:"readAt,omitempty"`
	Type           MessageType        `bson:"type" json:"type"`
	ViewingRequest *ViewingRequest    `bson:"viewingRequest,omitempty" json:"viewingRequest,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
