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

	"rentsafi/server/internal/models"
	"rentsafi/server/internal/query"
)

// ErrNotParticipant is returned when a user tries to access a message
// they neither sent nor received.
var ErrNotParticipant = errors.New("message does not involve this user")

// IMessageService defines the interface for messaging operations.
type IMessageService interface {
	Send(ctx context.Context, senderID primitive.ObjectID, message *models.Message) (*models.Message, error)
	Inbox(ctx context.Context, userID primitive.ObjectID, window query.Window) ([]models.Message, int, error)
	Sent(ctx context.Context, userID primitive.ObjectID, window query.Window) ([]models.Message, int, error)
	FindByID(ctx context.Context, messageID, userID primitive.ObjectID) (*models.Message, error)
	MarkRead(ctx context.Context, messageID, userID primitive.ObjectID) (*models.Message, error)
	UpdateViewingStatus(ctx context.Context, messageID, userID primitive.ObjectID, status models.ViewingStatus) (*models.Message, error)
}

const messagesCollection = "messages"

// messageService implements IMessageService.
type messageService struct {
	db *mongo.Database
}

// NewMessageService creates a new MessageService.
func NewMessageService(database *mongo.Database) IMessageService {
	return &messageService{db: database}
}

// Send stores a new message after checking that the property and
// receiver exist.
func (s *messageService) Send(ctx context.Context, senderID primitive.ObjectID, message *models.Message) (*models.Message, error) {
	propCount, err := s.db.Collection(propertiesCollection).CountDocuments(ctx, bson.M{"_id": message.PropertyID})
	if err != nil {
		return nil, fmt.Errorf("error checking property %s: %w", message.PropertyID.Hex(), err)
	}
	if propCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	recvCount, err := s.db.Collection(usersCollection).CountDocuments(ctx, bson.M{"_id": message.ReceiverID})
	if err != nil {
		return nil, fmt.Errorf("error checking receiver %s: %w", message.ReceiverID.Hex(), err)
	}
	if recvCount == 0 {
		return nil, mongo.ErrNoDocuments
	}

	now := time.Now().UTC()
	message.ID = primitive.NewObjectID()
	message.SenderID = senderID
	message.IsRead = false
	message.ReadAt = nil
	if message.Type == "" {
		message.Type = models.MessageTypeInquiry
	}
	if message.ViewingRequest != nil && message.ViewingRequest.Status == "" {
		message.ViewingRequest.Status = models.ViewingStatusPending
	}
	message.CreatedAt = now
	message.UpdatedAt = now

	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to insert message from %s: %w", senderID.Hex(), err)
	}
	return message, nil
}

// Inbox returns messages received by userID, newest first, windowed
// with the shared pagination engine.
func (s *messageService) Inbox(ctx context.Context, userID primitive.ObjectID, window query.Window) ([]models.Message, int, error) {
	return s.listMessages(ctx, bson.M{"receiver": userID}, window)
}

// Sent returns messages sent by userID, newest first.
func (s *messageService) Sent(ctx context.Context, userID primitive.ObjectID, window query.Window) ([]models.Message, int, error) {
	return s.listMessages(ctx, bson.M{"sender": userID}, window)
}

func (s *messageService) listMessages(ctx context.Context, filter bson.M, window query.Window) ([]models.Message, int, error) {
	collection := s.db.Collection(messagesCollection)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(window.Skip())).
		SetLimit(int64(window.Limit))
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, 0, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, int(total), nil
}

// FindByID returns a message, but only to one of its participants.
func (s *messageService) FindByID(ctx context.Context, messageID, userID primitive.ObjectID) (*models.Message, error) {
	var message models.Message
	err := s.db.Collection(messagesCollection).FindOne(ctx, bson.M{"_id": messageID}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding message %s: %w", messageID.Hex(), err)
	}
	if message.SenderID != userID && message.ReceiverID != userID {
		return nil, ErrNotParticipant
	}
	return &message, nil
}

// MarkRead marks a received message as read. Only the receiver may do
// this, and readAt is set once: marking an already-read message again
// leaves the original timestamp.
func (s *messageService) MarkRead(ctx context.Context, messageID, userID primitive.ObjectID) (*models.Message, error) {
	collection := s.db.Collection(messagesCollection)
	now := time.Now().UTC()

	filter := bson.M{"_id": messageID, "receiver": userID, "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": now, "updatedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Message
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to mark message %s read: %w", messageID.Hex(), err)
	}

	// Already read, not the receiver, or absent; find out which.
	existing, findErr := s.FindByID(ctx, messageID, userID)
	if findErr != nil {
		return nil, findErr
	}
	if existing.ReceiverID != userID {
		return nil, ErrNotParticipant
	}
	return existing, nil
}

// UpdateViewingStatus updates a message's viewing request status.
// Only the receiver of the viewing request may change it.
func (s *messageService) UpdateViewingStatus(ctx context.Context, messageID, userID primitive.ObjectID, status models.ViewingStatus) (*models.Message, error) {
	collection := s.db.Collection(messagesCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":            messageID,
		"receiver":       userID,
		"viewingRequest": bson.M{"$exists": true},
	}
	update := bson.M{"$set": bson.M{"viewingRequest.status": status, "updatedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Message
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish missing message from missing permission.
			var message models.Message
			checkErr := collection.FindOne(ctx, bson.M{"_id": messageID}).Decode(&message)
			if errors.Is(checkErr, mongo.ErrNoDocuments) {
				return nil, mongo.ErrNoDocuments
			}
			if checkErr == nil && message.ReceiverID != userID {
				return nil, ErrNotParticipant
			}
			return nil, fmt.Errorf("message %s has no viewing request", messageID.Hex())
		}
		return nil, fmt.Errorf("failed to update viewing status for message %s: %w", messageID.Hex(), err)
	}
	return &updated, nil
}
