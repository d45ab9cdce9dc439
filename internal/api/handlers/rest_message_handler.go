package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/models"
	"rentsafi/server/internal/query"
	"rentsafi/server/internal/services"
	"rentsafi/server/internal/tasks"
)

// RestMessageHandler handles REST requests for property messaging.
type RestMessageHandler struct {
	messageService  services.IMessageService
	userService     services.IUserService
	propertyService services.IPropertyService
	taskClient      IAsynqClient
}

// NewRestMessageHandler creates a new RestMessageHandler.
func NewRestMessageHandler(messageService services.IMessageService, userService services.IUserService, propertyService services.IPropertyService, taskClient IAsynqClient) *RestMessageHandler {
	return &RestMessageHandler{
		messageService:  messageService,
		userService:     userService,
		propertyService: propertyService,
		taskClient:      taskClient,
	}
}

// viewingRequestPayload mirrors models.ViewingRequest for input binding.
type viewingRequestPayload struct {
	RequestedDate time.Time `json:"requestedDate" binding:"required"`
	RequestedTime string    `json:"requestedTime"`
	Notes         string    `json:"notes"`
}

// sendMessageRequest is the accepted payload for POST /messages.
type sendMessageRequest struct {
	ReceiverID     string                 `json:"receiver" binding:"required"`
	PropertyID     string                 `json:"property" binding:"required"`
	Subject        string                 `json:"subject" binding:"required"`
	Content        string                 `json:"content" binding:"required"`
	Type           models.MessageType     `json:"type"`
	ViewingRequest *viewingRequestPayload `json:"viewingRequest"`
}

// SendMessage handles POST /api/v1/messages
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// Type is optional; the service defaults an empty one to inquiry.
	if req.Type != "" && !models.ValidMessageType(string(req.Type)) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid message type"})
		return
	}

	receiverID, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid receiver ID format"})
		return
	}
	propertyID, err := primitive.ObjectIDFromHex(req.PropertyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	message := &models.Message{
		ReceiverID: receiverID,
		PropertyID: propertyID,
		Subject:    req.Subject,
		Content:    req.Content,
		Type:       req.Type,
	}
	if req.ViewingRequest != nil {
		message.ViewingRequest = &models.ViewingRequest{
			RequestedDate: req.ViewingRequest.RequestedDate,
			RequestedTime: req.ViewingRequest.RequestedTime,
			Notes:         req.ViewingRequest.Notes,
		}
	}

	ctx := c.Request.Context()
	created, err := h.messageService.Send(ctx, userID, message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property or receiver not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to send message"})
		}
		return
	}

	h.enqueueNotification(c, created)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created})
}

// enqueueNotification schedules the new-message email. Failures are
// logged, never surfaced to the sender.
func (h *RestMessageHandler) enqueueNotification(c *gin.Context, message *models.Message) {
	ctx := c.Request.Context()

	sender, err := h.userService.FindByID(ctx, message.SenderID)
	if err != nil {
		log.Printf("Skipping message notification, sender lookup failed: %v", err)
		return
	}
	property, err := h.propertyService.FindByID(ctx, message.PropertyID, false)
	if err != nil {
		log.Printf("Skipping message notification, property lookup failed: %v", err)
		return
	}

	// Truncate on a rune boundary so multi-byte content stays valid UTF-8.
	preview := message.Content
	if runes := []rune(preview); len(runes) > 200 {
		preview = string(runes[:200]) + "..."
	}

	task, err := tasks.NewMessageNotifyTask(message.ReceiverID, sender.Name, property.Title, preview)
	if err != nil {
		log.Printf("Failed to build message notify task: %v", err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("ERROR enqueuing message notify task for message %s: %v", message.ID.Hex(), err)
	}
}

// listWindow parses page/limit for the message listing endpoints.
func listWindow(c *gin.Context) query.Window {
	return query.ParseWindow(c.Query("page"), c.Query("limit"), query.DefaultListLimit)
}

// GetInbox handles GET /api/v1/messages
func (h *RestMessageHandler) GetInbox(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	window := listWindow(c)
	messages, total, err := h.messageService.Inbox(c.Request.Context(), userID, window)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(messages),
		"pagination": window.Describe(total),
		"data":       messages,
	})
}

// GetSent handles GET /api/v1/messages/sent
func (h *RestMessageHandler) GetSent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	window := listWindow(c)
	messages, total, err := h.messageService.Sent(c.Request.Context(), userID, window)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(messages),
		"pagination": window.Describe(total),
		"data":       messages,
	})
}

// GetMessageByID handles GET /api/v1/messages/:id
func (h *RestMessageHandler) GetMessageByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid message ID format"})
		return
	}

	message, err := h.messageService.FindByID(c.Request.Context(), messageID, userID)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Message not found"})
		case errors.Is(err, services.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Not a participant of this message"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve message"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": message})
}

// MarkMessageRead handles PUT /api/v1/messages/:id/read
func (h *RestMessageHandler) MarkMessageRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid message ID format"})
		return
	}

	message, err := h.messageService.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Message not found"})
		case errors.Is(err, services.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Only the receiver can mark a message read"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to mark message read"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": message})
}

// viewingStatusRequest is the accepted payload for the viewing status update.
type viewingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateViewingStatus handles PUT /api/v1/messages/:id/viewing
func (h *RestMessageHandler) UpdateViewingStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid message ID format"})
		return
	}

	var req viewingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !models.ValidViewingStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid viewing status"})
		return
	}

	message, err := h.messageService.UpdateViewingStatus(c.Request.Context(), messageID, userID, models.ViewingStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Message or viewing request not found"})
		case errors.Is(err, services.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Only the receiver can update a viewing request"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update viewing status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": message})
}
