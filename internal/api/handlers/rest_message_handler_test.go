package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/api/handlers"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/services"
	"rentsafi/server/internal/tasks"
)

func TestRestMessageHandler_SendMessage_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	mockUserSvc := new(MockUserService)
	mockPropertySvc := new(MockPropertyService)
	mockTaskClient := new(MockAsynqClient)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, mockUserSvc, mockPropertySvc, mockTaskClient)

	senderID := primitive.NewObjectID()
	receiverID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/api/v1/messages", authAs(senderID, models.RoleTenant), handler.SendMessage)

	created := &models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		PropertyID: propertyID,
		Subject:    "Is this still available?",
		Content:    "Hello, I'd like to view the flat.",
	}
	mockMessageSvc.On("Send", mock.Anything, senderID, mock.AnythingOfType("*models.Message")).Return(created, nil)
	mockUserSvc.On("FindByID", mock.Anything, senderID).
		Return(&models.User{ID: senderID, Name: "Jane"}, nil)
	mockPropertySvc.On("FindByID", mock.Anything, propertyID, false).
		Return(&models.Property{ID: propertyID, Title: "Westlands flat"}, nil)
	mockTaskClient.On("EnqueueContext", mock.Anything, mock.AnythingOfType("*asynq.Task")).
		Return(&asynq.TaskInfo{ID: "task-1"}, nil)

	body := `{"receiver":"` + receiverID.Hex() + `","property":"` + propertyID.Hex() + `","subject":"Is this still available?","content":"Hello, I'd like to view the flat."}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockMessageSvc.AssertExpectations(t)
	mockTaskClient.AssertExpectations(t)
}

func TestRestMessageHandler_SendMessage_InvalidType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	senderID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/api/v1/messages", authAs(senderID, models.RoleTenant), handler.SendMessage)

	body := `{"receiver":"` + primitive.NewObjectID().Hex() + `","property":"` + primitive.NewObjectID().Hex() + `","subject":"Hi","content":"Hello","type":"spam"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockMessageSvc.AssertNotCalled(t, "Send")
}

func TestRestMessageHandler_SendMessage_PreviewKeepsValidUTF8(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	mockUserSvc := new(MockUserService)
	mockPropertySvc := new(MockPropertyService)
	mockTaskClient := new(MockAsynqClient)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, mockUserSvc, mockPropertySvc, mockTaskClient)

	senderID := primitive.NewObjectID()
	receiverID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/api/v1/messages", authAs(senderID, models.RoleTenant), handler.SendMessage)

	// 300 two-byte runes; a byte-indexed cut at 200 would land mid-rune.
	content := strings.Repeat("é", 300)
	created := &models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		PropertyID: propertyID,
		Subject:    "Habari",
		Content:    content,
	}
	mockMessageSvc.On("Send", mock.Anything, senderID, mock.AnythingOfType("*models.Message")).Return(created, nil)
	mockUserSvc.On("FindByID", mock.Anything, senderID).
		Return(&models.User{ID: senderID, Name: "Jane"}, nil)
	mockPropertySvc.On("FindByID", mock.Anything, propertyID, false).
		Return(&models.Property{ID: propertyID, Title: "Westlands flat"}, nil)
	mockTaskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var payload tasks.MessageNotifyPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		return utf8.ValidString(payload.Preview) &&
			strings.HasSuffix(payload.Preview, "...") &&
			utf8.RuneCountInString(payload.Preview) == 203
	})).Return(&asynq.TaskInfo{ID: "task-1"}, nil)

	body := `{"receiver":"` + receiverID.Hex() + `","property":"` + propertyID.Hex() + `","subject":"Habari","content":"` + content + `"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockTaskClient.AssertExpectations(t)
}

func TestRestMessageHandler_SendMessage_UnknownProperty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	senderID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/api/v1/messages", authAs(senderID, models.RoleTenant), handler.SendMessage)

	mockMessageSvc.On("Send", mock.Anything, senderID, mock.AnythingOfType("*models.Message")).
		Return(nil, mongo.ErrNoDocuments)

	body := `{"receiver":"` + primitive.NewObjectID().Hex() + `","property":"` + primitive.NewObjectID().Hex() + `","subject":"Hi","content":"Hello"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockMessageSvc.AssertExpectations(t)
}

func TestRestMessageHandler_GetInbox_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	userID := primitive.NewObjectID()
	r := gin.New()
	r.GET("/api/v1/messages", authAs(userID, models.RoleTenant), handler.GetInbox)

	messages := []models.Message{
		{ID: primitive.NewObjectID(), ReceiverID: userID, Subject: "First"},
		{ID: primitive.NewObjectID(), ReceiverID: userID, Subject: "Second"},
	}
	mockMessageSvc.On("Inbox", mock.Anything, userID, mock.Anything).Return(messages, 12, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/messages?page=1&limit=2", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Equal(t, float64(2), respBody["count"])
	pagination := respBody["pagination"].(map[string]interface{})
	assert.NotNil(t, pagination["next"])
	mockMessageSvc.AssertExpectations(t)
}

func TestRestMessageHandler_GetMessageByID_Forbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	userID := primitive.NewObjectID()
	messageID := primitive.NewObjectID()
	r := gin.New()
	r.GET("/api/v1/messages/:id", authAs(userID, models.RoleTenant), handler.GetMessageByID)

	mockMessageSvc.On("FindByID", mock.Anything, messageID, userID).Return(nil, services.ErrNotParticipant)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/messages/"+messageID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockMessageSvc.AssertExpectations(t)
}

func TestRestMessageHandler_MarkMessageRead_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	userID := primitive.NewObjectID()
	messageID := primitive.NewObjectID()
	r := gin.New()
	r.PUT("/api/v1/messages/:id/read", authAs(userID, models.RoleTenant), handler.MarkMessageRead)

	read := &models.Message{ID: messageID, ReceiverID: userID, IsRead: true}
	mockMessageSvc.On("MarkRead", mock.Anything, messageID, userID).Return(read, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/messages/"+messageID.Hex()+"/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	data := respBody["data"].(map[string]interface{})
	assert.Equal(t, true, data["isRead"])
	mockMessageSvc.AssertExpectations(t)
}

func TestRestMessageHandler_UpdateViewingStatus_InvalidStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	userID := primitive.NewObjectID()
	messageID := primitive.NewObjectID()
	r := gin.New()
	r.PUT("/api/v1/messages/:id/viewing", authAs(userID, models.RoleLandlord), handler.UpdateViewingStatus)

	body := `{"status":"maybe"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/messages/"+messageID.Hex()+"/viewing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockMessageSvc.AssertNotCalled(t, "UpdateViewingStatus")
}

func TestRestMessageHandler_UpdateViewingStatus_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockMessageSvc := new(MockMessageService)
	handler := handlers.NewRestMessageHandler(mockMessageSvc, new(MockUserService), new(MockPropertyService), new(MockAsynqClient))

	userID := primitive.NewObjectID()
	messageID := primitive.NewObjectID()
	r := gin.New()
	r.PUT("/api/v1/messages/:id/viewing", authAs(userID, models.RoleLandlord), handler.UpdateViewingStatus)

	updated := &models.Message{
		ID:             messageID,
		ReceiverID:     userID,
		ViewingRequest: &models.ViewingRequest{Status: models.ViewingStatusAccepted},
	}
	mockMessageSvc.On("UpdateViewingStatus", mock.Anything, messageID, userID, models.ViewingStatusAccepted).
		Return(updated, nil)

	body := `{"status":"accepted"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/messages/"+messageID.Hex()+"/viewing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockMessageSvc.AssertExpectations(t)
}
