package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/api/middleware"
	"rentsafi/server/internal/cache"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/query"
	"rentsafi/server/internal/services"
	"rentsafi/server/internal/storage"
	"rentsafi/server/internal/tasks"
)

// IAsynqClient defines the interface for the Asynq client methods used
// by the handlers. This allows easier mocking than using the concrete
// asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// listEnvelope is the cached shape of a GET /properties response.
type listEnvelope struct {
	Success    bool              `json:"success"`
	Count      int               `json:"count"`
	Pagination query.Pagination  `json:"pagination"`
	Data       []models.Property `json:"data"`
}

// RestPropertyHandler handles REST requests for properties.
type RestPropertyHandler struct {
	propertyService services.IPropertyService
	storageService  storage.IS3Storage
	taskClient      IAsynqClient
	queryCache      *cache.QueryCache
}

// NewRestPropertyHandler creates a new RestPropertyHandler. queryCache
// may be nil, in which case listing responses are not cached.
func NewRestPropertyHandler(propertyService services.IPropertyService, storageService storage.IS3Storage, taskClient IAsynqClient, queryCache *cache.QueryCache) *RestPropertyHandler {
	return &RestPropertyHandler{
		propertyService: propertyService,
		storageService:  storageService,
		taskClient:      taskClient,
		queryCache:      queryCache,
	}
}

// principalFromContext reconstructs the authenticated principal set by
// the auth middleware. Returns false if the context has no valid identity.
func principalFromContext(c *gin.Context) (services.Principal, bool) {
	idHex := c.GetString(middleware.ContextKeyUserID)
	userID, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return services.Principal{}, false
	}
	role, _ := c.Get(middleware.ContextKeyRole)
	r, ok := role.(models.Role)
	if !ok {
		return services.Principal{}, false
	}
	return services.Principal{UserID: userID, Role: r}, true
}

// GetProperties handles GET /api/v1/properties
func (h *RestPropertyHandler) GetProperties(c *gin.Context) {
	ctx := c.Request.Context()
	values := c.Request.URL.Query()

	var cacheKey string
	if h.queryCache != nil {
		cacheKey = h.queryCache.Key("properties:list", values)
		var cached listEnvelope
		if h.queryCache.Get(ctx, cacheKey, &cached) {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	params := services.ListParams{
		Predicate:  query.ParseListQuery(values),
		Sort:       query.ParseSort(c.Query("sort")),
		Projection: query.ParseSelect(c.Query("select")),
		Window:     query.ParseWindow(c.Query("page"), c.Query("limit"), query.DefaultListLimit),
	}

	properties, total, err := h.propertyService.List(ctx, params)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list properties"})
		return
	}

	envelope := listEnvelope{
		Success:    true,
		Count:      len(properties),
		Pagination: params.Window.Describe(total),
		Data:       properties,
	}
	if h.queryCache != nil {
		h.queryCache.Set(ctx, cacheKey, envelope)
	}
	c.JSON(http.StatusOK, envelope)
}

// SearchProperties handles GET /api/v1/properties/search
func (h *RestPropertyHandler) SearchProperties(c *gin.Context) {
	filter := query.ParseSearchFilter(c.Request.URL.Query())

	properties, err := h.propertyService.Search(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to search properties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(properties),
		"data":    properties,
	})
}

// GetPropertyByID handles GET /api/v1/properties/:id
func (h *RestPropertyHandler) GetPropertyByID(c *gin.Context) {
	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	property, err := h.propertyService.FindByID(c.Request.Context(), propertyID, true)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve property"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": property})
}

// createPropertyRequest is the accepted payload for POST /properties.
type createPropertyRequest struct {
	Title        string              `json:"title" binding:"required"`
	Description  string              `json:"description" binding:"required"`
	PropertyType models.PropertyType `json:"propertyType" binding:"required"`
	Bedrooms     int                 `json:"bedrooms"`
	Bathrooms    int                 `json:"bathrooms"`
	Price        float64             `json:"price" binding:"required,gt=0"`
	Deposit      float64             `json:"deposit"`
	Location     models.Location     `json:"location" binding:"required"`
	Amenities    []string            `json:"amenities"`
	LeaseTerm    models.LeaseTerm    `json:"leaseTerm"`
}

// CreateProperty handles POST /api/v1/properties
func (h *RestPropertyHandler) CreateProperty(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !models.ValidPropertyType(string(req.PropertyType)) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property type"})
		return
	}

	property := &models.Property{
		Title:        req.Title,
		Description:  req.Description,
		PropertyType: req.PropertyType,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		Price:        req.Price,
		Deposit:      req.Deposit,
		Location:     req.Location,
		Amenities:    req.Amenities,
		LeaseTerm:    req.LeaseTerm,
	}

	created, err := h.propertyService.Create(c.Request.Context(), principal.UserID, property)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create property"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created})
}

// UpdateProperty handles PUT /api/v1/properties/:id
func (h *RestPropertyHandler) UpdateProperty(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, err := h.propertyService.Update(c.Request.Context(), propertyID, principal, updates)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Not authorized to update this property"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update property"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
}

// DeleteProperty handles DELETE /api/v1/properties/:id
func (h *RestPropertyHandler) DeleteProperty(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	err = h.propertyService.Delete(c.Request.Context(), propertyID, principal)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Not authorized to delete this property"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete property"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}

// imageUploadRequest is the payload for requesting a presigned upload URL.
type imageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// RequestImageUpload handles POST /api/v1/properties/:id/images. It
// verifies ownership and returns a presigned S3 PUT URL plus the object
// key the client must confirm after uploading.
func (h *RestPropertyHandler) RequestImageUpload(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	var req imageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	property, err := h.propertyService.FindByID(ctx, propertyID, false)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve property"})
		}
		return
	}
	if !principal.CanManage(property.LandlordID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Not authorized to upload images for this property"})
		return
	}

	presignedURL, objectKey, err := h.storageService.GeneratePresignedPutURL(ctx,
		principal.UserID.Hex(),
		propertyID.Hex(),
		req.Filename,
		req.ContentType,
	)
	if err != nil {
		log.Printf("Error generating presigned URL for user %s, property %s: %v", principal.UserID.Hex(), propertyID.Hex(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate upload URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"uploadUrl": presignedURL,
			"objectKey": objectKey,
		},
	})
}

// imageConfirmRequest is the payload for confirming a completed upload.
type imageConfirmRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

// ConfirmImageUpload handles POST /api/v1/properties/:id/images/confirm.
// It schedules background processing of the uploaded object.
func (h *RestPropertyHandler) ConfirmImageUpload(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	var req imageConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	property, err := h.propertyService.FindByID(ctx, propertyID, false)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve property"})
		}
		return
	}
	if !principal.CanManage(property.LandlordID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Not authorized to upload images for this property"})
		return
	}

	task, err := tasks.NewImageProcessTask(req.ObjectKey, propertyID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to schedule image processing"})
		return
	}

	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("ERROR enqueuing image processing task for key %s, property %s: %v", req.ObjectKey, propertyID.Hex(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to schedule image processing"})
		return
	}
	log.Printf("Enqueued image processing task ID %s for key %s, property %s", taskInfo.ID, req.ObjectKey, propertyID.Hex())

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data":    gin.H{"message": "Image upload confirmed, processing scheduled."},
	})
}

// reportRequest is the payload for reporting a property.
type reportRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

// ReportProperty handles POST /api/v1/properties/:id/report
func (h *RestPropertyHandler) ReportProperty(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format"})
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	err = h.propertyService.Report(c.Request.Context(), propertyID, principal.UserID, req.Reason, req.Description)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to report property"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": "Report submitted"}})
}
