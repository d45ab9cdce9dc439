package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/api/middleware"
	"rentsafi/server/internal/auth"
	"rentsafi/server/internal/config"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/services"
)

// RestAuthHandler handles registration, login and account management.
type RestAuthHandler struct {
	userService services.IUserService
	cfg         *config.Config
}

// NewRestAuthHandler creates a new RestAuthHandler.
func NewRestAuthHandler(userService services.IUserService, cfg *config.Config) *RestAuthHandler {
	return &RestAuthHandler{userService: userService, cfg: cfg}
}

// currentUserID extracts the authenticated user's ID from the Gin context.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := primitive.ObjectIDFromHex(c.GetString(middleware.ContextKeyUserID))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return userID, true
}

// tokenResponse issues a JWT for the user and writes the auth envelope.
func (h *RestAuthHandler) tokenResponse(c *gin.Context, status int, user *models.User) {
	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to issue token"})
		return
	}
	c.JSON(status, gin.H{"success": true, "token": token, "data": user})
}

// registerRequest is the accepted payload for POST /auth/register.
type registerRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Phone    string      `json:"phone"`
	Role     models.Role `json:"role" binding:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *RestAuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !models.ValidRole(string(req.Role)) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Role must be landlord or tenant"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Phone, req.Role)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Email already registered"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to register"})
		}
		return
	}

	h.tokenResponse(c, http.StatusCreated, user)
}

// loginRequest is the accepted payload for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/v1/auth/login
func (h *RestAuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to log in"})
		}
		return
	}

	h.tokenResponse(c, http.StatusOK, user)
}

// GetMe handles GET /api/v1/auth/me
func (h *RestAuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve user"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// UpdateDetails handles PUT /api/v1/auth/updatedetails
func (h *RestAuthHandler) UpdateDetails(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	user, err := h.userService.UpdateDetails(c.Request.Context(), userID, updates)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update details"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// updatePasswordRequest is the accepted payload for PUT /auth/updatepassword.
type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// UpdatePassword handles PUT /api/v1/auth/updatepassword
func (h *RestAuthHandler) UpdatePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	err := h.userService.UpdatePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Current password is incorrect"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update password"})
		}
		return
	}

	// Re-issue a token so the client can rotate credentials in one round trip.
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve user"})
		return
	}
	h.tokenResponse(c, http.StatusOK, user)
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so
// this only confirms the client should discard its copy.
func (h *RestAuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}
