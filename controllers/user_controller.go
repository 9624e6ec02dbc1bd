package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"gorm.io/gorm"
)

// CreateUserRequest represents the request body for an admin creating an account
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// UpdateUserRequest represents an admin update of any account
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
	Role  string `json:"role"`
}

// UpdateProfileRequest represents the request body for updating one's own profile.
// Role is deliberately absent.
type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

// ListUsers handles GET /api/users (admin)
func ListUsers(c *gin.Context) {
	var users []models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Order("id ASC").Find(&users).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve users", err)
		return
	}
	respondData(c, http.StatusOK, users)
}

// CreateUser handles POST /api/users (admin). Role defaults to USER.
func CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.IsValidRole(role) {
		respondError(c, http.StatusBadRequest, "INVALID_ROLE", "Invalid role specified")
		return
	}

	hash, err := services.HashPassword(req.Password)
	if respondPasswordError(c, err) {
		return
	}
	if err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Failed to create user", err)
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         role,
	}

	if err := config.GetDB().WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isDuplicateKeyError(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this email already exists")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to create user", err)
		return
	}

	respondData(c, http.StatusCreated, user)
}

// UpdateUser handles PATCH /api/users/:id (admin)
func UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if req.Role != "" && !models.IsValidRole(req.Role) {
		respondError(c, http.StatusBadRequest, "INVALID_ROLE", "Invalid role specified")
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve user", err)
		return
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Email != "" {
		updates["email"] = normalizeEmail(req.Email)
	}
	if req.Role != "" {
		updates["role"] = req.Role
	}

	if !applyUserUpdates(c, db, &user, updates) {
		return
	}
	respondData(c, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/:id (admin). Admins cannot delete themselves.
func DeleteUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if id == actor.ID {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Cannot delete your own account")
		return
	}

	res := config.GetDB().WithContext(c.Request.Context()).Delete(&models.User{}, id)
	if res.Error != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to delete user", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}

	logger.FromContext(c.Request.Context()).Info("user deleted",
		slog.Uint64("user_id", uint64(id)),
		slog.Uint64("by", uint64(actor.ID)))
	c.Status(http.StatusNoContent)
}

// UpdateMyProfile handles PUT /api/users/me - updates the caller's name and email
func UpdateMyProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Email != "" {
		updates["email"] = normalizeEmail(req.Email)
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if !applyUserUpdates(c, db, user, updates) {
		return
	}
	respondData(c, http.StatusOK, user)
}

// applyUserUpdates writes updates and reloads user, answering the request on failure
func applyUserUpdates(c *gin.Context, db *gorm.DB, user *models.User, updates map[string]interface{}) bool {
	// If no fields to update, return current user
	if len(updates) == 0 {
		return true
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isDuplicateKeyError(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
			return false
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to update user", err)
		return false
	}

	if err := db.First(user, user.ID).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to load updated user", err)
		return false
	}
	return true
}
