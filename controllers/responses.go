package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"gorm.io/gorm"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondInternal logs err with the request logger and hides it from the client
func respondInternal(c *gin.Context, code, message string, err error) {
	logger.FromContext(c.Request.Context()).Error(message, slog.String("code", code), slog.Any("error", err))
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, code, message)
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// isDuplicateKeyError works with both PostgreSQL and SQLite
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") ||
		strings.Contains(errMsg, "unique constraint") ||
		strings.Contains(errMsg, "unique")
}

// parseIDParam reads a positive numeric path parameter, answering 400 otherwise
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// currentUser returns the session user, answering 401 when there is none
func currentUser(c *gin.Context) (*models.User, bool) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil, false
	}
	return user, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// respondPasswordError writes the 400 for a password HashPassword rejected.
// It reports false for any other error.
func respondPasswordError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrPasswordTooShort):
		respondError(c, http.StatusBadRequest, "PASSWORD_TOO_SHORT", "Password must be at least 6 characters")
	case errors.Is(err, services.ErrPasswordTooLong):
		respondError(c, http.StatusBadRequest, "PASSWORD_TOO_LONG", "Password must be at most 72 bytes")
	default:
		return false
	}
	return true
}
