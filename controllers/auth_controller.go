package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"gorm.io/gorm"
)

const forgotPasswordMessage = "If an account with this email exists, a password reset link has been sent."

// RegisterRequest represents the request body for creating an account
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents the request body for signing in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest represents the request body for requesting a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest represents the request body for choosing a new password
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /api/auth/register - creates a customer account
func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}

	hash, err := services.HashPassword(req.Password)
	if respondPasswordError(c, err) {
		return
	}
	if err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	email := normalizeEmail(req.Email)

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	if existing > 0 {
		respondError(c, http.StatusBadRequest, "USER_EXISTS", "User already exists")
		return
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		if isDuplicateKeyError(err) {
			respondError(c, http.StatusBadRequest, "USER_EXISTS", "User already exists")
			return
		}
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	dispatchEmail(c.Request.Context(), func(ctx context.Context, n services.Notifier) {
		n.SendWelcome(ctx, user)
	})

	respondData(c, http.StatusCreated, user)
}

// Login handles POST /api/auth/login - exchanges credentials for a session token
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
			return
		}
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	if !services.CheckPassword(user.PasswordHash, req.Password) {
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	sessions := services.GetSessionService()
	token, expiresAt, err := sessions.IssueToken(user)
	if err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	setSessionCookie(c, token, int(time.Until(expiresAt).Seconds()))
	respondData(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       user,
	})
}

// Logout handles POST /api/auth/logout - clears the session cookie
func Logout(c *gin.Context) {
	setSessionCookie(c, "", -1)
	respondData(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /api/auth/me - returns the signed-in user
func Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, user)
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is the
// same whether or not the account exists.
func ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Email is required")
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var user models.User
	err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondData(c, http.StatusOK, gin.H{"message": forgotPasswordMessage})
		return
	case err != nil:
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	token, expiry, err := services.NewResetToken(time.Now())
	if err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	if err := db.Model(&user).Updates(map[string]interface{}{
		"reset_token":        token,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	dispatchEmail(c.Request.Context(), func(ctx context.Context, n services.Notifier) {
		n.SendPasswordReset(ctx, user, token)
	})

	respondData(c, http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

// ResetPassword handles POST /api/auth/reset-password
func ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Token and password are required")
		return
	}

	hash, err := services.HashPassword(req.Password)
	if respondPasswordError(c, err) {
		return
	}
	if err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("reset_token = ? AND reset_token_expiry > ?", req.Token, time.Now()).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid or expired reset token")
			return
		}
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	if err := db.Model(&user).Updates(map[string]interface{}{
		"password_hash":      hash,
		"reset_token":        nil,
		"reset_token_expiry": nil,
	}).Error; err != nil {
		respondInternal(c, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("password reset", slog.Uint64("user_id", uint64(user.ID)))
	respondData(c, http.StatusOK, gin.H{"message": "Password reset successful"})
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	secure := false
	if cfg := config.GetConfig(); cfg != nil {
		secure = cfg.IsProduction()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", secure, true)
}

// dispatchEmail hands send to the global dispatcher with a context that
// outlives the request
func dispatchEmail(ctx context.Context, send func(context.Context, services.Notifier)) {
	notifier := services.GetNotifier()
	if notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	services.GetDispatcher().Dispatch(func() {
		send(detached, notifier)
	})
}
