package controllers

import (
	"html"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/services"
)

// contactPolicy strips every tag; script and style contents go with them
var contactPolicy = bluemonday.StrictPolicy()

// ContactRequest is a contact or custom build submission. Website is a
// honeypot that real visitors never fill in.
type ContactRequest struct {
	Type           string `json:"type"`
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	Subject        string `json:"subject"`
	Message        string `json:"message" binding:"required_without=Description"`
	ProjectType    string `json:"project_type"`
	Timeline       string `json:"timeline"`
	Budget         string `json:"budget"`
	Dimensions     string `json:"dimensions"`
	WoodPreference string `json:"wood_preference"`
	Description    string `json:"description" binding:"required_without=Message"`
	Inspiration    string `json:"inspiration"`
	Website        string `json:"website"`
}

// sanitize drops markup and returns plain text. Templates escape it again on render.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(contactPolicy.Sanitize(s)))
}

func (r ContactRequest) sanitized() services.ContactMessage {
	kind := strings.TrimSpace(r.Type)
	if kind == "" {
		kind = "contact"
	}
	return services.ContactMessage{
		Type:           kind,
		Name:           sanitize(r.Name),
		Email:          sanitize(r.Email),
		Phone:          sanitize(r.Phone),
		Subject:        sanitize(r.Subject),
		Message:        sanitize(r.Message),
		ProjectType:    sanitize(r.ProjectType),
		Timeline:       sanitize(r.Timeline),
		Budget:         sanitize(r.Budget),
		Dimensions:     sanitize(r.Dimensions),
		WoodPreference: sanitize(r.WoodPreference),
		Description:    sanitize(r.Description),
		Inspiration:    sanitize(r.Inspiration),
	}
}

// SubmitContact handles POST /api/contact - forwards the form to the shop inbox
func SubmitContact(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	if limiter := services.GetContactLimiter(); limiter != nil {
		decision, err := limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			log.Warn("contact rate limiter unavailable", slog.Any("error", err))
		} else if !decision.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				},
				"retry_after_minutes": int(math.Ceil(decision.RetryAfter.Minutes())),
			})
			return
		}
	}

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if strings.TrimSpace(req.Website) != "" {
		log.Info("contact honeypot triggered", slog.String("ip", c.ClientIP()))
		respondError(c, http.StatusBadRequest, "SPAM_DETECTED", "Spam detected")
		return
	}

	// markup-only fields are empty once sanitized
	msg := req.sanitized()
	if msg.Name == "" || (msg.Message == "" && msg.Description == "") {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Name, email, and message/description are required")
		return
	}

	notifier := services.GetNotifier()
	if notifier == nil {
		respondError(c, http.StatusInternalServerError, "EMAIL_FAILED", "Email service configuration error")
		return
	}

	result := notifier.SendContactMessage(ctx, msg)
	if !result.Success {
		respondError(c, http.StatusInternalServerError, "EMAIL_FAILED", "Failed to send message. Please try again later.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message sent successfully",
	})
}
