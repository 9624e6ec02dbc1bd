package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"gorm.io/gorm"
)

// CreatePromotionRequest represents the request body for creating a promotion
type CreatePromotionRequest struct {
	Name          string    `json:"name" binding:"required"`
	Description   string    `json:"description"`
	Code          string    `json:"code" binding:"required"`
	Type          string    `json:"type" binding:"required"`
	Value         float64   `json:"value" binding:"required"`
	UsageType     string    `json:"usage_type" binding:"required"`
	MaxUses       *int      `json:"max_uses" binding:"omitempty,gte=0"`
	MinOrderValue *float64  `json:"min_order_value" binding:"omitempty,gte=0"`
	MaxDiscount   *float64  `json:"max_discount" binding:"omitempty,gte=0"`
	IsActive      *bool     `json:"is_active"`
	StartDate     time.Time `json:"start_date" binding:"required"`
	EndDate       time.Time `json:"end_date" binding:"required"`
}

// UpdatePromotionRequest is a partial update. A zero max_uses, min_order_value
// or max_discount clears the limit.
type UpdatePromotionRequest struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	Code          *string    `json:"code"`
	Type          *string    `json:"type"`
	Value         *float64   `json:"value"`
	UsageType     *string    `json:"usage_type"`
	MaxUses       *int       `json:"max_uses" binding:"omitempty,gte=0"`
	MinOrderValue *float64   `json:"min_order_value" binding:"omitempty,gte=0"`
	MaxDiscount   *float64   `json:"max_discount" binding:"omitempty,gte=0"`
	IsActive      *bool      `json:"is_active"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
}

// ValidatePromotionRequest represents the request body for checking a code against a cart total
type ValidatePromotionRequest struct {
	Code       string  `json:"code"`
	OrderTotal float64 `json:"order_total"`
	UserID     *uint   `json:"user_id"`
}

// ValidationResult is the body of a promotion check. Business rejections are
// reported here with is_valid=false rather than as HTTP errors.
type ValidationResult struct {
	IsValid        bool                      `json:"is_valid"`
	Error          string                    `json:"error,omitempty"`
	Promotion      *models.PromotionSnapshot `json:"promotion,omitempty"`
	Subtotal       float64                   `json:"subtotal"`
	DiscountAmount float64                   `json:"discount_amount"`
	Total          float64                   `json:"total"`
}

type adminPromotionView struct {
	models.Promotion
	UsageCount int64 `json:"usage_count"`
}

type publicPromotionView struct {
	ID            uint                 `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Code          string               `json:"code"`
	Type          models.PromotionType `json:"type"`
	Value         float64              `json:"value"`
	MinOrderValue *float64             `json:"min_order_value"`
	MaxDiscount   *float64             `json:"max_discount"`
	EndDate       time.Time            `json:"end_date"`
}

func newPublicPromotionView(p models.Promotion) publicPromotionView {
	return publicPromotionView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Code:          p.Code,
		Type:          p.Type,
		Value:         p.Value,
		MinOrderValue: p.MinOrderValue,
		MaxDiscount:   p.MaxDiscount,
		EndDate:       p.EndDate,
	}
}

func withCreator(db *gorm.DB) *gorm.DB {
	return db.Preload("CreatedBy", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped().Select("id", "name", "email")
	})
}

// validatePromotionTerms checks the enum, percentage and date rules shared by create and update
func validatePromotionTerms(c *gin.Context, p models.Promotion) bool {
	switch {
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Start and end dates are required")
	case !p.Type.IsValid():
		respondError(c, http.StatusBadRequest, "INVALID_PROMOTION_TYPE", "Invalid promotion type")
	case !p.UsageType.IsValid():
		respondError(c, http.StatusBadRequest, "INVALID_USAGE_TYPE", "Invalid usage type")
	case p.Value < 0:
		respondError(c, http.StatusBadRequest, "INVALID_VALUE", "Value must not be negative")
	case p.Type == models.PromotionTypePercentage && p.Value > 100:
		respondError(c, http.StatusBadRequest, "INVALID_VALUE", "Percentage must be between 0 and 100")
	case !p.StartDate.Before(p.EndDate):
		respondError(c, http.StatusBadRequest, "INVALID_DATES", "End date must be after start date")
	case strings.TrimSpace(p.Name) == "" || p.Code == "":
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Name and code are required")
	default:
		return true
	}
	return false
}

// optionalLimit maps a zero limit to "no limit"
func optionalLimit[T int | float64](v *T) *T {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// ListPromotions handles GET /api/promotions. Admins receive every promotion
// with its usage count; everyone else only the ones running now.
func ListPromotions(c *gin.Context) {
	ctx := c.Request.Context()
	db := config.GetDB().WithContext(ctx)

	if middleware.IsAdmin(c) {
		var promotions []models.Promotion
		if err := withCreator(db).Order("created_at DESC, id DESC").Find(&promotions).Error; err != nil {
			respondInternal(c, "DATABASE_ERROR", "Failed to retrieve promotions", err)
			return
		}

		ids := make([]uint, 0, len(promotions))
		for _, p := range promotions {
			ids = append(ids, p.ID)
		}
		counts, err := services.NewPromotionService(config.GetDB()).UsageCounts(ctx, ids)
		if err != nil {
			respondInternal(c, "DATABASE_ERROR", "Failed to retrieve promotion usage", err)
			return
		}

		views := make([]adminPromotionView, 0, len(promotions))
		for _, p := range promotions {
			views = append(views, adminPromotionView{Promotion: p, UsageCount: counts[p.ID]})
		}
		respondData(c, http.StatusOK, views)
		return
	}

	now := time.Now()
	var promotions []models.Promotion
	if err := db.Where("is_active = ? AND start_date <= ? AND end_date >= ?", true, now, now).
		Order("end_date ASC").
		Find(&promotions).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve promotions", err)
		return
	}

	views := make([]publicPromotionView, 0, len(promotions))
	for _, p := range promotions {
		views = append(views, newPublicPromotionView(p))
	}
	respondData(c, http.StatusOK, views)
}

// GetPromotion handles GET /api/promotions/:id. Promotions that are not
// running look missing to non-admins.
func GetPromotion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var promotion models.Promotion
	if err := withCreator(config.GetDB().WithContext(ctx)).First(&promotion, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "PROMOTION_NOT_FOUND", "Promotion not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve promotion", err)
		return
	}

	if !middleware.IsAdmin(c) {
		if !promotion.IsRunning(time.Now()) {
			respondError(c, http.StatusNotFound, "PROMOTION_NOT_FOUND", "Promotion not found")
			return
		}
		respondData(c, http.StatusOK, newPublicPromotionView(promotion))
		return
	}

	counts, err := services.NewPromotionService(config.GetDB()).UsageCounts(ctx, []uint{promotion.ID})
	if err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve promotion usage", err)
		return
	}
	respondData(c, http.StatusOK, adminPromotionView{Promotion: promotion, UsageCount: counts[promotion.ID]})
}

// CreatePromotion handles POST /api/promotions (admin)
func CreatePromotion(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	promotion := models.Promotion{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Code:          services.NormalizeCode(req.Code),
		Type:          models.PromotionType(req.Type),
		Value:         req.Value,
		UsageType:     models.UsageType(req.UsageType),
		MaxUses:       optionalLimit(req.MaxUses),
		MinOrderValue: optionalLimit(req.MinOrderValue),
		MaxDiscount:   optionalLimit(req.MaxDiscount),
		IsActive:      true,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		CreatedByID:   user.ID,
	}
	if req.IsActive != nil {
		promotion.IsActive = *req.IsActive
	}

	if !validatePromotionTerms(c, promotion) {
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Create(&promotion).Error; err != nil {
		if isDuplicateKeyError(err) {
			respondError(c, http.StatusBadRequest, "PROMOTION_CODE_EXISTS", "Promotion code already exists")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to create promotion", err)
		return
	}

	promotion.CreatedBy = user
	respondData(c, http.StatusCreated, promotion)
}

// UpdatePromotion handles PUT /api/promotions/:id (admin). Only provided fields change.
func UpdatePromotion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var promotion models.Promotion
	if err := db.First(&promotion, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "PROMOTION_NOT_FOUND", "Promotion not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve promotion", err)
		return
	}

	if req.Name != nil {
		promotion.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		promotion.Description = *req.Description
	}
	if req.Code != nil {
		promotion.Code = services.NormalizeCode(*req.Code)
	}
	if req.Type != nil {
		promotion.Type = models.PromotionType(*req.Type)
	}
	if req.Value != nil {
		promotion.Value = *req.Value
	}
	if req.UsageType != nil {
		promotion.UsageType = models.UsageType(*req.UsageType)
	}
	if req.MaxUses != nil {
		promotion.MaxUses = optionalLimit(req.MaxUses)
	}
	if req.MinOrderValue != nil {
		promotion.MinOrderValue = optionalLimit(req.MinOrderValue)
	}
	if req.MaxDiscount != nil {
		promotion.MaxDiscount = optionalLimit(req.MaxDiscount)
	}
	if req.IsActive != nil {
		promotion.IsActive = *req.IsActive
	}
	if req.StartDate != nil {
		promotion.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		promotion.EndDate = *req.EndDate
	}

	if !validatePromotionTerms(c, promotion) {
		return
	}

	// Select("*") so cleared limits are written as NULL
	if err := db.Model(&promotion).Select("*").Omit("CreatedAt", "CurrentUses").Updates(&promotion).Error; err != nil {
		if isDuplicateKeyError(err) {
			respondError(c, http.StatusBadRequest, "PROMOTION_CODE_EXISTS", "Promotion code already exists")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to update promotion", err)
		return
	}

	if err := withCreator(db).First(&promotion, id).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to load promotion", err)
		return
	}
	respondData(c, http.StatusOK, promotion)
}

// DeletePromotion handles DELETE /api/promotions/:id (admin). Orders keep
// their promotion snapshot.
func DeletePromotion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	res := config.GetDB().WithContext(c.Request.Context()).Delete(&models.Promotion{}, id)
	if res.Error != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to delete promotion", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "PROMOTION_NOT_FOUND", "Promotion not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidatePromotion handles POST /api/promotions/validate
func ValidatePromotion(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ValidatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.OrderTotal <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing required fields")
		return
	}

	userID := user.ID
	if req.UserID != nil && *req.UserID != user.ID {
		if !user.IsAdmin() {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "Only admins can validate on behalf of another user")
			return
		}
		userID = *req.UserID
	}

	result, err := checkPromotion(c, req.Code, req.OrderTotal, userID)
	if err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to validate promotion", err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// checkPromotion folds business rejections into the result and returns only storage errors
func checkPromotion(c *gin.Context, code string, subtotal float64, userID uint) (ValidationResult, error) {
	quote, err := services.NewPromotionService(config.GetDB()).Validate(c.Request.Context(), code, subtotal, userID)
	if err != nil {
		var promoErr *services.PromotionError
		if errors.As(err, &promoErr) {
			rounded := services.RoundMoney(subtotal)
			return ValidationResult{IsValid: false, Error: promoErr.Reason, Subtotal: rounded, Total: rounded}, nil
		}
		return ValidationResult{}, err
	}

	return ValidationResult{
		IsValid:        true,
		Promotion:      quote.Promotion.Snapshot(),
		Subtotal:       quote.Subtotal,
		DiscountAmount: quote.DiscountAmount,
		Total:          quote.Total,
	}, nil
}
