package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"gorm.io/gorm"
)

// CartQuoteRequest mirrors the checkout body
type CartQuoteRequest struct {
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PromotionCode string             `json:"promotion_code"`
}

// CartLine is one priced cart line
type CartLine struct {
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Image       string  `json:"image,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	InStock     bool    `json:"in_stock"`
}

// CartQuote is the priced cart. Promotion is set when a code was supplied.
type CartQuote struct {
	Items          []CartLine        `json:"items"`
	Subtotal       float64           `json:"subtotal"`
	DiscountAmount float64           `json:"discount_amount"`
	Total          float64           `json:"total"`
	Promotion      *ValidationResult `json:"promotion,omitempty"`
}

// QuoteCart handles POST /api/cart/quote - prices a cart from live catalog data
// without placing an order. Promotion codes are only checked for signed-in users.
func QuoteCart(c *gin.Context) {
	var req CartQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	lines := make([]CartLine, 0, len(req.Items))
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		var product models.Product
		if err := db.First(&product, item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "One or more products could not be found")
				return
			}
			respondInternal(c, "DATABASE_ERROR", "Failed to load products", err)
			return
		}

		unitPrice := services.RoundMoney(product.Price)
		items = append(items, models.OrderItem{ProductID: product.ID, Quantity: item.Quantity, UnitPrice: unitPrice})
		lines = append(lines, CartLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Image:       product.PrimaryImage(),
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   services.LineTotal(unitPrice, item.Quantity),
			InStock:     product.Stock >= item.Quantity,
		})
	}

	subtotal := services.Subtotal(items)
	quote := CartQuote{Items: lines, Subtotal: subtotal, Total: subtotal}

	if code := strings.TrimSpace(req.PromotionCode); code != "" {
		user, err := middleware.GetCurrentUser(c)
		if err != nil {
			quote.Promotion = &ValidationResult{IsValid: false, Error: "Sign in to apply a promotion code", Subtotal: subtotal, Total: subtotal}
		} else {
			result, err := checkPromotion(c, code, subtotal, user.ID)
			if err != nil {
				respondInternal(c, "DATABASE_ERROR", "Failed to validate promotion", err)
				return
			}
			quote.Promotion = &result
			if result.IsValid {
				quote.DiscountAmount = result.DiscountAmount
				quote.Total = result.Total
			}
		}
	}

	respondData(c, http.StatusOK, quote)
}
