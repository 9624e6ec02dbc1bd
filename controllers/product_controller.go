package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"gorm.io/gorm"
)

// CreateProductRequest represents the request body for adding a product
type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" binding:"gte=0"`
	Category    string   `json:"category"`
	Stock       int      `json:"stock" binding:"gte=0"`
	Images      []string `json:"images"`
	Featured    bool     `json:"featured"`
}

// UpdateProductRequest represents a partial product update. Omitted fields are left untouched.
type UpdateProductRequest struct {
	Name        *string   `json:"name" binding:"omitempty,min=1"`
	Description *string   `json:"description"`
	Price       *float64  `json:"price" binding:"omitempty,gte=0"`
	Category    *string   `json:"category"`
	Stock       *int      `json:"stock" binding:"omitempty,gte=0"`
	Images      *[]string `json:"images"`
	Featured    *bool     `json:"featured"`
}

func withOwnerName(db *gorm.DB) *gorm.DB {
	return db.Preload("Owner", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped().Select("id", "name")
	})
}

// ListProducts handles GET /api/products - public catalog with optional category and featured filters
func ListProducts(c *gin.Context) {
	query := withOwnerName(config.GetDB().WithContext(c.Request.Context())).
		Order("created_at DESC, id DESC")

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	if featured := c.Query("featured"); featured != "" {
		value, err := strconv.ParseBool(featured)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_FILTER", "featured must be true or false")
			return
		}
		query = query.Where("featured = ?", value)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve products", err)
		return
	}

	respondData(c, http.StatusOK, products)
}

// ListFeaturedProducts handles GET /api/products/featured, served from the product cache when warm
func ListFeaturedProducts(c *gin.Context) {
	ctx := c.Request.Context()
	cache := services.GetProductCache()

	if products, ok := cache.GetFeatured(ctx); ok {
		c.Header("X-Cache", "HIT")
		respondData(c, http.StatusOK, products)
		return
	}

	var products []models.Product
	if err := withOwnerName(config.GetDB().WithContext(ctx)).
		Where("featured = ?", true).
		Order("created_at DESC, id DESC").
		Find(&products).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to fetch featured products", err)
		return
	}

	if err := cache.SetFeatured(ctx, products); err != nil {
		logger.FromContext(ctx).Warn("failed to cache featured products", slog.Any("error", err))
	}

	c.Header("X-Cache", "MISS")
	respondData(c, http.StatusOK, products)
}

// GetProduct handles GET /api/products/:id
func GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := withOwnerName(config.GetDB().WithContext(c.Request.Context())).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve product", err)
		return
	}

	respondData(c, http.StatusOK, product)
}

// CreateProduct handles POST /api/products (admin). The caller becomes the owner.
func CreateProduct(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}

	product := models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       services.RoundMoney(req.Price),
		Category:    req.Category,
		Stock:       req.Stock,
		Images:      images,
		Featured:    req.Featured,
		OwnerID:     user.ID,
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Create(&product).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to create product", err)
		return
	}

	invalidateProductCache(c)
	respondData(c, http.StatusCreated, product)
}

// UpdateProduct handles PATCH /api/products/:id (admin)
func UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve product", err)
		return
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = services.RoundMoney(*req.Price)
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Images != nil {
		product.Images = *req.Images
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}

	if err := db.Save(&product).Error; err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to update product", err)
		return
	}

	invalidateProductCache(c)
	respondData(c, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/:id (admin). Products are soft
// deleted so existing orders keep their line items.
func DeleteProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	res := config.GetDB().WithContext(c.Request.Context()).Delete(&models.Product{}, id)
	if res.Error != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to delete product", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}

	invalidateProductCache(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product deleted successfully",
	})
}

func invalidateProductCache(c *gin.Context) {
	if err := services.GetProductCache().Invalidate(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context()).Warn("failed to invalidate product cache", slog.Any("error", err))
	}
}
