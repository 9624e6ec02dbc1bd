package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rusticroots/storefront-api/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPassword is the plain-text password of every fixture user
const DefaultPassword = "password123"

// NewTestDB opens a private in-memory SQLite database with every model migrated.
// The database is closed when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to open test database")
	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to migrate test database")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with DefaultPassword
func CreateUser(t *testing.T, db *gorm.DB, name, email, role string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	require.NoError(t, db.Create(&user).Error, "Failed to create user")
	return user
}

// CreateProduct inserts a product owned by ownerID
func CreateProduct(t *testing.T, db *gorm.DB, ownerID uint, name string, price float64) models.Product {
	t.Helper()

	product := models.Product{
		Name:        name,
		Description: name + " handcrafted from reclaimed timber",
		Price:       price,
		Images:      []string{"https://example.com/" + uuid.NewString() + ".jpg"},
		Category:    "tables",
		Stock:       5,
		OwnerID:     ownerID,
	}
	require.NoError(t, db.Create(&product).Error, "Failed to create product")
	return product
}

// PromotionOption customizes CreatePromotion
type PromotionOption func(*models.Promotion)

// WithMaxUses caps total redemptions
func WithMaxUses(n int) PromotionOption {
	return func(p *models.Promotion) { p.MaxUses = &n }
}

// WithMinOrderValue sets the minimum subtotal
func WithMinOrderValue(v float64) PromotionOption {
	return func(p *models.Promotion) { p.MinOrderValue = &v }
}

// WithMaxDiscount caps a percentage discount
func WithMaxDiscount(v float64) PromotionOption {
	return func(p *models.Promotion) { p.MaxDiscount = &v }
}

// WithUsageType sets ONE_TIME or MULTIPLE_USE
func WithUsageType(u models.UsageType) PromotionOption {
	return func(p *models.Promotion) { p.UsageType = u }
}

// WithWindow sets the start and end dates
func WithWindow(start, end time.Time) PromotionOption {
	return func(p *models.Promotion) {
		p.StartDate = start
		p.EndDate = end
	}
}

// Inactive disables the promotion
func Inactive() PromotionOption {
	return func(p *models.Promotion) { p.IsActive = false }
}

// CreatePromotion inserts an active MULTIPLE_USE promotion running from an
// hour ago until next month, adjusted by opts
func CreatePromotion(t *testing.T, db *gorm.DB, creatorID uint, code string, typ models.PromotionType, value float64, opts ...PromotionOption) models.Promotion {
	t.Helper()

	now := time.Now()
	promo := models.Promotion{
		Name:        code + " promotion",
		Code:        code,
		Type:        typ,
		Value:       value,
		UsageType:   models.UsageTypeMultipleUse,
		IsActive:    true,
		StartDate:   now.Add(-time.Hour),
		EndDate:     now.AddDate(0, 1, 0),
		CreatedByID: creatorID,
	}
	for _, opt := range opts {
		opt(&promo)
	}

	require.NoError(t, db.Create(&promo).Error, "Failed to create promotion")
	return promo
}

// CreateWelcomePromotion inserts WELCOME10: 10% off, max $200, min order $100
func CreateWelcomePromotion(t *testing.T, db *gorm.DB, creatorID uint) models.Promotion {
	t.Helper()
	return CreatePromotion(t, db, creatorID, "WELCOME10", models.PromotionTypePercentage, 10,
		WithMaxDiscount(200), WithMinOrderValue(100), WithUsageType(models.UsageTypeOneTime))
}
