package models

import (
	"time"

	"gorm.io/gorm"
)

// PromotionType decides how Promotion.Value is applied
type PromotionType string

const (
	PromotionTypeFixedAmount PromotionType = "FIXED_AMOUNT"
	PromotionTypePercentage  PromotionType = "PERCENTAGE"
)

// IsValid reports whether t is a known promotion type
func (t PromotionType) IsValid() bool {
	return t == PromotionTypeFixedAmount || t == PromotionTypePercentage
}

// UsageType limits how often one user may apply a promotion
type UsageType string

const (
	UsageTypeOneTime     UsageType = "ONE_TIME"
	UsageTypeMultipleUse UsageType = "MULTIPLE_USE"
)

// IsValid reports whether u is a known usage type
func (u UsageType) IsValid() bool {
	return u == UsageTypeOneTime || u == UsageTypeMultipleUse
}

// Promotion is an admin-managed discount code
type Promotion struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Code          string         `gorm:"uniqueIndex:idx_promotions_code_active,where:deleted_at IS NULL;not null" json:"code"` // always upper case
	Type          PromotionType  `gorm:"type:varchar(32);not null" json:"type"`
	Value         float64        `gorm:"type:decimal(10,2);not null" json:"value"`
	UsageType     UsageType      `gorm:"type:varchar(32);not null" json:"usage_type"`
	MaxUses       *int           `json:"max_uses"`
	CurrentUses   int            `gorm:"not null" json:"current_uses"`
	MinOrderValue *float64       `gorm:"type:decimal(10,2)" json:"min_order_value"`
	MaxDiscount   *float64       `gorm:"type:decimal(10,2)" json:"max_discount"`
	IsActive      bool           `gorm:"not null" json:"is_active"`
	StartDate     time.Time      `gorm:"not null" json:"start_date"`
	EndDate       time.Time      `gorm:"not null" json:"end_date"`
	CreatedByID   uint           `gorm:"not null;index" json:"created_by_id"`
	CreatedBy     *User          `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Promotion model
func (Promotion) TableName() string {
	return "promotions"
}

// IsRunning reports whether the promotion is active and inside its date window at now
func (p Promotion) IsRunning(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// Snapshot copies the promotion terms for storing on an order
func (p Promotion) Snapshot() *PromotionSnapshot {
	return &PromotionSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Code:          p.Code,
		Type:          p.Type,
		Value:         p.Value,
		UsageType:     p.UsageType,
		MinOrderValue: p.MinOrderValue,
		MaxDiscount:   p.MaxDiscount,
	}
}

// PromotionSnapshot is the denormalized copy of a promotion stored on an
// order, so later edits to the promotion leave order history untouched.
type PromotionSnapshot struct {
	ID            uint          `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Code          string        `json:"code"`
	Type          PromotionType `json:"type"`
	Value         float64       `json:"value"`
	UsageType     UsageType     `json:"usage_type"`
	MinOrderValue *float64      `json:"min_order_value,omitempty"`
	MaxDiscount   *float64      `json:"max_discount,omitempty"`
}

// PromotionUsage records one application of a promotion by a user
type PromotionUsage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PromotionID    uint      `gorm:"not null;index:idx_promotion_usage_user" json:"promotion_id"`
	UserID         uint      `gorm:"not null;index:idx_promotion_usage_user" json:"user_id"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	DiscountAmount float64   `gorm:"type:decimal(10,2);not null" json:"discount_amount"`
	UsedAt         time.Time `gorm:"not null" json:"used_at"`
}

// TableName specifies the table name for the PromotionUsage model
func (PromotionUsage) TableName() string {
	return "promotion_usages"
}
