package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rusticroots/storefront-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Promotion rejection reasons
const (
	ReasonInvalidCode     = "Invalid promotion code"
	ReasonNotActive       = "Promotion is not active"
	ReasonNotStarted      = "Promotion has not started yet"
	ReasonExpired         = "Promotion has expired"
	ReasonUsageLimit      = "Promotion usage limit reached"
	ReasonAlreadyUsed     = "You have already used this promotion"
	minOrderReasonPattern = "Minimum order value of $%.2f required"
)

// ErrPromotionInvalid matches every *PromotionError
var ErrPromotionInvalid = errors.New("promotion invalid")

// PromotionError is a business-rule rejection of a promotion code
type PromotionError struct {
	Reason string
}

func (e *PromotionError) Error() string { return e.Reason }

func (e *PromotionError) Is(target error) bool { return target == ErrPromotionInvalid }

func rejectPromotion(reason string) error {
	return &PromotionError{Reason: reason}
}

// PromotionQuote is the outcome of a successful validation
type PromotionQuote struct {
	Promotion      *models.Promotion
	Subtotal       float64
	DiscountAmount float64
	Total          float64
}

// PromotionService validates promotion codes against an order subtotal
type PromotionService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPromotionService creates a validator backed by db
func NewPromotionService(db *gorm.DB) *PromotionService {
	return &PromotionService{db: db, now: time.Now}
}

// WithClock replaces the time source, for tests
func (s *PromotionService) WithClock(now func() time.Time) *PromotionService {
	s.now = now
	return s
}

// NormalizeCode trims and upper-cases a promotion code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks code for userID and subtotal without side effects. Business
// rejections are returned as *PromotionError; anything else is a storage error.
func (s *PromotionService) Validate(ctx context.Context, code string, subtotal float64, userID uint) (*PromotionQuote, error) {
	return s.validate(s.db.WithContext(ctx), code, subtotal, userID, false)
}

// validate runs the checks on db. With forUpdate the promotion row stays
// locked until db's transaction ends, serializing checkouts on one code.
func (s *PromotionService) validate(db *gorm.DB, code string, subtotal float64, userID uint, forUpdate bool) (*PromotionQuote, error) {
	query := db
	if forUpdate && db.Dialector.Name() == "postgres" {
		query = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var promo models.Promotion
	if err := query.Where("code = ?", NormalizeCode(code)).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejectPromotion(ReasonInvalidCode)
		}
		return nil, fmt.Errorf("load promotion: %w", err)
	}

	now := s.now()
	switch {
	case !promo.IsActive:
		return nil, rejectPromotion(ReasonNotActive)
	case now.Before(promo.StartDate):
		return nil, rejectPromotion(ReasonNotStarted)
	case now.After(promo.EndDate):
		return nil, rejectPromotion(ReasonExpired)
	case promo.MinOrderValue != nil && subtotal < *promo.MinOrderValue:
		return nil, rejectPromotion(fmt.Sprintf(minOrderReasonPattern, *promo.MinOrderValue))
	case promo.MaxUses != nil && promo.CurrentUses >= *promo.MaxUses:
		return nil, rejectPromotion(ReasonUsageLimit)
	}

	if promo.UsageType == models.UsageTypeOneTime {
		var used int64
		if err := db.Model(&models.PromotionUsage{}).
			Where("promotion_id = ? AND user_id = ?", promo.ID, userID).
			Count(&used).Error; err != nil {
			return nil, fmt.Errorf("count promotion usage: %w", err)
		}
		if used > 0 {
			return nil, rejectPromotion(ReasonAlreadyUsed)
		}
	}

	discount := CalculateDiscount(&promo, subtotal)
	return &PromotionQuote{
		Promotion:      &promo,
		Subtotal:       RoundMoney(subtotal),
		DiscountAmount: discount,
		Total:          ApplyDiscount(subtotal, discount),
	}, nil
}

// UsageCounts returns the number of usage records per promotion id
func (s *PromotionService) UsageCounts(ctx context.Context, ids []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		PromotionID uint
		Count       int64
	}
	err := s.db.WithContext(ctx).Model(&models.PromotionUsage{}).
		Select("promotion_id, count(*) as count").
		Where("promotion_id IN ?", ids).
		Group("promotion_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PromotionID] = row.Count
	}
	return counts, nil
}
