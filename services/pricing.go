package services

import (
	"github.com/rusticroots/storefront-api/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds v to cents, half away from zero
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// LineTotal is quantity * unitPrice rounded to cents
func LineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
}

// Subtotal sums the line totals of items
func Subtotal(items []models.OrderItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// CalculateDiscount applies promo to subtotal. A percentage discount is capped
// by MaxDiscount first; every discount is then capped by the subtotal.
func CalculateDiscount(promo *models.Promotion, subtotal float64) float64 {
	if promo == nil || subtotal <= 0 {
		return 0
	}

	sub := decimal.NewFromFloat(subtotal)
	var discount decimal.Decimal

	switch promo.Type {
	case models.PromotionTypePercentage:
		discount = sub.Mul(decimal.NewFromFloat(promo.Value)).Div(hundred)
		if promo.MaxDiscount != nil {
			discount = decimal.Min(discount, decimal.NewFromFloat(*promo.MaxDiscount))
		}
	case models.PromotionTypeFixedAmount:
		discount = decimal.NewFromFloat(promo.Value)
	default:
		return 0
	}

	discount = decimal.Min(discount, sub)
	if discount.IsNegative() {
		return 0
	}
	return discount.Round(2).InexactFloat64()
}

// ApplyDiscount returns subtotal - discount rounded to cents, never below zero
func ApplyDiscount(subtotal, discount float64) float64 {
	total := decimal.NewFromFloat(subtotal).Sub(decimal.NewFromFloat(discount))
	if total.IsNegative() {
		return 0
	}
	return total.Round(2).InexactFloat64()
}
