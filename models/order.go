package models

import (
	"fmt"
	"time"
)

// OrderStatus is the fulfillment stage of an order
type OrderStatus string

// Order statuses, in the order an order normally moves through them
const (
	OrderStatusReceived       OrderStatus = "RECEIVED_ORDER"
	OrderStatusReviewing      OrderStatus = "REVIEWING_ORDER"
	OrderStatusWorkInProgress OrderStatus = "WORK_IN_PROGRESS"
	OrderStatusInShipping     OrderStatus = "IN_SHIPPING"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
)

// OrderStatuses lists every valid status
var OrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusReviewing,
	OrderStatusWorkInProgress,
	OrderStatusInShipping,
	OrderStatusDelivered,
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Order represents a checked-out cart
type Order struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	Subtotal          float64            `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	DiscountAmount    float64            `gorm:"type:decimal(10,2);not null" json:"discount_amount"`
	Total             float64            `gorm:"type:decimal(10,2);not null" json:"total"`
	Status            OrderStatus        `gorm:"type:varchar(32);not null;index" json:"status"`
	Notes             string             `gorm:"type:text" json:"notes"`
	PromotionID       *uint              `gorm:"index" json:"promotion_id"`
	PromotionSnapshot *PromotionSnapshot `gorm:"type:text;serializer:json" json:"promotion_snapshot,omitempty"`
	UserID            uint               `gorm:"not null;index" json:"user_id"`
	User              User               `gorm:"foreignKey:UserID" json:"user"`
	Items             []OrderItem        `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderNumber is the customer-facing order reference
func (o Order) OrderNumber() string {
	return fmt.Sprintf("RR-%06d", o.ID)
}

// OrderItem is one line of an order. UnitPrice is captured at checkout and
// does not follow later product price changes.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	OrderID     uint    `gorm:"not null;index" json:"order_id"`
	ProductID   uint    `gorm:"not null;index" json:"product_id"`
	Product     Product `gorm:"foreignKey:ProductID" json:"product"`
	ProductName string  `gorm:"not null" json:"product_name"`
	Quantity    int     `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice   float64 `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal is quantity multiplied by the captured unit price
func (i OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}
