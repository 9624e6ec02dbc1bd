package models

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a piece of furniture in the catalog
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Price       float64        `gorm:"type:decimal(10,2);not null" json:"price"`
	Images      []string       `gorm:"type:text;serializer:json" json:"images"` // first image is the primary one
	Category    string         `gorm:"index" json:"category"`
	Stock       int            `gorm:"not null" json:"stock"`
	Featured    bool           `gorm:"index" json:"featured"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Owner       *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// PrimaryImage returns the first image URL, or an empty string
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
