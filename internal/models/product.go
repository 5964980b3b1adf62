package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a physical item sold by the shop.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" gorm:"type:varchar(255)" validate:"required,min=3,max=255"`
	Slug        string          `json:"slug" gorm:"uniqueIndex;type:varchar(255)"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	Stock       int             `json:"stock" validate:"gte=0"`
	IsActive    bool            `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasStock reports whether the requested quantity can be fulfilled.
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}
