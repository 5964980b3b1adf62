package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Crashpad represents a rentable bouldering pad. Rental pricing is tiered:
// the daily rate drops once a stay reaches seven and again fourteen
// inclusive days.
type Crashpad struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name            string          `json:"name" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=2,max=100"`
	Brand           string          `json:"brand" gorm:"type:varchar(100)" validate:"required"`
	Model           string          `json:"model" gorm:"type:varchar(100)" validate:"required"`
	Dimensions      string          `json:"dimensions" gorm:"type:varchar(100)"`
	Description     string          `json:"description"`
	DayRate         decimal.Decimal `json:"day_rate" gorm:"type:decimal(10,2)"`
	SevenDayRate    decimal.Decimal `json:"seven_day_rate" gorm:"type:decimal(10,2)"`
	FourteenDayRate decimal.Decimal `json:"fourteen_day_rate" gorm:"type:decimal(10,2)"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
