package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking status values. Availability checks only count confirmed bookings.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// CrashpadBooking is a rental line frozen at order creation time. The
// customer fields are copied from the order form so the booking keeps its
// historical contact details even if the customer record changes later.
type CrashpadBooking struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BookingNumber string          `json:"booking_number" gorm:"uniqueIndex;type:varchar(32)"`
	OrderID       string          `json:"order_id" gorm:"index;type:varchar(36)"`
	CrashpadID    string          `json:"crashpad_id" gorm:"index;type:varchar(36)"`
	CheckIn       time.Time       `json:"check_in" gorm:"type:date"`
	CheckOut      time.Time       `json:"check_out" gorm:"type:date"`
	RentalDays    int             `json:"rental_days"`
	DailyRate     decimal.Decimal `json:"daily_rate" gorm:"type:decimal(10,2)"`
	TotalPrice    decimal.Decimal `json:"total_price" gorm:"type:decimal(10,2)"`
	CustomerName  string          `json:"customer_name" gorm:"type:varchar(101)"`
	CustomerEmail string          `json:"customer_email" gorm:"type:varchar(254)"`
	CustomerPhone string          `json:"customer_phone" gorm:"type:varchar(20)"`
	Status        string          `json:"status" gorm:"type:varchar(20);default:confirmed"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Overlaps reports whether this booking conflicts with the given stay.
// Intervals are inclusive on both ends: a pad checked out on a date cannot
// be checked in by someone else that same date.
func (b *CrashpadBooking) Overlaps(checkIn, checkOut time.Time) bool {
	return !checkIn.After(b.CheckOut) && !checkOut.Before(b.CheckIn)
}
