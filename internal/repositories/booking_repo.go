package repositories

import (
	"time"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// BookingRepository defines the interface for rental booking data access.
// Only confirmed bookings participate in availability checks.
type BookingRepository interface {
	HasConflict(crashpadID string, checkIn, checkOut time.Time) (bool, error)
	// UnavailableCrashpadIDs returns every crashpad with a confirmed
	// booking overlapping the given stay, in a single query.
	UnavailableCrashpadIDs(checkIn, checkOut time.Time) ([]string, error)
	GetByOrderID(orderID string) ([]models.CrashpadBooking, error)
}
