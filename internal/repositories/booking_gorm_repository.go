package repositories

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// GORMBookingRepository is a GORM implementation of BookingRepository.
//
// Overlap is inclusive on both ends: [check_in, check_out] conflicts with
// [other.check_in, other.check_out] iff check_in <= other.check_out AND
// check_out >= other.check_in. A pad returned on a date is only free again
// the following day.
type GORMBookingRepository struct {
	db *gorm.DB
}

func NewGORMBookingRepository(db *gorm.DB) *GORMBookingRepository {
	return &GORMBookingRepository{db: db}
}

func (r *GORMBookingRepository) HasConflict(crashpadID string, checkIn, checkOut time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.CrashpadBooking{}).
		Where("crashpad_id = ? AND status = ?", crashpadID, models.BookingConfirmed).
		Where("check_in <= ? AND check_out >= ?", checkOut, checkIn).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check booking conflicts for crashpad %s: %w", crashpadID, err)
	}
	return count > 0, nil
}

func (r *GORMBookingRepository) UnavailableCrashpadIDs(checkIn, checkOut time.Time) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.CrashpadBooking{}).
		Distinct("crashpad_id").
		Where("status = ?", models.BookingConfirmed).
		Where("check_in <= ? AND check_out >= ?", checkOut, checkIn).
		Pluck("crashpad_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unavailable crashpads: %w", err)
	}
	return ids, nil
}

func (r *GORMBookingRepository) GetByOrderID(orderID string) ([]models.CrashpadBooking, error) {
	var bookings []models.CrashpadBooking
	if err := r.db.Where("order_id = ?", orderID).Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to get bookings for order %s: %w", orderID, err)
	}
	return bookings, nil
}
