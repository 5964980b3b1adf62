package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// GORMCrashpadRepository is a GORM implementation of CrashpadRepository.
type GORMCrashpadRepository struct {
	db *gorm.DB
}

func NewGORMCrashpadRepository(db *gorm.DB) *GORMCrashpadRepository {
	return &GORMCrashpadRepository{db: db}
}

func (r *GORMCrashpadRepository) GetAll() ([]models.Crashpad, error) {
	var pads []models.Crashpad
	if err := r.db.Find(&pads).Error; err != nil {
		return nil, fmt.Errorf("failed to get all crashpads: %w", err)
	}
	return pads, nil
}

func (r *GORMCrashpadRepository) GetByID(id string) (*models.Crashpad, error) {
	var pad models.Crashpad
	if err := r.db.First(&pad, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("crashpad with ID %s: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get crashpad by ID %s: %w", id, err)
	}
	return &pad, nil
}

func (r *GORMCrashpadRepository) GetByIDs(ids []string) ([]models.Crashpad, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var pads []models.Crashpad
	if err := r.db.Where("id IN ?", ids).Find(&pads).Error; err != nil {
		return nil, fmt.Errorf("failed to get crashpads by IDs: %w", err)
	}
	return pads, nil
}

func (r *GORMCrashpadRepository) Create(pad *models.Crashpad) error {
	if pad.ID == "" {
		pad.ID = uuid.New().String()
	}
	if err := r.db.Create(pad).Error; err != nil {
		return fmt.Errorf("failed to create crashpad: %w", err)
	}
	return nil
}
