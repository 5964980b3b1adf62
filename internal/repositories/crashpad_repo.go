package repositories

import (
	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// CrashpadRepository defines the interface for crashpad data access.
type CrashpadRepository interface {
	GetAll() ([]models.Crashpad, error)
	GetByID(id string) (*models.Crashpad, error)
	GetByIDs(ids []string) ([]models.Crashpad, error)
	Create(pad *models.Crashpad) error
}
