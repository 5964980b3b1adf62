package repositories

import (
	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// UserRepository defines the interface for staff account data access.
type UserRepository interface {
	GetByEmail(email string) (*models.User, error)
	Create(user *models.User) error
}
