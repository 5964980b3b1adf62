package models

import "time"

// User is a staff account for the order management endpoints.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(254)" validate:"required,email"`
	Password  string    `gorm:"type:varchar(255)" validate:"required,min=8"` // bcrypt hash, no json tag
	IsAdmin   bool      `json:"is_admin" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
