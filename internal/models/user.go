package models

import "time"

// User represents a storefront customer account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;not null;index"`       // Contact email, matched against card recipients.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Disabled bool `gorm:"not null;default:false"` // Blocks sign-in when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
