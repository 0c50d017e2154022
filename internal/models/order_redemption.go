package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRedemption records the committed gift card discount for one order.
// The unique order ID makes checkout commits at-most-once: a duplicate
// completion event finds the existing row and deducts nothing.
type OrderRedemption struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrderID string          `gorm:"type:text;not null;uniqueIndex"` // External order identifier.
	UserID  uint64          `gorm:"not null;index"`                 // Redeeming user.
	Amount  decimal.Decimal `gorm:"type:decimal(10,2);not null"`    // Total amount deducted across cards.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Commit timestamp.
}
