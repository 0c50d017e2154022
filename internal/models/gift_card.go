package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gift card type values.
const (
	// GiftCardTypeDigital marks cards delivered by email.
	GiftCardTypeDigital = "digital"
	// GiftCardTypePhysical marks cards fulfilled offline; they never auto-email.
	GiftCardTypePhysical = "physical"
)

// GiftCard represents a stored-value card redeemable as a cart discount.
type GiftCard struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code    string          `gorm:"type:text;not null;uniqueIndex"` // Unique uppercase redemption code.
	Balance decimal.Decimal `gorm:"type:decimal(10,2);not null"`    // Remaining balance, never negative.

	ExpirationDate *time.Time `gorm:"type:date"` // Expiry date; nil means never expires.

	SenderName     string `gorm:"type:text"`                // Purchaser display name.
	SenderEmail    string `gorm:"type:text"`                // Purchaser email.
	RecipientEmail string `gorm:"type:text;not null;index"` // Recipient email.
	Message        string `gorm:"type:text"`                // Personal message.

	IssuedDate   time.Time  `gorm:"not null;index"` // Issuance timestamp, immutable.
	DeliveryDate *time.Time `gorm:"type:date"`      // Date the notification email may fire.

	GiftCardType string `gorm:"type:text;not null;default:digital"` // digital or physical.

	UserID *uint64 `gorm:"index"` // Account matched by recipient email, if any.
}

// Exhausted reports whether the card has no remaining balance.
func (g *GiftCard) Exhausted() bool {
	return !g.Balance.IsPositive()
}
