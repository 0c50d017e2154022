package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Activity log action types.
const (
	ActionCreated           = "created"
	ActionUsed              = "used"
	ActionBalanceAdjusted   = "balance_adjusted"
	ActionExpirationUpdated = "expiration_updated"
	ActionDeleted           = "deleted"
	ActionReminderSent      = "expiration_reminder_sent"
	ActionImportCSV         = "import_csv"
	ActionExportCSV         = "export_csv"
)

// ActivityLog records one balance-affecting event. Rows are append-only and
// are never updated or deleted.
type ActivityLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ActionType string  `gorm:"type:text;not null;index"` // One of the Action constants.
	Code       *string `gorm:"type:text;index"`          // Related card code; nil for batch summary rows.

	// Amount semantics depend on ActionType: initial balance for created,
	// deducted amount for used, new balance for balance_adjusted, row count
	// for import_csv/export_csv.
	Amount decimal.NullDecimal `gorm:"type:decimal(10,2)"`

	UserID *uint64 `gorm:"index"` // Acting or beneficiary user, if known.

	Detail datatypes.JSON `gorm:"type:jsonb"` // Optional structured context.

	ActionDate time.Time `gorm:"not null;autoCreateTime;index"` // Write timestamp, immutable.
}
