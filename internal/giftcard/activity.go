package giftcard

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/models"
)

// Recorder appends activity log entries. Logging is best-effort: a storage
// failure is reported to logrus and swallowed so it never blocks the ledger
// mutation that triggered it.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder { return &Recorder{db: db} }

// Record appends one activity entry.
func (r *Recorder) Record(ctx context.Context, actionType string, code *string, amount decimal.NullDecimal, userID *uint64) {
	if r == nil || r.db == nil {
		return
	}
	row := models.ActivityLog{
		ActionType: actionType,
		Code:       code,
		Amount:     amount,
		UserID:     userID,
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("action", actionType).Warn("activity log: append failed")
	}
}

// HasReminderFor reports whether an expiration reminder was already logged
// for the given code. Used by the sweeper so a card is reminded at most once.
func (r *Recorder) HasReminderFor(ctx context.Context, code string) (bool, error) {
	if r == nil || r.db == nil {
		return false, nil
	}
	var count int64
	errCount := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Where("action_type = ? AND code = ?", models.ActionReminderSent, code).
		Count(&count).Error
	if errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// amountOf wraps a decimal into the nullable column representation.
func amountOf(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// codeOf returns a pointer to the given code for nullable log columns.
func codeOf(code string) *string { return &code }
