package models

import (
	"encoding/json"
	"time"
)

// Setting stores one JSON-valued configuration entry, keyed by name. Runtime
// tunables such as the expiry reminder window live here rather than in the
// config file so admins can change them without a restart.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
