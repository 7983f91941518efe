package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemSetting is a named scalar. The fund pool balance lives here under
// its own key and is only written by the ledger store.
type SystemSetting struct {
	Key       string     `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string     `json:"value"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid;index" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
