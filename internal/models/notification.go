package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Notification struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID      `gorm:"type:uuid;index" json:"recipient_id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Type        string         `gorm:"type:varchar(32)" json:"type"`
	Data        datatypes.JSON `json:"data"`
	Read        bool           `json:"read"`
	CreatedAt   time.Time      `json:"created_at"`
}
