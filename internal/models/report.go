package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Report struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `json:"title"`
	Kind        string         `gorm:"type:varchar(32)" json:"kind"`
	GeneratedBy uuid.UUID      `gorm:"type:uuid;index" json:"generated_by"`
	Params      datatypes.JSON `json:"params"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
