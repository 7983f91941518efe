package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is append-only. Rows are only removed by a forced user deletion.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Action     string         `gorm:"index" json:"action"`
	EntityType string         `gorm:"type:varchar(32);index:idx_audit_entity" json:"entity_type"`
	EntityID   uuid.UUID      `gorm:"type:uuid;index:idx_audit_entity" json:"entity_id"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Changes    datatypes.JSON `json:"changes"`
	CreatedAt  time.Time      `json:"created_at"`
}
