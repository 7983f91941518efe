package repository

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one audit row. Call it with the same tx as the change.
func (r *AuditRepository) Record(action, entityType string, entityID uuid.UUID, actorID *uuid.UUID, changes map[string]interface{}) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	entry := &models.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Changes:    datatypes.JSON(raw),
	}
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("write audit %s: %w", action, err)
	}
	return nil
}

// ForEntity lists the trail of one entity, oldest first.
func (r *AuditRepository) ForEntity(entityType string, entityID uuid.UUID) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// ByEntityType lists the newest entries of one entity type.
func (r *AuditRepository) ByEntityType(entityType string, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	q := r.db.Where("entity_type = ?", entityType).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}
