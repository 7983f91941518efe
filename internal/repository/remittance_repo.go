package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type RemittanceRepository struct {
	db *gorm.DB
}

func NewRemittanceRepository(db *gorm.DB) *RemittanceRepository {
	return &RemittanceRepository{db: db}
}

func (r *RemittanceRepository) Create(rem *models.Remittance) error {
	return r.db.Create(rem).Error
}

func (r *RemittanceRepository) GetByID(id uuid.UUID) (*models.Remittance, error) {
	var rem models.Remittance
	if err := r.db.First(&rem, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "remittance", id)
	}
	return &rem, nil
}

func (r *RemittanceRepository) GetForUpdate(id uuid.UUID) (*models.Remittance, error) {
	var rem models.Remittance
	if err := forUpdate(r.db).First(&rem, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "remittance", id)
	}
	return &rem, nil
}

func (r *RemittanceRepository) Update(id uuid.UUID, fields map[string]interface{}) error {
	return r.db.Model(&models.Remittance{}).Where("id = ?", id).Updates(fields).Error
}

// List returns remittances, optionally narrowed to one member or status.
func (r *RemittanceRepository) List(userID *uuid.UUID, status models.RemittanceStatus) ([]models.Remittance, error) {
	var out []models.Remittance
	q := r.db.Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}
