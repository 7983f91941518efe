package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type SupplementaryRepository struct {
	db *gorm.DB
}

func NewSupplementaryRepository(db *gorm.DB) *SupplementaryRepository {
	return &SupplementaryRepository{db: db}
}

func (r *SupplementaryRepository) Create(s *models.SupplementaryRequest) error {
	return r.db.Create(s).Error
}

func (r *SupplementaryRepository) GetByID(id uuid.UUID) (*models.SupplementaryRequest, error) {
	var s models.SupplementaryRequest
	if err := r.db.First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "supplementary_request", id)
	}
	return &s, nil
}

func (r *SupplementaryRepository) GetForUpdate(id uuid.UUID) (*models.SupplementaryRequest, error) {
	var s models.SupplementaryRequest
	if err := forUpdate(r.db).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "supplementary_request", id)
	}
	return &s, nil
}

func (r *SupplementaryRepository) Update(id uuid.UUID, fields map[string]interface{}) error {
	return r.db.Model(&models.SupplementaryRequest{}).Where("id = ?", id).Updates(fields).Error
}

// ApprovedTotal sums the approved supplementary amounts of a budget.
func (r *SupplementaryRepository) ApprovedTotal(budgetID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.Model(&models.SupplementaryRequest{}).
		Where("budget_id = ? AND status = ?", budgetID, models.SupplementaryApproved).
		Select("COALESCE(SUM(amount),0)").
		Scan(&sum).Error
	return sum, err
}

func (r *SupplementaryRepository) ForBudget(budgetID uuid.UUID) ([]models.SupplementaryRequest, error) {
	var out []models.SupplementaryRequest
	err := r.db.Where("budget_id = ?", budgetID).Order("created_at ASC").Find(&out).Error
	return out, err
}
