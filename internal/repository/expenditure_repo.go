package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type ExpenditureRepository struct {
	db *gorm.DB
}

func NewExpenditureRepository(db *gorm.DB) *ExpenditureRepository {
	return &ExpenditureRepository{db: db}
}

// Create inserts the expenditure together with its items.
func (r *ExpenditureRepository) Create(e *models.Expenditure) error {
	return r.db.Create(e).Error
}

func (r *ExpenditureRepository) GetByID(id uuid.UUID) (*models.Expenditure, error) {
	var e models.Expenditure
	if err := r.db.Preload("Items").First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "expenditure", id)
	}
	return &e, nil
}

func (r *ExpenditureRepository) GetForUpdate(id uuid.UUID) (*models.Expenditure, error) {
	var e models.Expenditure
	if err := forUpdate(r.db).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "expenditure", id)
	}
	return &e, nil
}

func (r *ExpenditureRepository) ForBudget(budgetID uuid.UUID) ([]models.Expenditure, error) {
	var out []models.Expenditure
	err := r.db.Preload("Items").Where("budget_id = ?", budgetID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *ExpenditureRepository) Update(id uuid.UUID, fields map[string]interface{}) error {
	return r.db.Model(&models.Expenditure{}).Where("id = ?", id).Updates(fields).Error
}
