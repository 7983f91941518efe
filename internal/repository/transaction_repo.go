package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(t *models.Transaction) error {
	return r.db.Create(t).Error
}

// CompletedDisbursed sums the completed disbursements of a budget.
func (r *TransactionRepository) CompletedDisbursed(budgetID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.Model(&models.Transaction{}).
		Where("budget_id = ? AND type = ? AND status = ?", budgetID, models.TransactionDisbursement, models.TransactionCompleted).
		Select("COALESCE(SUM(amount),0)").
		Scan(&sum).Error
	return sum, err
}

func (r *TransactionRepository) ForBudget(budgetID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Where("budget_id = ?", budgetID).Order("created_at ASC").Find(&txs).Error
	return txs, err
}
