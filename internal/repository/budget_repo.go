package repository

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type BudgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) Create(b *models.Budget) error {
	return r.db.Create(b).Error
}

// GetByID fetches a budget with its items and batches.
func (r *BudgetRepository) GetByID(id uuid.UUID) (*models.Budget, error) {
	var b models.Budget
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Batches", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "budget", id)
	}
	return &b, nil
}

// GetForUpdate locks the budget row for the rest of the transaction.
func (r *BudgetRepository) GetForUpdate(id uuid.UUID) (*models.Budget, error) {
	var b models.Budget
	if err := forUpdate(r.db).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "budget", id)
	}
	return &b, nil
}

type BudgetFilter struct {
	CreatorID *uuid.UUID
	Statuses  []models.BudgetStatus
	Query     string
	Limit     int
}

// Search lists budgets matching f, newest first.
func (r *BudgetRepository) Search(f BudgetFilter) ([]models.Budget, error) {
	var budgets []models.Budget

	q := r.db.Model(&models.Budget{}).Order("created_at DESC")
	if f.CreatorID != nil {
		q = q.Where("creator_id = ?", *f.CreatorID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Query != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(f.Query)+"%")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	err := q.Find(&budgets).Error
	return budgets, err
}

func (r *BudgetRepository) Update(id uuid.UUID, fields map[string]interface{}) error {
	return r.db.Model(&models.Budget{}).Where("id = ?", id).Updates(fields).Error
}

func (r *BudgetRepository) Items(budgetID uuid.UUID) ([]models.BudgetItem, error) {
	var items []models.BudgetItem
	err := r.db.Where("budget_id = ?", budgetID).Order("created_at ASC").Find(&items).Error
	return items, err
}

// ReplaceItems swaps the full item set of a budget.
func (r *BudgetRepository) ReplaceItems(budgetID uuid.UUID, items []models.BudgetItem) error {
	if err := r.db.Where("budget_id = ?", budgetID).Delete(&models.BudgetItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

func (r *BudgetRepository) Batches(budgetID uuid.UUID) ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.Where("budget_id = ?", budgetID).Order("sequence ASC").Find(&batches).Error
	return batches, err
}

func (r *BudgetRepository) GetBatch(id uuid.UUID) (*models.Batch, error) {
	var b models.Batch
	if err := r.db.First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "batch", id)
	}
	return &b, nil
}

func (r *BudgetRepository) GetBatchForUpdate(id uuid.UUID) (*models.Batch, error) {
	var b models.Batch
	if err := forUpdate(r.db).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "batch", id)
	}
	return &b, nil
}

// ReplaceBatches deletes every batch of the budget, then inserts the new set.
func (r *BudgetRepository) ReplaceBatches(budgetID uuid.UUID, batches []models.Batch) error {
	if err := r.db.Where("budget_id = ?", budgetID).Delete(&models.Batch{}).Error; err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}
	return r.db.Create(&batches).Error
}

func (r *BudgetRepository) MarkBatchDisbursed(b *models.Batch) error {
	return r.db.Model(b).Updates(map[string]interface{}{
		"status":       models.BatchDisbursed,
		"disbursed_at": b.DisbursedAt,
	}).Error
}

func (r *BudgetRepository) CreateRevision(rev *models.BudgetRevision) error {
	return r.db.Create(rev).Error
}

// AddressOpenRevisions closes the outstanding revision requests of a budget.
func (r *BudgetRepository) AddressOpenRevisions(budgetID uuid.UUID) (int64, error) {
	res := r.db.Model(&models.BudgetRevision{}).
		Where("budget_id = ? AND status = ?", budgetID, models.RevisionOpen).
		Update("status", models.RevisionAddressed)
	return res.RowsAffected, res.Error
}

func (r *BudgetRepository) Revisions(budgetID uuid.UUID) ([]models.BudgetRevision, error) {
	var revs []models.BudgetRevision
	err := r.db.Where("budget_id = ?", budgetID).Order("created_at ASC").Find(&revs).Error
	return revs, err
}

type StatRow struct {
	Status string
	Count  int64
	Sum    int64
}

// StatusTotals groups budgets by status with count and allocated sum.
func (r *BudgetRepository) StatusTotals() ([]StatRow, error) {
	var rows []StatRow
	err := r.db.Model(&models.Budget{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(allocated_amount),0) as sum").
		Group("status").
		Scan(&rows).Error
	return rows, err
}
