package users

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

type Mode int

const (
	// Remove deletes the matching rows.
	Remove Mode = iota
	// Detach sets Column to NULL on the matching rows. Used where the row
	// belongs to someone else and only names the user as a decision maker.
	Detach
)

// Step is one entry of the deletion plan. Scope selects the rows for both
// counting and removal, so the counts reported without force are exactly
// what a forced deletion removes.
type Step struct {
	Key    string
	Model  interface{}
	Mode   Mode
	Column string
	Scope  func(tx *gorm.DB, userID uuid.UUID) *gorm.DB
}

// Plan returns the deletion steps in execution order: every step runs while
// the parents its scope reads from still exist, and children go before the
// tables they reference.
func Plan() []Step {
	return []Step{
		{Key: "notifications", Model: &models.Notification{}, Scope: where(&models.Notification{}, "recipient_id = ?")},
		{Key: "preferences", Model: &models.Preference{}, Scope: where(&models.Preference{}, "user_id = ?")},
		{Key: "audit_logs", Model: &models.AuditLog{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.AuditLog{}).Where("actor_id = ? OR entity_id = ?", id, id)
		}},
		{Key: "system_settings", Model: &models.SystemSetting{}, Mode: Detach, Column: "updated_by", Scope: where(&models.SystemSetting{}, "updated_by = ?")},
		{Key: "reports", Model: &models.Report{}, Scope: where(&models.Report{}, "generated_by = ?")},
		{Key: "votes", Model: &models.Vote{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.Vote{}).Where("user_id = ? OR project_id IN (?)", id, ownedProjects(tx, id))
		}},
		{Key: "projects", Model: &models.Project{}, Scope: where(&models.Project{}, "creator_id = ?")},
		{Key: "transactions", Model: &models.Transaction{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.Transaction{}).Where("user_id = ? OR budget_id IN (?)", id, ownedBudgets(tx, id))
		}},
		{Key: "transaction_actions", Model: &models.Transaction{}, Mode: Detach, Column: "actor_id", Scope: where(&models.Transaction{}, "actor_id = ?")},
		{Key: "supplementary_requests", Model: &models.SupplementaryRequest{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.SupplementaryRequest{}).
				Where("requester_id = ? OR budget_id IN (?) OR expenditure_id IN (?)", id, ownedBudgets(tx, id), ownedExpenditures(tx, id))
		}},
		{Key: "supplementary_decisions", Model: &models.SupplementaryRequest{}, Mode: Detach, Column: "approver_id", Scope: where(&models.SupplementaryRequest{}, "approver_id = ?")},
		{Key: "expenditure_items", Model: &models.ExpenditureItem{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.ExpenditureItem{}).Where("expenditure_id IN (?)", ownedExpenditures(tx, id))
		}},
		{Key: "expenditures", Model: &models.Expenditure{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.Expenditure{}).Where("creator_id = ? OR budget_id IN (?)", id, ownedBudgets(tx, id))
		}},
		{Key: "expenditure_reviews", Model: &models.Expenditure{}, Mode: Detach, Column: "reviewer_id", Scope: where(&models.Expenditure{}, "reviewer_id = ?")},
		{Key: "remittances", Model: &models.Remittance{}, Scope: where(&models.Remittance{}, "user_id = ?")},
		{Key: "remittance_verifications", Model: &models.Remittance{}, Mode: Detach, Column: "verified_by", Scope: where(&models.Remittance{}, "verified_by = ?")},
		{Key: "batches", Model: &models.Batch{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.Batch{}).Where("budget_id IN (?)", ownedBudgets(tx, id))
		}},
		{Key: "budget_items", Model: &models.BudgetItem{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.BudgetItem{}).Where("budget_id IN (?)", ownedBudgets(tx, id))
		}},
		{Key: "budget_revisions", Model: &models.BudgetRevision{}, Scope: func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
			return tx.Model(&models.BudgetRevision{}).Where("requested_by = ? OR budget_id IN (?)", id, ownedBudgets(tx, id))
		}},
		{Key: "budgets", Model: &models.Budget{}, Scope: where(&models.Budget{}, "creator_id = ?")},
		{Key: "budget_approvals", Model: &models.Budget{}, Mode: Detach, Column: "approver_id", Scope: where(&models.Budget{}, "approver_id = ?")},
	}
}

func where(model interface{}, cond string) func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
	return func(tx *gorm.DB, id uuid.UUID) *gorm.DB {
		return tx.Model(model).Where(cond, id)
	}
}

func ownedBudgets(tx *gorm.DB, id uuid.UUID) *gorm.DB {
	return tx.Model(&models.Budget{}).Select("id").Where("creator_id = ?", id)
}

func ownedProjects(tx *gorm.DB, id uuid.UUID) *gorm.DB {
	return tx.Model(&models.Project{}).Select("id").Where("creator_id = ?", id)
}

// ownedExpenditures covers the user's own expenditures and any filed against
// the user's budgets.
func ownedExpenditures(tx *gorm.DB, id uuid.UUID) *gorm.DB {
	return tx.Model(&models.Expenditure{}).Select("id").Where("creator_id = ? OR budget_id IN (?)", id, ownedBudgets(tx, id))
}
