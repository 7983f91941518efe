package models

import (
	"time"

	"github.com/google/uuid"
)

type BudgetStatus string

const (
	BudgetPending            BudgetStatus = "PENDING"
	BudgetRevisionRequested  BudgetStatus = "REVISION_REQUESTED"
	BudgetApproved           BudgetStatus = "APPROVED"
	BudgetPartiallyDisbursed BudgetStatus = "PARTIALLY_DISBURSED"
	BudgetDisbursed          BudgetStatus = "DISBURSED"
	BudgetRejected           BudgetStatus = "REJECTED"
	BudgetRevoked            BudgetStatus = "REVOKED"
)

type DisbursementType string

const (
	DisbursementFull    DisbursementType = "FULL"
	DisbursementBatches DisbursementType = "BATCHES"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

type Budget struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Amount           int64            `json:"amount"`
	AllocatedAmount  int64            `json:"allocated_amount"`
	Status           BudgetStatus     `gorm:"type:varchar(32);index" json:"status"`
	Priority         Priority         `gorm:"type:varchar(16)" json:"priority"`
	DisbursementType DisbursementType `gorm:"type:varchar(16)" json:"disbursement_type"`
	BatchCount       int              `json:"batch_count"`
	CreatorID        uuid.UUID        `gorm:"type:uuid;index" json:"creator_id"`
	ApproverID       *uuid.UUID       `gorm:"type:uuid;index" json:"approver_id,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	Items   []BudgetItem `gorm:"foreignKey:BudgetID" json:"items,omitempty"`
	Batches []Batch      `gorm:"foreignKey:BudgetID" json:"batches,omitempty"`
}

type BudgetItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID  uuid.UUID `gorm:"type:uuid;index" json:"budget_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type BatchStatus string

const (
	BatchPending   BatchStatus = "PENDING"
	BatchDisbursed BatchStatus = "DISBURSED"
)

type Batch struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID    uuid.UUID   `gorm:"type:uuid;index" json:"budget_id"`
	Sequence    int         `json:"sequence"`
	Amount      int64       `json:"amount"`
	Status      BatchStatus `gorm:"type:varchar(16)" json:"status"`
	DisbursedAt *time.Time  `json:"disbursed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type RevisionStatus string

const (
	RevisionOpen      RevisionStatus = "OPEN"
	RevisionAddressed RevisionStatus = "ADDRESSED"
)

type BudgetRevision struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID    uuid.UUID      `gorm:"type:uuid;index" json:"budget_id"`
	RequestedBy uuid.UUID      `gorm:"type:uuid;index" json:"requested_by"`
	Reason      string         `json:"reason"`
	Status      RevisionStatus `gorm:"type:varchar(16)" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
