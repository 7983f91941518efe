package models

import (
	"time"

	"github.com/google/uuid"
)

type ExpenditureStatus string

const (
	ExpenditurePending  ExpenditureStatus = "PENDING"
	ExpenditureApproved ExpenditureStatus = "APPROVED"
	ExpenditureRejected ExpenditureStatus = "REJECTED"
)

type Expenditure struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID   uuid.UUID         `gorm:"type:uuid;index" json:"budget_id"`
	CreatorID  uuid.UUID         `gorm:"type:uuid;index" json:"creator_id"`
	Title      string            `json:"title"`
	Amount     int64             `json:"amount"`
	Status     ExpenditureStatus `gorm:"type:varchar(16);index" json:"status"`
	ReviewerID *uuid.UUID        `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	Items []ExpenditureItem `gorm:"foreignKey:ExpenditureID" json:"items,omitempty"`
}

type ExpenditureItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenditureID uuid.UUID `gorm:"type:uuid;index" json:"expenditure_id"`
	BudgetItemID  uuid.UUID `gorm:"type:uuid;index" json:"budget_item_id"`
	Name          string    `json:"name"`
	Amount        int64     `json:"amount"`
	ReceiptRef    string    `json:"receipt_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplementaryStatus string

const (
	SupplementaryPending  SupplementaryStatus = "PENDING"
	SupplementaryApproved SupplementaryStatus = "APPROVED"
	SupplementaryRejected SupplementaryStatus = "REJECTED"
)

type SupplementaryRequest struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID      uuid.UUID           `gorm:"type:uuid;index" json:"budget_id"`
	ExpenditureID *uuid.UUID          `gorm:"type:uuid;index" json:"expenditure_id,omitempty"`
	Amount        int64               `json:"amount"`
	Reason        string              `json:"reason"`
	RequesterID   uuid.UUID           `gorm:"type:uuid;index" json:"requester_id"`
	ApproverID    *uuid.UUID          `gorm:"type:uuid" json:"approver_id,omitempty"`
	Status        SupplementaryStatus `gorm:"type:varchar(16);index" json:"status"`
	DecidedAt     *time.Time          `json:"decided_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
