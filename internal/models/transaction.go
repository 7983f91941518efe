package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionDisbursement TransactionType = "DISBURSEMENT"
	TransactionContribution TransactionType = "CONTRIBUTION"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction records money physically moving: a disbursement paid out of a
// budget's reservation, or a verified member contribution.
type Transaction struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type         TransactionType   `gorm:"type:varchar(16);index" json:"type"`
	BudgetID     *uuid.UUID        `gorm:"type:uuid;index" json:"budget_id,omitempty"`
	BatchID      *uuid.UUID        `gorm:"type:uuid" json:"batch_id,omitempty"`
	RemittanceID *uuid.UUID        `gorm:"type:uuid" json:"remittance_id,omitempty"`
	UserID       uuid.UUID         `gorm:"type:uuid;index" json:"user_id"`
	ActorID      *uuid.UUID        `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Amount       int64             `json:"amount"`
	Method       string            `json:"method"`
	Reference    string            `json:"reference"`
	Status       TransactionStatus `gorm:"type:varchar(16);index" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}
