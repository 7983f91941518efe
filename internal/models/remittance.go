package models

import (
	"time"

	"github.com/google/uuid"
)

type RemittanceStatus string

const (
	RemittancePending  RemittanceStatus = "PENDING"
	RemittanceVerified RemittanceStatus = "VERIFIED"
	RemittanceRejected RemittanceStatus = "REJECTED"
)

// Remittance is a member contribution into the fund pool. Proof is an
// opaque reference to an uploaded receipt.
type Remittance struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;index" json:"user_id"`
	Amount          int64            `json:"amount"`
	Note            string           `json:"note"`
	Proof           string           `json:"proof"`
	Status          RemittanceStatus `gorm:"type:varchar(16);index" json:"status"`
	VerifiedBy      *uuid.UUID       `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt      *time.Time       `json:"verified_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
