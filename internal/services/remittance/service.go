package remittance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/money"
	"family-fund-backend/internal/notify"
	"family-fund-backend/internal/repository"
	"family-fund-backend/internal/services/ledger"
)

const (
	ActionSubmitted = "remittance.submitted"
	ActionVerified  = "remittance.verified"
	ActionRejected  = "remittance.rejected"

	EntityType = "remittance"
)

type Service struct {
	db       *gorm.DB
	ledger   *ledger.Store
	notifier notify.Notifier
	log      zerolog.Logger
}

func NewService(db *gorm.DB, ledgerStore *ledger.Store, notifier notify.Notifier, log zerolog.Logger) *Service {
	return &Service{
		db:       db,
		ledger:   ledgerStore,
		notifier: notifier,
		log:      log,
	}
}

type SubmitRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
	Proof  string `json:"proof"`
}

// Submit records a member's contribution as PENDING.
func (s *Service) Submit(ctx context.Context, caller identity.Caller, req SubmitRequest) (*models.Remittance, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Invalid("amount", "must be positive")
	}

	r := &models.Remittance{
		ID:     uuid.New(),
		UserID: caller.ID,
		Amount: req.Amount,
		Note:   strings.TrimSpace(req.Note),
		Proof:  strings.TrimSpace(req.Proof),
		Status: models.RemittancePending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewRemittanceRepository(tx).Create(r); err != nil {
			return fmt.Errorf("insert remittance: %w", err)
		}
		return repository.NewAuditRepository(tx).Record(ActionSubmitted, EntityType, r.ID, &caller.ID, map[string]interface{}{
			"to":     r.Status,
			"amount": r.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("remittance_id", r.ID.String()).
		Str("user_id", caller.ID.String()).
		Int64("amount", r.Amount).
		Msg("Remittance submitted")
	return r, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*models.Remittance, error) {
	r, err := repository.NewRemittanceRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(r.UserID) {
		return nil, apperrors.Forbidden("remittance belongs to another member")
	}
	return r, nil
}

// List returns the caller's remittances, or all of them for an admin.
func (s *Service) List(ctx context.Context, caller identity.Caller, status models.RemittanceStatus) ([]models.Remittance, error) {
	var userID *uuid.UUID
	if !caller.IsAdmin() {
		userID = &caller.ID
	}
	return repository.NewRemittanceRepository(s.db.WithContext(ctx)).List(userID, status)
}

// Verify credits the fund pool with the remittance amount and marks it
// VERIFIED in one transaction. It succeeds at most once per remittance.
func (s *Service) Verify(ctx context.Context, caller identity.Caller, id uuid.UUID) (*models.Remittance, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}

	var (
		r       *models.Remittance
		balance int64
		out     notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRemittanceRepository(tx)
		var err error
		if r, err = repo.GetForUpdate(id); err != nil {
			return err
		}
		if r.Status != models.RemittancePending {
			return &apperrors.AlreadyProcessedError{Entity: EntityType, ID: id.String(), Status: string(r.Status)}
		}

		balance, err = s.ledger.Credit(tx, r.Amount, ledger.Cause{
			EntityType: EntityType,
			EntityID:   id,
			ActorID:    &caller.ID,
		})
		if err != nil {
			return err
		}

		t := &models.Transaction{
			ID:           uuid.New(),
			Type:         models.TransactionContribution,
			RemittanceID: &r.ID,
			UserID:       r.UserID,
			ActorID:      &caller.ID,
			Amount:       r.Amount,
			Method:       "remittance",
			Reference:    r.Proof,
			Status:       models.TransactionCompleted,
		}
		if err := repository.NewTransactionRepository(tx).Create(t); err != nil {
			return fmt.Errorf("record contribution: %w", err)
		}

		now := time.Now().UTC()
		err = repo.Update(id, map[string]interface{}{
			"status":      models.RemittanceVerified,
			"verified_by": caller.ID,
			"verified_at": now,
		})
		if err != nil {
			return fmt.Errorf("verify remittance: %w", err)
		}
		err = repository.NewAuditRepository(tx).Record(ActionVerified, EntityType, id, &caller.ID, map[string]interface{}{
			"from":           r.Status,
			"to":             models.RemittanceVerified,
			"actor":          caller.ID.String(),
			"amount":         r.Amount,
			"transaction_id": t.ID.String(),
		})
		if err != nil {
			return err
		}

		r.Status = models.RemittanceVerified
		r.VerifiedBy = &caller.ID
		r.VerifiedAt = &now
		out.Add(notify.Notification{
			RecipientID: r.UserID,
			Title:       "Contribution verified",
			Message:     fmt.Sprintf("Your contribution of %s was added to the family fund", money.Format(r.Amount)),
			Type:        notify.TypeRemittance,
			Data:        map[string]interface{}{"remittance_id": id.String(), "status": r.Status},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("remittance_id", id.String()).
		Str("verified_by", caller.ID.String()).
		Int64("amount", r.Amount).
		Int64("pool_balance", balance).
		Msg("Remittance verified")
	out.Dispatch(ctx, s.notifier, s.log)
	return r, nil
}

// Reject closes a PENDING remittance with no ledger effect.
func (s *Service) Reject(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*models.Remittance, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var (
		r   *models.Remittance
		out notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRemittanceRepository(tx)
		var err error
		if r, err = repo.GetForUpdate(id); err != nil {
			return err
		}
		if r.Status != models.RemittancePending {
			return &apperrors.AlreadyProcessedError{Entity: EntityType, ID: id.String(), Status: string(r.Status)}
		}

		now := time.Now().UTC()
		err = repo.Update(id, map[string]interface{}{
			"status":           models.RemittanceRejected,
			"verified_by":      caller.ID,
			"verified_at":      now,
			"rejection_reason": reason,
		})
		if err != nil {
			return fmt.Errorf("reject remittance: %w", err)
		}
		changes := map[string]interface{}{
			"from":  r.Status,
			"to":    models.RemittanceRejected,
			"actor": caller.ID.String(),
		}
		if reason != "" {
			changes["reason"] = reason
		}
		if err := repository.NewAuditRepository(tx).Record(ActionRejected, EntityType, id, &caller.ID, changes); err != nil {
			return err
		}

		r.Status = models.RemittanceRejected
		r.VerifiedBy = &caller.ID
		r.VerifiedAt = &now
		r.RejectionReason = reason
		out.Add(notify.Notification{
			RecipientID: r.UserID,
			Title:       "Contribution rejected",
			Message:     fmt.Sprintf("Your contribution of %s could not be verified", money.Format(r.Amount)),
			Type:        notify.TypeRemittance,
			Data:        map[string]interface{}{"remittance_id": id.String(), "status": r.Status, "reason": reason},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("remittance_id", id.String()).
		Str("rejected_by", caller.ID.String()).
		Msg("Remittance rejected")
	out.Dispatch(ctx, s.notifier, s.log)
	return r, nil
}
