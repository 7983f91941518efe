package supplementary

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
	"family-fund-backend/internal/services/budget"
	"family-fund-backend/internal/services/ledger"
)

const (
	ActionCreated  = "supplementary.created"
	ActionApproved = "supplementary.approved"
	ActionRejected = "supplementary.rejected"

	EntityType = "supplementary_request"
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

type CreateRequest struct {
	BudgetID uuid.UUID `json:"budget_id"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`
}

// Open inserts a PENDING request and its audit record inside tx. The
// expenditure reconciler calls it in the same unit of work as the
// expenditure itself.
func Open(tx *gorm.DB, req *models.SupplementaryRequest) error {
	if req.Amount <= 0 {
		return apperrors.Invalid("amount", "must be positive")
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = models.SupplementaryPending

	if err := repository.NewSupplementaryRepository(tx).Create(req); err != nil {
		return fmt.Errorf("insert supplementary request: %w", err)
	}
	changes := map[string]interface{}{
		"to":        req.Status,
		"budget_id": req.BudgetID.String(),
		"amount":    req.Amount,
	}
	if req.ExpenditureID != nil {
		changes["expenditure_id"] = req.ExpenditureID.String()
	}
	return repository.NewAuditRepository(tx).Record(ActionCreated, EntityType, req.ID, &req.RequesterID, changes)
}

// Create files a manual request for more money against a funded budget the
// caller owns.
func (s *Service) Create(ctx context.Context, caller identity.Caller, req CreateRequest) (*models.SupplementaryRequest, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperrors.Invalid("reason", "is required")
	}
	if req.Amount <= 0 {
		return nil, apperrors.Invalid("amount", "must be positive")
	}

	sr := &models.SupplementaryRequest{
		BudgetID:    req.BudgetID,
		Amount:      req.Amount,
		Reason:      reason,
		RequesterID: caller.ID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := repository.NewBudgetRepository(tx).GetForUpdate(req.BudgetID)
		if err != nil {
			return err
		}
		if !caller.Owns(b.CreatorID) {
			return apperrors.Forbidden("only the budget owner can request supplementary funds")
		}
		if !budget.IsFunded(b.Status) {
			return apperrors.Invalid("budget_id", fmt.Sprintf("budget is %s, supplementary funds need an approved budget", b.Status))
		}
		return Open(tx, sr)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", sr.ID.String()).
		Str("budget_id", sr.BudgetID.String()).
		Int64("amount", sr.Amount).
		Msg("Supplementary request created")
	return sr, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*models.SupplementaryRequest, error) {
	sr, err := repository.NewSupplementaryRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(sr.RequesterID) {
		return nil, apperrors.Forbidden("request belongs to another member")
	}
	return sr, nil
}

// ForBudget lists the requests filed against a budget, visible to the
// budget owner and admins.
func (s *Service) ForBudget(ctx context.Context, caller identity.Caller, budgetID uuid.UUID) ([]models.SupplementaryRequest, error) {
	db := s.db.WithContext(ctx)
	b, err := repository.NewBudgetRepository(db).GetByID(budgetID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(b.CreatorID) {
		return nil, apperrors.Forbidden("budget belongs to another member")
	}
	return repository.NewSupplementaryRepository(db).ForBudget(budgetID)
}

// Approve debits the fund pool by the requested amount and marks the request
// APPROVED in one transaction. The budget's own allocation is unchanged;
// the amount shows up as extra funding in the budget's Funding report.
func (s *Service) Approve(ctx context.Context, caller identity.Caller, id uuid.UUID) (*models.SupplementaryRequest, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}

	var (
		sr      *models.SupplementaryRequest
		balance int64
		out     notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewSupplementaryRepository(tx)
		var err error
		if sr, err = repo.GetForUpdate(id); err != nil {
			return err
		}
		if sr.Status != models.SupplementaryPending {
			return &apperrors.AlreadyProcessedError{Entity: EntityType, ID: id.String(), Status: string(sr.Status)}
		}

		balance, err = s.ledger.Debit(tx, sr.Amount, ledger.Cause{
			EntityType: EntityType,
			EntityID:   id,
			ActorID:    &caller.ID,
		})
		if err != nil {
			return err
		}

		if err := s.decide(tx, caller, sr, models.SupplementaryApproved, ActionApproved, ""); err != nil {
			return err
		}
		out.Add(notify.Notification{
			RecipientID: sr.RequesterID,
			Title:       "Supplementary request approved",
			Message:     fmt.Sprintf("Your request for an extra %s was approved", money.Format(sr.Amount)),
			Type:        notify.TypeSupplementary,
			Data:        map[string]interface{}{"request_id": id.String(), "budget_id": sr.BudgetID.String(), "status": sr.Status},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", id.String()).
		Str("approved_by", caller.ID.String()).
		Int64("amount", sr.Amount).
		Int64("pool_balance", balance).
		Msg("Supplementary request approved")
	out.Dispatch(ctx, s.notifier, s.log)
	return sr, nil
}

// Reject closes a PENDING request with no ledger effect.
func (s *Service) Reject(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*models.SupplementaryRequest, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var (
		sr  *models.SupplementaryRequest
		out notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sr, err = repository.NewSupplementaryRepository(tx).GetForUpdate(id); err != nil {
			return err
		}
		if sr.Status != models.SupplementaryPending {
			return &apperrors.AlreadyProcessedError{Entity: EntityType, ID: id.String(), Status: string(sr.Status)}
		}
		if err := s.decide(tx, caller, sr, models.SupplementaryRejected, ActionRejected, reason); err != nil {
			return err
		}
		out.Add(notify.Notification{
			RecipientID: sr.RequesterID,
			Title:       "Supplementary request rejected",
			Message:     fmt.Sprintf("Your request for an extra %s was rejected", money.Format(sr.Amount)),
			Type:        notify.TypeSupplementary,
			Data:        map[string]interface{}{"request_id": id.String(), "status": sr.Status, "reason": reason},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", id.String()).
		Str("rejected_by", caller.ID.String()).
		Msg("Supplementary request rejected")
	out.Dispatch(ctx, s.notifier, s.log)
	return sr, nil
}

func (s *Service) decide(tx *gorm.DB, caller identity.Caller, sr *models.SupplementaryRequest, to models.SupplementaryStatus, action, reason string) error {
	now := time.Now().UTC()
	err := repository.NewSupplementaryRepository(tx).Update(sr.ID, map[string]interface{}{
		"status":      to,
		"approver_id": caller.ID,
		"decided_at":  now,
	})
	if err != nil {
		return fmt.Errorf("update supplementary request: %w", err)
	}

	changes := map[string]interface{}{
		"from":   sr.Status,
		"to":     to,
		"actor":  caller.ID.String(),
		"amount": sr.Amount,
	}
	if reason != "" {
		changes["reason"] = reason
	}
	if err := repository.NewAuditRepository(tx).Record(action, EntityType, sr.ID, &caller.ID, changes); err != nil {
		return err
	}

	sr.Status = to
	sr.ApproverID = &caller.ID
	sr.DecidedAt = &now
	return nil
}
