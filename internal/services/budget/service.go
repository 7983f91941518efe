package budget

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
	ActionCreated                = "budget.created"
	ActionItemsUpdated           = "budget.items_updated"
	ActionApproved               = "budget.approved"
	ActionRejected               = "budget.rejected"
	ActionRevisionRequested      = "budget.revision_requested"
	ActionResubmitted            = "budget.resubmitted"
	ActionRevoked                = "budget.revoked"
	ActionDisbursed              = "budget.disbursed"
	ActionDisbursementFailed     = "budget.disbursement_failed"
	ActionDisbursementConfigured = "budget.disbursement_configured"

	EntityType = "budget"

	minRevisionReason = 10
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

type ItemInput struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

type CreateRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	Items       []ItemInput     `json:"items"`
}

type ApproveRequest struct {
	AllocatedAmount  *int64                  `json:"allocated_amount,omitempty"`
	DisbursementType models.DisbursementType `json:"disbursement_type"`
	BatchCount       int                     `json:"batch_count"`
}

// Create stores a new PENDING budget whose amount is the sum of its items.
func (s *Service) Create(ctx context.Context, caller identity.Caller, req CreateRequest) (*models.Budget, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Invalid("title", "is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !validPriority(priority) {
		return nil, apperrors.Invalid("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	b := &models.Budget{
		ID:               uuid.New(),
		Title:            title,
		Description:      req.Description,
		Status:           models.BudgetPending,
		Priority:         priority,
		DisbursementType: models.DisbursementFull,
		CreatorID:        caller.ID,
	}
	items, amount, err := buildItems(b.ID, req.Items)
	if err != nil {
		return nil, err
	}
	b.Amount = amount

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBudgetRepository(tx)
		if err := repo.Create(b); err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
		if err := repo.ReplaceItems(b.ID, items); err != nil {
			return fmt.Errorf("insert budget items: %w", err)
		}
		return repository.NewAuditRepository(tx).Record(ActionCreated, EntityType, b.ID, &caller.ID, map[string]interface{}{
			"to":     b.Status,
			"amount": b.Amount,
			"items":  len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", b.ID.String()).
		Str("creator_id", caller.ID.String()).
		Int64("amount", b.Amount).
		Int("item_count", len(items)).
		Msg("Budget created")

	b.Items = items
	return b, nil
}

// Get returns a budget to its owner or an admin.
func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*models.Budget, error) {
	b, err := repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(b.CreatorID) {
		return nil, apperrors.Forbidden("budget belongs to another member")
	}
	return b, nil
}

// Revisions lists the revision requests raised on a budget, oldest first.
func (s *Service) Revisions(ctx context.Context, caller identity.Caller, id uuid.UUID) ([]models.BudgetRevision, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return repository.NewBudgetRepository(s.db.WithContext(ctx)).Revisions(id)
}

// List returns the caller's budgets, or every budget for an admin.
func (s *Service) List(ctx context.Context, caller identity.Caller, filter repository.BudgetFilter) ([]models.Budget, error) {
	if !caller.IsAdmin() {
		filter.CreatorID = &caller.ID
	}
	return repository.NewBudgetRepository(s.db.WithContext(ctx)).Search(filter)
}

// UpdateItems replaces the line items while the budget is still editable.
func (s *Service) UpdateItems(ctx context.Context, caller identity.Caller, id uuid.UUID, input []ItemInput) (*models.Budget, error) {
	items, amount, err := buildItems(id, input)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBudgetRepository(tx)
		b, err := repo.GetForUpdate(id)
		if err != nil {
			return err
		}
		if !caller.Owns(b.CreatorID) {
			return apperrors.Forbidden("only the owner can edit a budget")
		}
		if !IsEditable(b.Status) {
			return &apperrors.InvalidStateTransitionError{
				Entity:  EntityType,
				ID:      id.String(),
				From:    string(b.Status),
				To:      "EDIT",
				Allowed: Allowed(b.Status),
			}
		}
		if err := repo.ReplaceItems(id, items); err != nil {
			return fmt.Errorf("replace budget items: %w", err)
		}
		if err := repo.Update(id, map[string]interface{}{"amount": amount}); err != nil {
			return fmt.Errorf("update budget amount: %w", err)
		}
		return repository.NewAuditRepository(tx).Record(ActionItemsUpdated, EntityType, id, &caller.ID, map[string]interface{}{
			"from_amount": b.Amount,
			"to_amount":   amount,
			"items":       len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", id.String()).
		Int64("amount", amount).
		Msg("Budget items updated")

	return repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(id)
}

// Approve reserves the allocation from the fund pool and moves the budget
// to APPROVED in one transaction. On InsufficientFundsError nothing changes.
func (s *Service) Approve(ctx context.Context, caller identity.Caller, id uuid.UUID, req ApproveRequest) (*models.Budget, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	if req.AllocatedAmount != nil && *req.AllocatedAmount <= 0 {
		return nil, apperrors.Invalid("allocated_amount", "must be positive")
	}
	dtype, count, err := normalizeDisbursement(req.DisbursementType, req.BatchCount)
	if err != nil {
		return nil, err
	}

	var (
		b       *models.Budget
		balance int64
		out     notify.Outbox
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBudgetRepository(tx)
		var err error
		b, err = repo.GetForUpdate(id)
		if err != nil {
			return err
		}
		from := b.Status
		if err := checkTransition(id, from, models.BudgetApproved); err != nil {
			return err
		}

		allocated := b.Amount
		if req.AllocatedAmount != nil {
			allocated = *req.AllocatedAmount
		}
		if allocated <= 0 {
			return apperrors.Invalid("allocated_amount", "budget has no amount to allocate")
		}

		balance, err = s.ledger.Debit(tx, allocated, ledger.Cause{
			EntityType: EntityType,
			EntityID:   id,
			ActorID:    &caller.ID,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = repo.Update(id, map[string]interface{}{
			"status":            models.BudgetApproved,
			"allocated_amount":  allocated,
			"approver_id":       caller.ID,
			"approved_at":       now,
			"disbursement_type": dtype,
			"batch_count":       count,
		})
		if err != nil {
			return fmt.Errorf("approve budget: %w", err)
		}
		if err := s.regenerateBatches(repo, id, dtype, allocated, count); err != nil {
			return err
		}

		err = repository.NewAuditRepository(tx).Record(ActionApproved, EntityType, id, &caller.ID, map[string]interface{}{
			"from":              from,
			"to":                models.BudgetApproved,
			"actor":             caller.ID.String(),
			"allocated_amount":  allocated,
			"disbursement_type": dtype,
			"batch_count":       count,
		})
		if err != nil {
			return err
		}

		out.Add(notify.Notification{
			RecipientID: b.CreatorID,
			Title:       "Budget approved",
			Message:     fmt.Sprintf("%q was approved for %s", b.Title, money.Format(allocated)),
			Type:        notify.TypeBudget,
			Data:        map[string]interface{}{"budget_id": id.String(), "status": models.BudgetApproved},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", id.String()).
		Str("approved_by", caller.ID.String()).
		Int64("pool_balance", balance).
		Msg("Budget approved")
	out.Dispatch(ctx, s.notifier, s.log)

	return repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(id)
}

// Reject closes a PENDING budget without touching the ledger.
func (s *Service) Reject(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*models.Budget, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, id, models.BudgetRejected, ActionRejected, strings.TrimSpace(reason), nil, func(b *models.Budget) *notify.Notification {
		return &notify.Notification{
			RecipientID: b.CreatorID,
			Title:       "Budget rejected",
			Message:     fmt.Sprintf("%q was rejected", b.Title),
			Type:        notify.TypeBudget,
			Data:        map[string]interface{}{"budget_id": b.ID.String(), "status": models.BudgetRejected, "reason": reason},
		}
	})
}

// RequestRevision sends a PENDING budget back to its owner with a reason.
func (s *Service) RequestRevision(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*models.Budget, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < minRevisionReason {
		return nil, apperrors.Invalid("reason", fmt.Sprintf("must be at least %d characters", minRevisionReason))
	}

	extra := func(tx *gorm.DB, b *models.Budget, changes map[string]interface{}) error {
		rev := &models.BudgetRevision{
			ID:          uuid.New(),
			BudgetID:    b.ID,
			RequestedBy: caller.ID,
			Reason:      reason,
			Status:      models.RevisionOpen,
		}
		if err := repository.NewBudgetRepository(tx).CreateRevision(rev); err != nil {
			return fmt.Errorf("insert revision: %w", err)
		}
		changes["revision_id"] = rev.ID.String()
		return nil
	}
	return s.transition(ctx, caller, id, models.BudgetRevisionRequested, ActionRevisionRequested, reason, extra, func(b *models.Budget) *notify.Notification {
		return &notify.Notification{
			RecipientID: b.CreatorID,
			Title:       "Budget needs changes",
			Message:     reason,
			Type:        notify.TypeBudget,
			Data:        map[string]interface{}{"budget_id": b.ID.String(), "status": models.BudgetRevisionRequested},
		}
	})
}

// Resubmit returns a budget under revision to PENDING, optionally with a
// new item set, and marks the open revision requests addressed.
func (s *Service) Resubmit(ctx context.Context, caller identity.Caller, id uuid.UUID, input []ItemInput) (*models.Budget, error) {
	var (
		items  []models.BudgetItem
		amount int64
	)
	if len(input) > 0 {
		var err error
		if items, amount, err = buildItems(id, input); err != nil {
			return nil, err
		}
	}

	extra := func(tx *gorm.DB, b *models.Budget, changes map[string]interface{}) error {
		if !caller.Owns(b.CreatorID) {
			return apperrors.Forbidden("only the owner can resubmit a budget")
		}
		repo := repository.NewBudgetRepository(tx)
		if items != nil {
			if err := repo.ReplaceItems(id, items); err != nil {
				return fmt.Errorf("replace budget items: %w", err)
			}
			if err := repo.Update(id, map[string]interface{}{"amount": amount}); err != nil {
				return fmt.Errorf("update budget amount: %w", err)
			}
			changes["amount"] = amount
		}
		addressed, err := repo.AddressOpenRevisions(id)
		if err != nil {
			return fmt.Errorf("address revisions: %w", err)
		}
		changes["revisions_addressed"] = addressed
		return nil
	}
	return s.transition(ctx, caller, id, models.BudgetPending, ActionResubmitted, "", extra, nil)
}

// Revoke ends a non-terminal budget. Any reserved but undisbursed amount is
// written off, not returned to the pool.
func (s *Service) Revoke(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*models.Budget, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Invalid("reason", "is required")
	}

	extra := func(tx *gorm.DB, b *models.Budget, changes map[string]interface{}) error {
		if !caller.IsAdmin() && !caller.Owns(b.CreatorID) {
			return apperrors.Forbidden("only the owner or an admin can revoke a budget")
		}
		if b.Status == models.BudgetApproved || b.Status == models.BudgetPartiallyDisbursed {
			completed, err := repository.NewTransactionRepository(tx).CompletedDisbursed(b.ID)
			if err != nil {
				return fmt.Errorf("sum disbursements: %w", err)
			}
			changes["allocated_amount"] = b.AllocatedAmount
			changes["completed"] = completed
			changes["unreleased"] = b.AllocatedAmount - completed
		}
		return nil
	}
	return s.transition(ctx, caller, id, models.BudgetRevoked, ActionRevoked, reason, extra, func(b *models.Budget) *notify.Notification {
		return &notify.Notification{
			RecipientID: b.CreatorID,
			Title:       "Budget revoked",
			Message:     fmt.Sprintf("%q was revoked: %s", b.Title, reason),
			Type:        notify.TypeBudget,
			Data:        map[string]interface{}{"budget_id": b.ID.String(), "status": models.BudgetRevoked},
		}
	})
}

// transition runs a status change without ledger effect: lock, check the
// edge, run extra, update status, write one audit record, notify.
func (s *Service) transition(
	ctx context.Context,
	caller identity.Caller,
	id uuid.UUID,
	to models.BudgetStatus,
	action string,
	reason string,
	extra func(tx *gorm.DB, b *models.Budget, changes map[string]interface{}) error,
	message func(b *models.Budget) *notify.Notification,
) (*models.Budget, error) {
	var (
		from models.BudgetStatus
		out  notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBudgetRepository(tx)
		b, err := repo.GetForUpdate(id)
		if err != nil {
			return err
		}
		from = b.Status
		if err := checkTransition(id, from, to); err != nil {
			return err
		}

		changes := map[string]interface{}{
			"from":  from,
			"to":    to,
			"actor": caller.ID.String(),
		}
		if reason != "" {
			changes["reason"] = reason
		}
		if extra != nil {
			if err := extra(tx, b, changes); err != nil {
				return err
			}
		}

		if err := repo.Update(id, map[string]interface{}{"status": to}); err != nil {
			return fmt.Errorf("update budget status: %w", err)
		}
		if err := repository.NewAuditRepository(tx).Record(action, EntityType, id, &caller.ID, changes); err != nil {
			return err
		}

		if message != nil {
			b.Status = to
			if n := message(b); n != nil {
				out.Add(*n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_id", caller.ID.String()).
		Msg("Budget status changed")
	out.Dispatch(ctx, s.notifier, s.log)

	return repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(id)
}

// ConfigureDisbursement changes FULL/BATCHES on an APPROVED budget that has
// not paid anything out yet, regenerating its batches.
func (s *Service) ConfigureDisbursement(ctx context.Context, caller identity.Caller, id uuid.UUID, dtype models.DisbursementType, batchCount int) (*models.Budget, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	dtype, count, err := normalizeDisbursement(dtype, batchCount)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBudgetRepository(tx)
		b, err := repo.GetForUpdate(id)
		if err != nil {
			return err
		}
		if b.Status != models.BudgetApproved {
			return &apperrors.InvalidStateTransitionError{
				Entity:  EntityType,
				ID:      id.String(),
				From:    string(b.Status),
				To:      string(models.BudgetApproved),
				Allowed: Allowed(b.Status),
			}
		}
		completed, err := repository.NewTransactionRepository(tx).CompletedDisbursed(id)
		if err != nil {
			return fmt.Errorf("sum disbursements: %w", err)
		}
		if completed > 0 {
			return apperrors.Invalid("disbursement_type", "cannot change after funds were disbursed")
		}

		err = repo.Update(id, map[string]interface{}{
			"disbursement_type": dtype,
			"batch_count":       count,
		})
		if err != nil {
			return fmt.Errorf("update disbursement: %w", err)
		}
		if err := s.regenerateBatches(repo, id, dtype, b.AllocatedAmount, count); err != nil {
			return err
		}
		return repository.NewAuditRepository(tx).Record(ActionDisbursementConfigured, EntityType, id, &caller.ID, map[string]interface{}{
			"from_type":   b.DisbursementType,
			"to_type":     dtype,
			"from_count":  b.BatchCount,
			"batch_count": count,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", id.String()).
		Str("disbursement_type", string(dtype)).
		Int("batch_count", count).
		Msg("Budget disbursement configured")

	return repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(id)
}

func (s *Service) regenerateBatches(repo *repository.BudgetRepository, id uuid.UUID, dtype models.DisbursementType, allocated int64, count int) error {
	var batches []models.Batch
	if dtype == models.DisbursementBatches {
		var err error
		if batches, err = buildBatches(id, allocated, count); err != nil {
			return err
		}
	}
	if err := repo.ReplaceBatches(id, batches); err != nil {
		return fmt.Errorf("replace batches: %w", err)
	}
	return nil
}

func normalizeDisbursement(dtype models.DisbursementType, count int) (models.DisbursementType, int, error) {
	switch dtype {
	case "", models.DisbursementFull:
		return models.DisbursementFull, 1, nil
	case models.DisbursementBatches:
		if count < 1 || count > MaxBatches {
			return "", 0, apperrors.Invalid("batch_count", fmt.Sprintf("must be between 1 and %d", MaxBatches))
		}
		return models.DisbursementBatches, count, nil
	default:
		return "", 0, apperrors.Invalid("disbursement_type", fmt.Sprintf("unknown type %q", dtype))
	}
}

func buildItems(budgetID uuid.UUID, input []ItemInput) ([]models.BudgetItem, int64, error) {
	if len(input) == 0 {
		return nil, 0, apperrors.Invalid("items", "at least one item is required")
	}
	now := time.Now().UTC()
	items := make([]models.BudgetItem, 0, len(input))
	var total int64
	for i, in := range input {
		name := strings.TrimSpace(in.Name)
		switch {
		case name == "":
			return nil, 0, apperrors.Invalid(fmt.Sprintf("items[%d].name", i), "is required")
		case in.UnitPrice <= 0:
			return nil, 0, apperrors.Invalid(fmt.Sprintf("items[%d].unit_price", i), "must be positive")
		case in.Quantity <= 0:
			return nil, 0, apperrors.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		line, err := money.Mul(in.UnitPrice, in.Quantity)
		if err != nil {
			return nil, 0, apperrors.Invalid(fmt.Sprintf("items[%d]", i), "line total is too large")
		}
		if total, err = money.Add(total, line); err != nil {
			return nil, 0, apperrors.Invalid("items", "budget total is too large")
		}
		item := models.BudgetItem{
			ID:        uuid.New(),
			BudgetID:  budgetID,
			Name:      name,
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
		items = append(items, item)
	}
	return items, total, nil
}

func validPriority(p models.Priority) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}
