package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/money"
	"family-fund-backend/internal/notify"
	"family-fund-backend/internal/repository"
)

// Payment outcomes reported by the external payment collaborator.
const (
	OutcomeCompleted = "COMPLETED"
	OutcomeFailed    = "FAILED"
)

type DisburseRequest struct {
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
}

type DisbursementResult struct {
	Budget      *models.Budget      `json:"budget"`
	Transaction *models.Transaction `json:"transaction"`
	Completed   int64               `json:"completed"`
	Remaining   int64               `json:"remaining"`
}

// Disburse pays out part of an approved budget's reservation. The ledger is
// not touched: the money left the pool at approval.
func (s *Service) Disburse(ctx context.Context, caller identity.Caller, id uuid.UUID, req DisburseRequest) (*DisbursementResult, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	req, err := normalizeDisburse(req)
	if err != nil {
		return nil, err
	}

	var (
		result *DisbursementResult
		out    notify.Outbox
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := repository.NewBudgetRepository(tx).GetForUpdate(id)
		if err != nil {
			return err
		}
		result, err = s.disburse(tx, caller, b, nil, req, &out)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logDisbursement(result, req)
	out.Dispatch(ctx, s.notifier, s.log)

	if result.Budget, err = repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(id); err != nil {
		return nil, err
	}
	return result, nil
}

// DisburseBatch pays out one batch of a BATCHES budget. Batches go out in
// sequence order. Locks are taken budget first, then batch, matching
// ConfigureDisbursement.
func (s *Service) DisburseBatch(ctx context.Context, caller identity.Caller, batchID uuid.UUID, method, reference string) (*DisbursementResult, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}

	var (
		result *DisbursementResult
		req    DisburseRequest
		out    notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBudgetRepository(tx)
		ref, err := repo.GetBatch(batchID)
		if err != nil {
			return err
		}
		b, err := repo.GetForUpdate(ref.BudgetID)
		if err != nil {
			return err
		}
		// The batch may have been regenerated while we waited on the budget.
		batch, err := repo.GetBatchForUpdate(batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchDisbursed {
			return &apperrors.AlreadyProcessedError{Entity: "batch", ID: batchID.String(), Status: string(batch.Status)}
		}

		batches, err := repo.Batches(b.ID)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		for _, other := range batches {
			if other.Status == models.BatchPending && other.Sequence < batch.Sequence {
				return apperrors.Invalid("batch", fmt.Sprintf("batch %d must be disbursed first", other.Sequence))
			}
		}

		req, err = normalizeDisburse(DisburseRequest{Amount: batch.Amount, Method: method, Reference: reference})
		if err != nil {
			return err
		}
		result, err = s.disburse(tx, caller, b, batch, req, &out)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		batch.DisbursedAt = &now
		if err := repo.MarkBatchDisbursed(batch); err != nil {
			return fmt.Errorf("mark batch disbursed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logDisbursement(result, req)
	out.Dispatch(ctx, s.notifier, s.log)

	if result.Budget, err = repository.NewBudgetRepository(s.db.WithContext(ctx)).GetByID(result.Budget.ID); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) disburse(tx *gorm.DB, caller identity.Caller, b *models.Budget, batch *models.Batch, req DisburseRequest, out *notify.Outbox) (*DisbursementResult, error) {
	txRepo := repository.NewTransactionRepository(tx)
	completed, err := txRepo.CompletedDisbursed(b.ID)
	if err != nil {
		return nil, fmt.Errorf("sum disbursements: %w", err)
	}
	remaining := b.AllocatedAmount - completed

	target := models.BudgetPartiallyDisbursed
	if completed+req.Amount >= b.AllocatedAmount {
		target = models.BudgetDisbursed
	}
	if b.Status != models.BudgetApproved && b.Status != models.BudgetPartiallyDisbursed {
		return nil, checkTransition(b.ID, b.Status, target)
	}
	if req.Amount > remaining {
		return nil, &apperrors.ExceedsAllocationError{Requested: req.Amount, Remaining: remaining}
	}

	t := &models.Transaction{
		ID:        uuid.New(),
		Type:      models.TransactionDisbursement,
		BudgetID:  &b.ID,
		UserID:    b.CreatorID,
		ActorID:   &caller.ID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Status:    models.TransactionCompleted,
	}
	if batch != nil {
		t.BatchID = &batch.ID
	}
	audit := repository.NewAuditRepository(tx)

	if req.Outcome == OutcomeFailed {
		t.Status = models.TransactionFailed
		if err := txRepo.Create(t); err != nil {
			return nil, fmt.Errorf("record failed disbursement: %w", err)
		}
		err := audit.Record(ActionDisbursementFailed, EntityType, b.ID, &caller.ID, map[string]interface{}{
			"status":         b.Status,
			"amount":         req.Amount,
			"method":         req.Method,
			"transaction_id": t.ID.String(),
		})
		if err != nil {
			return nil, err
		}
		return &DisbursementResult{Budget: b, Transaction: t, Completed: completed, Remaining: remaining}, nil
	}

	if err := checkTransition(b.ID, b.Status, target); err != nil {
		return nil, err
	}
	if err := txRepo.Create(t); err != nil {
		return nil, fmt.Errorf("record disbursement: %w", err)
	}
	if err := repository.NewBudgetRepository(tx).Update(b.ID, map[string]interface{}{"status": target}); err != nil {
		return nil, fmt.Errorf("update budget status: %w", err)
	}

	newCompleted := completed + req.Amount
	changes := map[string]interface{}{
		"from":           b.Status,
		"to":             target,
		"actor":          caller.ID.String(),
		"amount":         req.Amount,
		"completed":      newCompleted,
		"remaining":      b.AllocatedAmount - newCompleted,
		"transaction_id": t.ID.String(),
	}
	if batch != nil {
		changes["batch_id"] = batch.ID.String()
		changes["batch_sequence"] = batch.Sequence
	}
	if err := audit.Record(ActionDisbursed, EntityType, b.ID, &caller.ID, changes); err != nil {
		return nil, err
	}

	out.Add(notify.Notification{
		RecipientID: b.CreatorID,
		Title:       "Funds disbursed",
		Message:     fmt.Sprintf("%s disbursed for %q, budget is now %s", money.Format(req.Amount), b.Title, target),
		Type:        notify.TypeDisbursement,
		Data: map[string]interface{}{
			"budget_id": b.ID.String(),
			"amount":    req.Amount,
			"status":    target,
		},
	})

	b.Status = target
	return &DisbursementResult{
		Budget:      b,
		Transaction: t,
		Completed:   newCompleted,
		Remaining:   b.AllocatedAmount - newCompleted,
	}, nil
}

func (s *Service) logDisbursement(r *DisbursementResult, req DisburseRequest) {
	s.log.Info().
		Str("budget_id", r.Budget.ID.String()).
		Str("transaction_id", r.Transaction.ID.String()).
		Str("outcome", req.Outcome).
		Int64("amount", req.Amount).
		Int64("completed", r.Completed).
		Int64("remaining", r.Remaining).
		Msg("Budget disbursement recorded")
}

func normalizeDisburse(req DisburseRequest) (DisburseRequest, error) {
	if req.Amount <= 0 {
		return req, apperrors.Invalid("amount", "must be positive")
	}
	req.Method = strings.TrimSpace(req.Method)
	if req.Method == "" {
		req.Method = "manual"
	}
	switch strings.ToUpper(req.Outcome) {
	case "", OutcomeCompleted:
		req.Outcome = OutcomeCompleted
	case OutcomeFailed:
		req.Outcome = OutcomeFailed
	default:
		return req, apperrors.Invalid("outcome", fmt.Sprintf("unknown outcome %q", req.Outcome))
	}
	return req, nil
}

type StatusTotal struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum"`
}

type Stats struct {
	Total          int64                               `json:"total"`
	TotalAllocated int64                               `json:"total_allocated"`
	ByStatus       map[models.BudgetStatus]StatusTotal `json:"by_status"`
}

// Stats counts budgets per status with the allocated sum of each group.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[models.BudgetStatus]StatusTotal, len(Statuses))}
	for _, st := range Statuses {
		stats.ByStatus[st] = StatusTotal{}
	}

	rows, err := repository.NewBudgetRepository(s.db.WithContext(ctx)).StatusTotals()
	if err != nil {
		return stats, err
	}
	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalAllocated += r.Sum
		stats.ByStatus[models.BudgetStatus(r.Status)] = StatusTotal{Count: r.Count, Sum: r.Sum}
	}
	return stats, nil
}

type Funding struct {
	BudgetID      uuid.UUID `json:"budget_id"`
	Allocated     int64     `json:"allocated"`
	Supplementary int64     `json:"supplementary"`
	Total         int64     `json:"total"`
	Disbursed     int64     `json:"disbursed"`
	Remaining     int64     `json:"remaining"`
}

// Funding reports the allocation plus approved supplementary funding of a
// budget against what has been paid out.
func (s *Service) Funding(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Funding, error) {
	b, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	supplementary, err := repository.NewSupplementaryRepository(db).ApprovedTotal(id)
	if err != nil {
		return nil, fmt.Errorf("sum supplementary: %w", err)
	}
	disbursed, err := repository.NewTransactionRepository(db).CompletedDisbursed(id)
	if err != nil {
		return nil, fmt.Errorf("sum disbursements: %w", err)
	}
	return &Funding{
		BudgetID:      id,
		Allocated:     b.AllocatedAmount,
		Supplementary: supplementary,
		Total:         b.AllocatedAmount + supplementary,
		Disbursed:     disbursed,
		Remaining:     b.AllocatedAmount - disbursed,
	}, nil
}

type Activity struct {
	Transactions []models.Transaction `json:"transactions"`
	Audit        []models.AuditLog    `json:"audit"`
}

// Activity returns the money movements and audit trail of one budget,
// oldest first.
func (s *Service) Activity(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Activity, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	txs, err := repository.NewTransactionRepository(db).ForBudget(id)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	trail, err := repository.NewAuditRepository(db).ForEntity(EntityType, id)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	return &Activity{Transactions: txs, Audit: trail}, nil
}
