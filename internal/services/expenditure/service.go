package expenditure

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
	"family-fund-backend/internal/services/supplementary"
)

const (
	ActionCreated  = "expenditure.created"
	ActionApproved = "expenditure.approved"
	ActionRejected = "expenditure.rejected"

	EntityType = "expenditure"
)

type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
	log      zerolog.Logger
}

func NewService(db *gorm.DB, notifier notify.Notifier, log zerolog.Logger) *Service {
	return &Service{db: db, notifier: notifier, log: log}
}

type CreateRequest struct {
	BudgetID uuid.UUID   `json:"budget_id"`
	Title    string      `json:"title"`
	Amount   *int64      `json:"amount,omitempty"`
	Items    []LineInput `json:"items"`
	// RequestSupplementary opts in to an automatic supplementary request
	// covering the total overage.
	RequestSupplementary bool `json:"request_supplementary"`
}

type Result struct {
	Expenditure   *models.Expenditure          `json:"expenditure"`
	Lines         []LineOverage                `json:"lines"`
	Overage       int64                        `json:"overage"`
	Supplementary *models.SupplementaryRequest `json:"supplementary,omitempty"`
}

// Create records spending against a funded budget. With RequestSupplementary
// set and a positive overage, the supplementary request is created in the
// same transaction as the expenditure.
func (s *Service) Create(ctx context.Context, caller identity.Caller, req CreateRequest) (*Result, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Invalid("title", "is required")
	}

	var (
		result Result
		out    notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budgets := repository.NewBudgetRepository(tx)
		b, err := budgets.GetForUpdate(req.BudgetID)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && !caller.Owns(b.CreatorID) {
			return apperrors.Forbidden("expenditures can only be filed against your own budget")
		}
		if !budget.IsFunded(b.Status) {
			return apperrors.Invalid("budget_id", fmt.Sprintf("budget is %s, expenditures need an approved budget", b.Status))
		}

		items, err := budgets.Items(b.ID)
		if err != nil {
			return fmt.Errorf("load budget items: %w", err)
		}
		rec, err := Reconcile(b.ID, items, req.Items)
		if err != nil {
			return err
		}
		if req.Amount != nil && *req.Amount != rec.Total {
			return apperrors.Invalid("amount", fmt.Sprintf("must equal the sum of items (%d)", rec.Total))
		}

		e := &models.Expenditure{
			ID:        uuid.New(),
			BudgetID:  b.ID,
			CreatorID: caller.ID,
			Title:     title,
			Amount:    rec.Total,
			Status:    models.ExpenditurePending,
			Items:     rec.Items,
		}
		for i := range e.Items {
			e.Items[i].ExpenditureID = e.ID
		}
		if err := repository.NewExpenditureRepository(tx).Create(e); err != nil {
			return fmt.Errorf("insert expenditure: %w", err)
		}
		err = repository.NewAuditRepository(tx).Record(ActionCreated, EntityType, e.ID, &caller.ID, map[string]interface{}{
			"to":        e.Status,
			"budget_id": b.ID.String(),
			"amount":    e.Amount,
			"overage":   rec.Overage,
		})
		if err != nil {
			return err
		}

		result = Result{Expenditure: e, Lines: rec.Lines, Overage: rec.Overage}
		if !req.RequestSupplementary || rec.Overage == 0 {
			return nil
		}

		sr := &models.SupplementaryRequest{
			BudgetID:      b.ID,
			ExpenditureID: &e.ID,
			Amount:        rec.Overage,
			Reason:        fmt.Sprintf("Overspend on %q: %s above budgeted unit prices", title, money.Format(rec.Overage)),
			RequesterID:   caller.ID,
		}
		if err := supplementary.Open(tx, sr); err != nil {
			return err
		}
		result.Supplementary = sr

		if !caller.Owns(b.CreatorID) {
			out.Add(notify.Notification{
				RecipientID: b.CreatorID,
				Title:       "Supplementary request raised",
				Message:     fmt.Sprintf("An overspend of %s on %q needs approval", money.Format(rec.Overage), b.Title),
				Type:        notify.TypeSupplementary,
				Data:        map[string]interface{}{"request_id": sr.ID.String(), "budget_id": b.ID.String()},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := s.log.Info().
		Str("expenditure_id", result.Expenditure.ID.String()).
		Str("budget_id", req.BudgetID.String()).
		Int64("amount", result.Expenditure.Amount).
		Int64("overage", result.Overage)
	if result.Supplementary != nil {
		ev = ev.Str("supplementary_id", result.Supplementary.ID.String())
	}
	ev.Msg("Expenditure recorded")
	out.Dispatch(ctx, s.notifier, s.log)

	return &result, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*models.Expenditure, error) {
	e, err := repository.NewExpenditureRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(e.CreatorID) {
		return nil, apperrors.Forbidden("expenditure belongs to another member")
	}
	return e, nil
}

func (s *Service) ForBudget(ctx context.Context, caller identity.Caller, budgetID uuid.UUID) ([]models.Expenditure, error) {
	db := s.db.WithContext(ctx)
	b, err := repository.NewBudgetRepository(db).GetByID(budgetID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(b.CreatorID) {
		return nil, apperrors.Forbidden("budget belongs to another member")
	}
	return repository.NewExpenditureRepository(db).ForBudget(budgetID)
}

// Review approves or rejects a PENDING expenditure. It runs once; a second
// review fails with AlreadyProcessedError.
func (s *Service) Review(ctx context.Context, caller identity.Caller, id uuid.UUID, approve bool, note string) (*models.Expenditure, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}

	to, action, title := models.ExpenditureRejected, ActionRejected, "Expenditure rejected"
	if approve {
		to, action, title = models.ExpenditureApproved, ActionApproved, "Expenditure approved"
	}
	note = strings.TrimSpace(note)

	var (
		e   *models.Expenditure
		out notify.Outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewExpenditureRepository(tx)
		var err error
		if e, err = repo.GetForUpdate(id); err != nil {
			return err
		}
		if e.Status != models.ExpenditurePending {
			return &apperrors.AlreadyProcessedError{Entity: EntityType, ID: id.String(), Status: string(e.Status)}
		}

		now := time.Now().UTC()
		err = repo.Update(id, map[string]interface{}{
			"status":      to,
			"reviewer_id": caller.ID,
			"reviewed_at": now,
		})
		if err != nil {
			return fmt.Errorf("update expenditure: %w", err)
		}
		changes := map[string]interface{}{
			"from":  e.Status,
			"to":    to,
			"actor": caller.ID.String(),
		}
		if note != "" {
			changes["note"] = note
		}
		if err := repository.NewAuditRepository(tx).Record(action, EntityType, id, &caller.ID, changes); err != nil {
			return err
		}

		out.Add(notify.Notification{
			RecipientID: e.CreatorID,
			Title:       title,
			Message:     fmt.Sprintf("%q (%s) was reviewed", e.Title, money.Format(e.Amount)),
			Type:        notify.TypeExpenditure,
			Data:        map[string]interface{}{"expenditure_id": id.String(), "status": to},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("expenditure_id", id.String()).
		Str("status", string(to)).
		Str("reviewer_id", caller.ID.String()).
		Msg("Expenditure reviewed")
	out.Dispatch(ctx, s.notifier, s.log)

	return repository.NewExpenditureRepository(s.db.WithContext(ctx)).GetByID(id)
}
