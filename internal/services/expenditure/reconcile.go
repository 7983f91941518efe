package expenditure

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/money"
)

// LineInput is one spent amount against a budget line item.
type LineInput struct {
	BudgetItemID uuid.UUID `json:"budget_item_id"`
	Amount       int64     `json:"amount"`
	ReceiptRef   string    `json:"receipt_ref,omitempty"`
}

type LineOverage struct {
	BudgetItemID uuid.UUID `json:"budget_item_id"`
	UnitPrice    int64     `json:"unit_price"`
	Spent        int64     `json:"spent"`
	Overage      int64     `json:"overage"`
}

// Reconciliation is the outcome of matching spent lines to a budget.
type Reconciliation struct {
	Items   []models.ExpenditureItem
	Lines   []LineOverage
	Total   int64
	Overage int64
}

// Overage is the part of spent above the unit price, never negative.
func Overage(unitPrice, spent int64) int64 {
	if spent > unitPrice {
		return spent - unitPrice
	}
	return 0
}

// Reconcile checks every line against the budget's items and computes the
// per-line and total overage. Item names are copied from the budget.
func Reconcile(budgetID uuid.UUID, budgetItems []models.BudgetItem, lines []LineInput) (*Reconciliation, error) {
	if len(lines) == 0 {
		return nil, apperrors.Invalid("items", "at least one item is required")
	}

	byID := make(map[uuid.UUID]models.BudgetItem, len(budgetItems))
	for _, it := range budgetItems {
		if it.BudgetID == budgetID {
			byID[it.ID] = it
		}
	}

	now := time.Now().UTC()
	rec := &Reconciliation{
		Items: make([]models.ExpenditureItem, 0, len(lines)),
		Lines: make([]LineOverage, 0, len(lines)),
	}
	for i, line := range lines {
		item, ok := byID[line.BudgetItemID]
		if !ok {
			return nil, &apperrors.InvalidLineItemError{BudgetID: budgetID.String(), ItemID: line.BudgetItemID.String()}
		}
		if line.Amount <= 0 {
			return nil, apperrors.Invalid(fmt.Sprintf("items[%d].amount", i), "must be positive")
		}

		over := Overage(item.UnitPrice, line.Amount)
		total, err := money.Add(rec.Total, line.Amount)
		if err != nil {
			return nil, apperrors.Invalid("items", "expenditure total is too large")
		}
		overage, err := money.Add(rec.Overage, over)
		if err != nil {
			return nil, apperrors.Invalid("items", "expenditure overage is too large")
		}
		rec.Items = append(rec.Items, models.ExpenditureItem{
			ID:           uuid.New(),
			BudgetItemID: item.ID,
			Name:         item.Name,
			Amount:       line.Amount,
			ReceiptRef:   line.ReceiptRef,
			CreatedAt:    now.Add(time.Duration(i) * time.Microsecond),
		})
		rec.Lines = append(rec.Lines, LineOverage{
			BudgetItemID: item.ID,
			UnitPrice:    item.UnitPrice,
			Spent:        line.Amount,
			Overage:      over,
		})
		rec.Total = total
		rec.Overage = overage
	}
	return rec, nil
}
