package budget

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/models"
)

const MaxBatches = 12

// GenerateBatches splits total into count parts of floor(total/count); the
// last part absorbs the remainder.
func GenerateBatches(total int64, count int) ([]int64, error) {
	if count < 1 || count > MaxBatches {
		return nil, apperrors.Invalid("batch_count", fmt.Sprintf("must be between 1 and %d", MaxBatches))
	}
	if total <= 0 {
		return nil, apperrors.Invalid("amount", "must be positive")
	}

	per := total / int64(count)
	amounts := make([]int64, count)
	for i := 0; i < count-1; i++ {
		amounts[i] = per
	}
	amounts[count-1] = total - per*int64(count-1)
	return amounts, nil
}

func buildBatches(budgetID uuid.UUID, total int64, count int) ([]models.Batch, error) {
	amounts, err := GenerateBatches(total, count)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	batches := make([]models.Batch, len(amounts))
	for i, amount := range amounts {
		batches[i] = models.Batch{
			ID:        uuid.New(),
			BudgetID:  budgetID,
			Sequence:  i + 1,
			Amount:    amount,
			Status:    models.BatchPending,
			CreatedAt: now,
		}
	}
	return batches, nil
}
