package budget

import (
	"github.com/google/uuid"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/models"
)

// transitions is the full set of legal status edges. Anything absent is
// illegal.
var transitions = map[models.BudgetStatus][]models.BudgetStatus{
	models.BudgetPending: {
		models.BudgetApproved,
		models.BudgetRejected,
		models.BudgetRevisionRequested,
		models.BudgetRevoked,
	},
	models.BudgetRevisionRequested: {
		models.BudgetPending,
		models.BudgetRevoked,
	},
	models.BudgetApproved: {
		models.BudgetPartiallyDisbursed,
		models.BudgetDisbursed,
		models.BudgetRevoked,
	},
	models.BudgetPartiallyDisbursed: {
		models.BudgetPartiallyDisbursed,
		models.BudgetDisbursed,
		models.BudgetRevoked,
	},
	models.BudgetDisbursed: nil,
	models.BudgetRejected:  nil,
	models.BudgetRevoked:   nil,
}

// Statuses lists every budget status.
var Statuses = []models.BudgetStatus{
	models.BudgetPending,
	models.BudgetRevisionRequested,
	models.BudgetApproved,
	models.BudgetPartiallyDisbursed,
	models.BudgetDisbursed,
	models.BudgetRejected,
	models.BudgetRevoked,
}

func CanTransition(from, to models.BudgetStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Allowed returns the legal next statuses of from.
func Allowed(from models.BudgetStatus) []string {
	next := transitions[from]
	out := make([]string, 0, len(next))
	for _, s := range next {
		out = append(out, string(s))
	}
	return out
}

// IsTerminal reports whether no edge leaves s.
func IsTerminal(s models.BudgetStatus) bool {
	return len(transitions[s]) == 0
}

// IsEditable reports whether the owner may still change line items.
func IsEditable(s models.BudgetStatus) bool {
	return s == models.BudgetPending || s == models.BudgetRevisionRequested
}

// IsFunded reports whether money was reserved for a budget in status s, so
// expenditures and supplementary requests may be filed against it.
func IsFunded(s models.BudgetStatus) bool {
	switch s {
	case models.BudgetApproved, models.BudgetPartiallyDisbursed, models.BudgetDisbursed:
		return true
	}
	return false
}

func checkTransition(id uuid.UUID, from, to models.BudgetStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &apperrors.InvalidStateTransitionError{
		Entity:  "budget",
		ID:      id.String(),
		From:    string(from),
		To:      string(to),
		Allowed: Allowed(from),
	}
}
