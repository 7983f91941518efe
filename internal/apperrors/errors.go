// Package apperrors defines the typed failures returned by the fund ledger
// and budget lifecycle services. Each type carries enough detail for the
// caller to render a precise message.
package apperrors

import (
	"fmt"
	"sort"
	"strings"
)

type InsufficientFundsError struct {
	Balance   int64 `json:"balance"`
	Requested int64 `json:"requested"`
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, requested %d", e.Balance, e.Requested)
}

type InvalidStateTransitionError struct {
	Entity  string   `json:"entity"`
	ID      string   `json:"id"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Allowed []string `json:"allowed"`
}

func (e *InvalidStateTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("%s %s cannot move from %s to %s (allowed: %s)", e.Entity, e.ID, e.From, e.To, allowed)
}

type ExceedsAllocationError struct {
	Requested int64 `json:"requested"`
	Remaining int64 `json:"remaining"`
}

func (e *ExceedsAllocationError) Error() string {
	return fmt.Sprintf("disbursement of %d exceeds remaining allocation %d", e.Requested, e.Remaining)
}

type InvalidLineItemError struct {
	BudgetID string `json:"budget_id"`
	ItemID   string `json:"item_id"`
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("line item %s does not belong to budget %s", e.ItemID, e.BudgetID)
}

type AlreadyProcessedError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s %s was already processed (status %s)", e.Entity, e.ID, e.Status)
}

type HasDependentsError struct {
	UserID string           `json:"user_id"`
	Counts map[string]int64 `json:"counts"`
}

// Total sums the per-type counts.
func (e *HasDependentsError) Total() int64 {
	var total int64
	for _, n := range e.Counts {
		total += n
	}
	return total
}

func (e *HasDependentsError) Error() string {
	keys := make([]string, 0, len(e.Counts))
	for k, n := range e.Counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Counts[k]))
	}
	return fmt.Sprintf("user %s has %d dependent records (%s)", e.UserID, e.Total(), strings.Join(parts, ", "))
}

type NotFoundError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type ForbiddenError struct {
	Reason string `json:"reason"`
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// ValidationError reports malformed input before any state is read.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NotFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
