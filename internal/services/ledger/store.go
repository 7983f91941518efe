// Package ledger owns the fund pool balance. The balance is a single
// system setting row and Credit and Debit are its only writers; both run
// inside the caller's transaction so the balance change commits or rolls
// back with the state change that caused it.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/repository"
)

const BalanceKey = "fund_pool_balance"

const (
	ActionCredit = "ledger.credit"
	ActionDebit  = "ledger.debit"
	EntityType   = "ledger"
)

// Cause identifies the entity whose transition moved the balance.
type Cause struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
}

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Credit adds amount to the pool and returns the new balance.
func (s *Store) Credit(tx *gorm.DB, amount int64, cause Cause) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.Invalid("amount", "credit must be positive")
	}
	return s.apply(tx, amount, cause, ActionCredit)
}

// Debit removes amount from the pool. It fails with InsufficientFundsError,
// leaving the balance untouched, if the result would be negative.
func (s *Store) Debit(tx *gorm.DB, amount int64, cause Cause) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.Invalid("amount", "debit must be positive")
	}
	return s.apply(tx, -amount, cause, ActionDebit)
}

func (s *Store) apply(tx *gorm.DB, delta int64, cause Cause, action string) (int64, error) {
	setting, current, err := lockBalance(tx)
	if err != nil {
		return 0, err
	}

	next := current + delta
	if next < 0 {
		return current, &apperrors.InsufficientFundsError{Balance: current, Requested: -delta}
	}

	err = tx.Model(setting).Updates(map[string]interface{}{
		"value":      strconv.FormatInt(next, 10),
		"updated_by": cause.ActorID,
		"updated_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	err = repository.NewAuditRepository(tx).Record(action, EntityType, cause.EntityID, cause.ActorID, map[string]interface{}{
		"key":        BalanceKey,
		"from":       current,
		"delta":      delta,
		"to":         next,
		"cause_type": cause.EntityType,
		"cause_id":   cause.EntityID.String(),
	})
	if err != nil {
		return 0, err
	}

	s.log.Debug().
		Str("action", action).
		Int64("from", current).
		Int64("to", next).
		Str("cause_type", cause.EntityType).
		Str("cause_id", cause.EntityID.String()).
		Msg("ledger updated")

	return next, nil
}

// lockBalance creates the balance row on first use and locks it.
func lockBalance(tx *gorm.DB) (*models.SystemSetting, int64, error) {
	seed := models.SystemSetting{Key: BalanceKey, Value: "0"}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, 0, fmt.Errorf("seed balance: %w", err)
	}

	var setting models.SystemSetting
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: BalanceKey}).
		First(&setting).Error
	if err != nil {
		return nil, 0, fmt.Errorf("lock balance: %w", err)
	}

	value, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("corrupt balance %q: %w", setting.Value, err)
	}
	return &setting, value, nil
}

// Balance reads the committed pool balance. A pool never touched reads 0.
func (s *Store) Balance(ctx context.Context) (int64, error) {
	var setting models.SystemSetting
	res := s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: BalanceKey}).
		Limit(1).
		Find(&setting)
	if res.Error != nil {
		return 0, fmt.Errorf("read balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	return strconv.ParseInt(setting.Value, 10, 64)
}

// History returns the newest ledger audit entries first.
func (s *Store) History(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return repository.NewAuditRepository(s.db.WithContext(ctx)).ByEntityType(EntityType, limit)
}
