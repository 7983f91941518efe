package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/repository"
)

const (
	ActionDeleted = "user.deleted"
	// EntityType of the deletion record. Its entity id is derived from the
	// user id, so nothing left behind holds the removed user's id.
	EntityType = "user_deletion"
)

// Coordinator removes a user together with everything the user owns or is
// referenced by.
type Coordinator struct {
	db   *gorm.DB
	plan []Step
	log  zerolog.Logger
}

func NewCoordinator(db *gorm.DB, log zerolog.Logger) *Coordinator {
	return &Coordinator{db: db, plan: Plan(), log: log}
}

type DeleteResult struct {
	DeletionID uuid.UUID        `json:"deletion_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Forced     bool             `json:"forced"`
	Counts     map[string]int64 `json:"counts"`
	// Affected is the number of rows removed or detached by the plan.
	Affected int64 `json:"affected"`
}

// Dependents counts, per plan step, the rows a forced deletion would touch.
func (c *Coordinator) Dependents(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	var counts map[string]int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.NewUserRepository(tx).GetByID(userID); err != nil {
			return err
		}
		var err error
		counts, err = c.count(tx, userID)
		return err
	})
	return counts, err
}

// Delete removes the user. Without force a user with any dependent row is
// left alone and HasDependentsError carries the counts. With force the plan
// runs in one transaction; any failure rolls back the whole deletion.
func (c *Coordinator) Delete(ctx context.Context, caller identity.Caller, userID uuid.UUID, force bool) (*DeleteResult, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	if caller.Owns(userID) {
		return nil, apperrors.Forbidden("admins cannot delete themselves")
	}

	result := &DeleteResult{DeletionID: repository.DeletionID(userID), UserID: userID, Forced: force}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		if _, err := users.GetByID(userID); err != nil {
			return err
		}

		counts, err := c.count(tx, userID)
		if err != nil {
			return err
		}
		result.Counts = counts

		var total int64
		for _, n := range counts {
			total += n
		}
		if total > 0 {
			if !force {
				return &apperrors.HasDependentsError{UserID: userID.String(), Counts: counts}
			}
			if result.Affected, err = c.execute(tx, userID); err != nil {
				return err
			}
		}

		if err := users.Delete(userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return repository.NewAuditRepository(tx).Record(ActionDeleted, EntityType, result.DeletionID, &caller.ID, map[string]interface{}{
			"forced":   force,
			"counts":   counts,
			"affected": result.Affected,
		})
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("user_id", userID.String()).
		Str("deletion_id", result.DeletionID.String()).
		Str("deleted_by", caller.ID.String()).
		Bool("forced", force).
		Int64("affected", result.Affected).
		Msg("User deleted")
	return result, nil
}

func (c *Coordinator) count(tx *gorm.DB, userID uuid.UUID) (map[string]int64, error) {
	counts := make(map[string]int64, len(c.plan))
	for _, step := range c.plan {
		var n int64
		if err := step.Scope(tx, userID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", step.Key, err)
		}
		counts[step.Key] = n
	}
	return counts, nil
}

func (c *Coordinator) execute(tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var affected int64
	for _, step := range c.plan {
		var res *gorm.DB
		switch step.Mode {
		case Detach:
			res = step.Scope(tx, userID).Update(step.Column, nil)
		default:
			res = step.Scope(tx, userID).Delete(step.Model)
		}
		if res.Error != nil {
			return 0, fmt.Errorf("%s: %w", step.Key, res.Error)
		}
		c.log.Debug().
			Str("user_id", userID.String()).
			Str("step", step.Key).
			Int64("rows", res.RowsAffected).
			Msg("Deletion step applied")
		affected += res.RowsAffected
	}
	return affected, nil
}
