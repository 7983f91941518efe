package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

// Store persists in-app notifications, skipping recipients who turned them
// off. A missing preference row counts as enabled.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Notify(ctx context.Context, n Notification) error {
	var pref models.Preference
	err := s.db.WithContext(ctx).Where("user_id = ?", n.RecipientID).First(&pref).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return fmt.Errorf("load preferences: %w", err)
	case !pref.InAppNotifications:
		return nil
	}

	var data datatypes.JSON
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
		data = datatypes.JSON(raw)
	}

	row := models.Notification{
		ID:          uuid.New(),
		RecipientID: n.RecipientID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        n.Type,
		Data:        data,
	}
	if !n.CreatedAt.IsZero() {
		row.CreatedAt = n.CreatedAt
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListUnread returns a user's unread notifications, newest first.
func (s *Store) ListUnread(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	var rows []models.Notification
	err := s.db.WithContext(ctx).
		Where("recipient_id = ? AND read = ?", userID, false).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
