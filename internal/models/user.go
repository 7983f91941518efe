package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preference holds per-user notification and display settings.
type Preference struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	InAppNotifications bool      `gorm:"default:true" json:"in_app_notifications"`
	PushNotifications  bool      `gorm:"default:true" json:"push_notifications"`
	Currency           string    `gorm:"type:varchar(3);default:'KES'" json:"currency"`
	UpdatedAt          time.Time `json:"updated_at"`
}
