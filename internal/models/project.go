package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatorID   uuid.UUID `gorm:"type:uuid;index" json:"creator_id"`
	Status      string    `gorm:"type:varchar(16)" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Votes []Vote `gorm:"foreignKey:ProjectID" json:"votes,omitempty"`
}

type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Choice    string    `gorm:"type:varchar(16)" json:"choice"`
	CreatedAt time.Time `json:"created_at"`
}
