package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Entity: "user", ID: email}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var (
	ErrEmailTaken  = errors.New("email belongs to another user")
	ErrUserDeleted = errors.New("user was deleted")
)

// deletionNamespace derives the id of a user's deletion record from the user
// id, so the record can be found again without storing the id itself.
var deletionNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e90-a3c1-d2f8b6e4a710")

func DeletionID(userID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(deletionNamespace, userID[:])
}

// WasDeleted reports whether a deletion record exists for the user id.
func (r *UserRepository) WasDeleted(id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.Model(&models.AuditLog{}).Where("entity_id = ?", DeletionID(id)).Count(&n).Error
	return n > 0, err
}

// Ensure inserts the user on first sight. It returns ErrEmailTaken when
// another id holds the email and ErrUserDeleted for a removed user.
func (r *UserRepository) Ensure(u *models.User) error {
	var found []models.User
	if err := r.db.Where("id = ? OR email = ?", u.ID, u.Email).Find(&found).Error; err != nil {
		return err
	}
	for _, existing := range found {
		if existing.ID == u.ID {
			return nil
		}
	}
	if len(found) > 0 {
		return ErrEmailTaken
	}

	deleted, err := r.WasDeleted(u.ID)
	if err != nil {
		return err
	}
	if deleted {
		return ErrUserDeleted
	}
	return r.db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(u).Error
}

func (r *UserRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&models.User{}, "id = ?", id).Error
}
