package repository

import (
	"context"
	"errors"
	"time"

	"wonderclimb/internal/database"
	"wonderclimb/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *database.Handle
}

func NewUserRepository(db *database.Handle) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	u.Email = domain.NormalizeEmail(u.Email)
	if err := db.Create(u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := db.Where("email = ?", domain.NormalizeEmail(email)).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := db.First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(&domain.User{}).Where("email = ?", domain.NormalizeEmail(email)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkActivated flips the account to active and records the email as verified.
func (r *UserRepository) MarkActivated(ctx context.Context, id int64, now time.Time) error {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"account_status":          domain.AccountActive,
		"email_verified":          true,
		"email_verified_at":       now,
		"email_activation_status": domain.ActivationActivated,
		"updated_at":              now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetActivationStatus(ctx context.Context, id int64, status domain.ActivationStatus) error {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	return db.Model(&domain.User{}).Where("id = ?", id).
		Update("email_activation_status", status).Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
