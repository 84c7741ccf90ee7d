package repository

import (
	"context"
	"time"

	"wonderclimb/internal/database"
	"wonderclimb/internal/domain"
)

type ActivationTokenRepository struct {
	db *database.Handle
}

func NewActivationTokenRepository(db *database.Handle) *ActivationTokenRepository {
	return &ActivationTokenRepository{db: db}
}

func (r *ActivationTokenRepository) Create(ctx context.Context, t *domain.ActivationToken) error {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(t).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *ActivationTokenRepository) GetByToken(ctx context.Context, token string) (*domain.ActivationToken, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var t domain.ActivationToken
	if err := db.Where("token = ?", token).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// Consume sets used_at only while the token is unused and unexpired.
// Exactly one concurrent caller gets true.
func (r *ActivationTokenRepository) Consume(ctx context.Context, id int64, now time.Time) (bool, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return false, err
	}
	res := db.Model(&domain.ActivationToken{}).
		Where("id = ? AND used_at IS NULL AND expires_at > ?", id, now).
		Update("used_at", now)
	return res.RowsAffected == 1, res.Error
}

// InvalidateForUser burns every pending token of the user.
func (r *ActivationTokenRepository) InvalidateForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Model(&domain.ActivationToken{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", now)
	return res.RowsAffected, res.Error
}

func (r *ActivationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Where("expires_at < ? OR used_at IS NOT NULL", now).Delete(&domain.ActivationToken{})
	return res.RowsAffected, res.Error
}
