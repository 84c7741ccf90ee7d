package repository

import (
	"context"
	"time"

	"wonderclimb/internal/database"
	"wonderclimb/internal/domain"

	"gorm.io/gorm"
)

// RefreshTokenRepository provides DB access for refresh tokens.
type RefreshTokenRepository struct {
	db *database.Handle
}

func NewRefreshTokenRepository(db *database.Handle) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
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

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var t domain.RefreshToken
	if err := db.Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// Rotate moves the row from active to rotated and inserts its successor.
// The update only matches while the row is still active, so of several
// concurrent callers exactly one observes swapped == true.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, currentID int64, successor *domain.RefreshToken, now time.Time) (swapped bool, err error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return false, err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.RefreshToken{}).
			Where("id = ? AND revoked = ? AND expires_at > ?", currentID, false, now).
			Updates(map[string]any{
				"revoked":     true,
				"revoked_at":  now,
				"replaced_by": successor.TokenHash,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(successor).Error; err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Revoke marks an active row revoked without a successor. Revoking an
// already revoked or unknown token changes nothing and is not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return false, err
	}
	res := db.Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked = ?", hash, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	return res.RowsAffected > 0, res.Error
}

func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Model(&domain.RefreshToken{}).
		Where("family_id = ? AND revoked = ?", familyID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	return res.RowsAffected, res.Error
}

func (r *RefreshTokenRepository) RevokeByUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	return res.RowsAffected, res.Error
}

// DeleteExpired removes expired rows and rows revoked longer than retention ago.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	res := db.
		Where("expires_at < ? OR (revoked = ? AND revoked_at < ?)", now, true, now.Add(-retention)).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
