package domain

import "time"

// RefreshToken stores refresh tokens for users.
//
// Security notes:
// - We never store the raw token in DB, only its peppered SHA-256 hash (TokenHash).
// - On refresh we rotate tokens: old token is revoked and points at the hash of its
//   replacement. Once Revoked is set, Revoked and ReplacedBy never change again.
type RefreshToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID int64 `json:"user_id" gorm:"index;not null"`
	User   User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	TokenHash string `json:"-" gorm:"size:64;uniqueIndex;not null"`
	FamilyID  string `json:"family_id" gorm:"size:36;index;not null"`

	ExpiresAt  time.Time  `json:"expires_at" gorm:"index;not null"`
	Revoked    bool       `json:"revoked" gorm:"not null;default:false"`
	RevokedAt  *time.Time `json:"revoked_at"`
	ReplacedBy *string    `json:"-" gorm:"size:64"`
	CreatedIP  *string    `json:"created_ip" gorm:"size:64"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

// IsRotated is true for tokens that were exchanged for a successor, as
// opposed to tokens revoked by logout.
func (t *RefreshToken) IsRotated() bool {
	return t.Revoked && t.ReplacedBy != nil
}
