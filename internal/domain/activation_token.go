package domain

import "time"

// ActivationToken is a single-use proof of control over the account email.
type ActivationToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID int64 `json:"user_id" gorm:"index;not null"`
	User   User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	Token     string     `json:"-" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *ActivationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *ActivationToken) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *ActivationToken) IsValid(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsUsed()
}
