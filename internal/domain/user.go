package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleCoach      UserRole = "coach"
	RoleClimber    UserRole = "climber"
	RoleInstructor UserRole = "instructor"
)

// DefaultRole is assigned when registration supplies no roles.
const DefaultRole = RoleClimber

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleClimber, RoleInstructor:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

type ActivationStatus string

const (
	ActivationNotActivated ActivationStatus = "not_activated"
	ActivationEmailSent    ActivationStatus = "email_sent"
	ActivationActivated    ActivationStatus = "activated"
)

type User struct {
	ID               int64            `json:"id" gorm:"primaryKey"`
	Email            string           `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash     *string          `json:"-" gorm:"column:password_hash"`
	FirstName        string           `json:"firstName" gorm:"size:100;not null"`
	MiddleName       *string          `json:"middleName,omitempty" gorm:"size:100"`
	LastName         string           `json:"lastName" gorm:"size:100;not null"`
	Phone            string           `json:"phone,omitempty" gorm:"size:32"`
	Roles            []UserRole       `json:"roles" gorm:"serializer:json;type:text;not null"`
	AccountStatus    AccountStatus    `json:"accountStatus" gorm:"size:16;index;not null"`
	EmailVerified    bool             `json:"emailVerified" gorm:"not null;default:false"`
	EmailVerifiedAt  *time.Time       `json:"emailVerifiedAt,omitempty"`
	ActivationStatus ActivationStatus `json:"emailActivationStatus" gorm:"column:email_activation_status;size:16"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// NormalizeEmail lowercases and trims an address before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether the account can log in with a local password.
// Federation-only accounts have no hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) IsActive() bool {
	return u.AccountStatus == AccountActive
}

func (u *User) FullName() string {
	parts := []string{u.FirstName}
	if u.MiddleName != nil && *u.MiddleName != "" {
		parts = append(parts, *u.MiddleName)
	}
	parts = append(parts, u.LastName)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, string(r))
	}
	return out
}
