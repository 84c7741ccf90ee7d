package auth

import (
	"time"

	"wonderclimb/internal/domain"
)

type RegisterRequest struct {
	Email      string   `json:"email" binding:"required,email"`
	Password   string   `json:"password" binding:"required,min=6"`
	FirstName  string   `json:"firstName" binding:"required,notblank"`
	MiddleName string   `json:"middleName"`
	LastName   string   `json:"lastName" binding:"required,notblank"`
	Phone      string   `json:"phone"`
	Roles      []string `json:"roles" binding:"omitempty,dive,oneof=admin coach climber instructor"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ActivateRequest struct {
	Token string `json:"token" binding:"required,notblank"`
}

type ResendActivationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// UserPublic is the only user shape that leaves the service.
type UserPublic struct {
	ID                    int64      `json:"id"`
	Email                 string     `json:"email"`
	Name                  string     `json:"name"`
	FirstName             string     `json:"firstName"`
	MiddleName            string     `json:"middleName,omitempty"`
	LastName              string     `json:"lastName"`
	Phone                 string     `json:"phone,omitempty"`
	Roles                 []string   `json:"roles"`
	AccountStatus         string     `json:"accountStatus"`
	EmailVerified         bool       `json:"emailVerified"`
	EmailVerifiedAt       *time.Time `json:"emailVerifiedAt,omitempty"`
	EmailActivationStatus string     `json:"emailActivationStatus,omitempty"`
	HasPassword           bool       `json:"hasPassword"`
	CreatedAt             time.Time  `json:"createdAt"`
}

func toUserPublic(u *domain.User) UserPublic {
	p := UserPublic{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.FullName(),
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		Phone:                 u.Phone,
		Roles:                 u.RoleNames(),
		AccountStatus:         string(u.AccountStatus),
		EmailVerified:         u.EmailVerified,
		EmailVerifiedAt:       u.EmailVerifiedAt,
		EmailActivationStatus: string(u.ActivationStatus),
		HasPassword:           u.HasPassword(),
		CreatedAt:             u.CreatedAt,
	}
	if u.MiddleName != nil {
		p.MiddleName = *u.MiddleName
	}
	return p
}
