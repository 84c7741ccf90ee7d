package auth

import (
	"context"
	"time"

	"wonderclimb/internal/domain"
	"wonderclimb/internal/pkg/jwt"
	"wonderclimb/internal/pkg/oauth"
)

// UserStore is the subset of the user repository the auth flows need.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	MarkActivated(ctx context.Context, id int64, now time.Time) error
	SetActivationStatus(ctx context.Context, id int64, status domain.ActivationStatus) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, currentID int64, successor *domain.RefreshToken, now time.Time) (bool, error)
	Revoke(ctx context.Context, hash string, now time.Time) (bool, error)
	RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error)
	RevokeByUser(ctx context.Context, userID int64, now time.Time) (int64, error)
}

type ActivationTokenStore interface {
	Create(ctx context.Context, t *domain.ActivationToken) error
	GetByToken(ctx context.Context, token string) (*domain.ActivationToken, error)
	Consume(ctx context.Context, id int64, now time.Time) (bool, error)
	InvalidateForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
}

type TokenSigner interface {
	GenerateToken(sub jwt.Subject) (string, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// IdentityProvider is the external OAuth authorization-code provider.
type IdentityProvider interface {
	Configured() bool
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}
