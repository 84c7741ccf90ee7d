package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wonderclimb/internal/domain"
	"wonderclimb/internal/pkg/oauth"
	"wonderclimb/internal/repository"
)

// Federation maps an identity provider login onto a local account.
type Federation struct {
	provider          IdentityProvider
	users             UserStore
	activationEnabled bool
	now               func() time.Time
}

func NewFederation(provider IdentityProvider, users UserStore, activationEnabled bool) *Federation {
	return &Federation{
		provider:          provider,
		users:             users,
		activationEnabled: activationEnabled,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (f *Federation) Enabled() bool {
	return f.provider != nil && f.provider.Configured()
}

func (f *Federation) AuthCodeURL(state string) (string, error) {
	if !f.Enabled() {
		return "", ErrFederationDisabled
	}
	return f.provider.AuthCodeURL(state)
}

// Authenticate exchanges code with the provider and returns the local user.
func (f *Federation) Authenticate(ctx context.Context, code string) (*domain.User, error) {
	if !f.Enabled() {
		return nil, ErrFederationDisabled
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrFederation)
	}
	prof, err := f.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederation, err)
	}
	return f.resolve(ctx, prof)
}

func (f *Federation) resolve(ctx context.Context, prof *oauth.Profile) (*domain.User, error) {
	// An unverified address must never be matched to an existing account.
	if !prof.EmailVerified {
		return nil, fmt.Errorf("%w: provider email is not verified", ErrFederation)
	}
	email := domain.NormalizeEmail(prof.Email)
	u, err := f.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return f.create(ctx, email, prof)
	case err != nil:
		return nil, storeErr("load federated user", err)
	}

	if f.activationEnabled && !u.EmailVerified {
		now := f.now()
		if err := f.users.MarkActivated(ctx, u.ID, now); err != nil {
			return nil, storeErr("activate federated user", err)
		}
		u.AccountStatus = domain.AccountActive
		u.EmailVerified = true
		u.EmailVerifiedAt = &now
		u.ActivationStatus = domain.ActivationActivated
	}
	if !u.IsActive() {
		return nil, ErrAccountInactive
	}
	return u, nil
}

func (f *Federation) create(ctx context.Context, email string, prof *oauth.Profile) (*domain.User, error) {
	first, last := profileNames(prof, email)
	now := f.now()
	u := &domain.User{
		Email:            email,
		FirstName:        first,
		LastName:         last,
		Roles:            []domain.UserRole{domain.DefaultRole},
		AccountStatus:    domain.AccountActive,
		EmailVerified:    true,
		EmailVerifiedAt:  &now,
		ActivationStatus: domain.ActivationActivated,
	}
	if err := f.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// created concurrently by a parallel callback for the same address
			existing, gerr := f.users.GetByEmail(ctx, email)
			if gerr != nil {
				return nil, storeErr("load federated user", gerr)
			}
			return existing, nil
		}
		return nil, storeErr("create federated user", err)
	}
	return u, nil
}

func profileNames(prof *oauth.Profile, email string) (string, string) {
	first := strings.TrimSpace(prof.GivenName)
	last := strings.TrimSpace(prof.FamilyName)
	if first == "" && last == "" && strings.TrimSpace(prof.Name) != "" {
		parts := strings.Fields(prof.Name)
		first = parts[0]
		last = strings.Join(parts[1:], " ")
	}
	if first == "" {
		first = strings.SplitN(email, "@", 2)[0]
	}
	return first, last
}
