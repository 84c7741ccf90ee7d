package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wonderclimb/internal/database"
	"wonderclimb/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T) *database.Handle {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	h := database.NewHandle(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	db, err := h.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func seedUser(t *testing.T, repo *UserRepository, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:         email,
		FirstName:     "A",
		LastName:      "B",
		Roles:         []domain.UserRole{domain.RoleClimber},
		AccountStatus: domain.AccountActive,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestUserRepository_CreateNormalizesAndRejectsDuplicates(t *testing.T) {
	h := newTestHandle(t)
	repo := NewUserRepository(h)
	ctx := context.Background()

	u := seedUser(t, repo, "  Climber@Example.COM ")
	assert.Equal(t, "climber@example.com", u.Email)
	assert.NotZero(t, u.ID)

	got, err := repo.GetByEmail(ctx, "CLIMBER@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []domain.UserRole{domain.RoleClimber}, got.Roles)

	exists, err := repo.ExistsByEmail(ctx, "climber@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &domain.User{Email: "climber@example.com", FirstName: "C", LastName: "D", Roles: []domain.UserRole{domain.RoleCoach}, AccountStatus: domain.AccountActive}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicate)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_MarkActivated(t *testing.T) {
	h := newTestHandle(t)
	repo := NewUserRepository(h)
	ctx := context.Background()

	u := &domain.User{
		Email:         "pending@example.com",
		FirstName:     "A",
		LastName:      "B",
		Roles:         []domain.UserRole{domain.RoleClimber},
		AccountStatus: domain.AccountInactive,
	}
	require.NoError(t, repo.Create(ctx, u))

	now := time.Now().UTC()
	require.NoError(t, repo.MarkActivated(ctx, u.ID, now))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountActive, got.AccountStatus)
	assert.True(t, got.EmailVerified)
	assert.NotNil(t, got.EmailVerifiedAt)
	assert.Equal(t, domain.ActivationActivated, got.ActivationStatus)

	assert.ErrorIs(t, repo.MarkActivated(ctx, 9999, now), ErrNotFound)
}

func TestRefreshTokenRepository_RotateIsCompareAndSwap(t *testing.T) {
	h := newTestHandle(t)
	users := NewUserRepository(h)
	tokens := NewRefreshTokenRepository(h)
	ctx := context.Background()
	u := seedUser(t, users, "rotate@example.com")

	now := time.Now().UTC()
	current := &domain.RefreshToken{UserID: u.ID, TokenHash: "h0", FamilyID: "fam", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, tokens.Create(ctx, current))

	next := &domain.RefreshToken{UserID: u.ID, TokenHash: "h1", FamilyID: "fam", ExpiresAt: now.Add(time.Hour)}
	swapped, err := tokens.Rotate(ctx, current.ID, next, now)
	require.NoError(t, err)
	assert.True(t, swapped)

	again := &domain.RefreshToken{UserID: u.ID, TokenHash: "h2", FamilyID: "fam", ExpiresAt: now.Add(time.Hour)}
	swapped, err = tokens.Rotate(ctx, current.ID, again, now)
	require.NoError(t, err)
	assert.False(t, swapped, "a rotated row never swaps twice")

	old, err := tokens.GetByHash(ctx, "h0")
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, "h1", *old.ReplacedBy)

	_, err = tokens.GetByHash(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound, "losing rotation inserts nothing")
}

func TestRefreshTokenRepository_ConcurrentRotateSingleWinner(t *testing.T) {
	h := newTestHandle(t)
	users := NewUserRepository(h)
	tokens := NewRefreshTokenRepository(h)
	ctx := context.Background()
	u := seedUser(t, users, "race@example.com")

	now := time.Now().UTC()
	current := &domain.RefreshToken{UserID: u.ID, TokenHash: "root", FamilyID: "fam", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, tokens.Create(ctx, current))

	const n = 12
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := &domain.RefreshToken{UserID: u.ID, TokenHash: fmt.Sprintf("next-%d", i), FamilyID: "fam", ExpiresAt: now.Add(time.Hour)}
			ok, err := tokens.Rotate(ctx, current.ID, next, now)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRefreshTokenRepository_RevokeIsIdempotent(t *testing.T) {
	h := newTestHandle(t)
	users := NewUserRepository(h)
	tokens := NewRefreshTokenRepository(h)
	ctx := context.Background()
	u := seedUser(t, users, "logout@example.com")

	now := time.Now().UTC()
	require.NoError(t, tokens.Create(ctx, &domain.RefreshToken{UserID: u.ID, TokenHash: "t", FamilyID: "f", ExpiresAt: now.Add(time.Hour)}))

	changed, err := tokens.Revoke(ctx, "t", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = tokens.Revoke(ctx, "t", now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = tokens.Revoke(ctx, "unknown", now)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := tokens.GetByHash(ctx, "t")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	assert.Nil(t, got.ReplacedBy)
}

func TestRefreshTokenRepository_RevokeFamilyAndCleanup(t *testing.T) {
	h := newTestHandle(t)
	users := NewUserRepository(h)
	tokens := NewRefreshTokenRepository(h)
	ctx := context.Background()
	u := seedUser(t, users, "family@example.com")

	now := time.Now().UTC()
	require.NoError(t, tokens.Create(ctx, &domain.RefreshToken{UserID: u.ID, TokenHash: "a", FamilyID: "f1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &domain.RefreshToken{UserID: u.ID, TokenHash: "b", FamilyID: "f1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &domain.RefreshToken{UserID: u.ID, TokenHash: "c", FamilyID: "f2", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &domain.RefreshToken{UserID: u.ID, TokenHash: "old", FamilyID: "f3", ExpiresAt: now.Add(-time.Hour)}))

	n, err := tokens.RevokeFamily(ctx, "f1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	c, err := tokens.GetByHash(ctx, "c")
	require.NoError(t, err)
	assert.False(t, c.Revoked)

	deleted, err := tokens.DeleteExpired(ctx, now.Add(time.Second), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted, "expired row plus the revoked family")

	n, err = tokens.RevokeByUser(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestActivationTokenRepository_ConsumeOnce(t *testing.T) {
	h := newTestHandle(t)
	users := NewUserRepository(h)
	acts := NewActivationTokenRepository(h)
	ctx := context.Background()
	u := seedUser(t, users, "act@example.com")

	now := time.Now().UTC()
	tok := &domain.ActivationToken{UserID: u.ID, Token: "abc", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, acts.Create(ctx, tok))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := acts.Consume(ctx, tok.ID, now)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := acts.GetByToken(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsUsed())
}

func TestActivationTokenRepository_InvalidateForUser(t *testing.T) {
	h := newTestHandle(t)
	users := NewUserRepository(h)
	acts := NewActivationTokenRepository(h)
	ctx := context.Background()
	u := seedUser(t, users, "resend@example.com")

	now := time.Now().UTC()
	require.NoError(t, acts.Create(ctx, &domain.ActivationToken{UserID: u.ID, Token: "one", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, acts.Create(ctx, &domain.ActivationToken{UserID: u.ID, Token: "two", ExpiresAt: now.Add(time.Hour)}))

	n, err := acts.InvalidateForUser(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	deleted, err := acts.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}
