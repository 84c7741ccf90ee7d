package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"wonderclimb/internal/domain"
	"wonderclimb/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// refreshTokenBytes gives 256 bits of entropy per token.
const refreshTokenBytes = 32

// Ledger is the source of truth for which refresh tokens are redeemable.
// Raw tokens only ever leave it towards the client; rows hold peppered hashes.
type Ledger struct {
	tokens              RefreshTokenStore
	pepper              string
	ttl                 time.Duration
	revokeFamilyOnReuse bool
	logger              *zap.Logger
	now                 func() time.Time
}

func NewLedger(tokens RefreshTokenStore, pepper string, ttl time.Duration, revokeFamilyOnReuse bool, logger *zap.Logger) *Ledger {
	return &Ledger{
		tokens:              tokens,
		pepper:              pepper,
		ttl:                 ttl,
		revokeFamilyOnReuse: revokeFamilyOnReuse,
		logger:              logger,
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) TTL() time.Duration { return l.ttl }

// Issue starts a new rotation family for the user.
func (l *Ledger) Issue(ctx context.Context, userID int64, clientIP string) (string, error) {
	raw, hash, err := generateOpaqueRefreshToken(l.pepper)
	if err != nil {
		return "", err
	}
	row := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		FamilyID:  uuid.NewString(),
		ExpiresAt: l.now().Add(l.ttl),
		CreatedIP: nullableString(clientIP),
	}
	if err := l.tokens.Create(ctx, row); err != nil {
		return "", storeErr("issue refresh token", err)
	}
	return raw, nil
}

// Rotate redeems presented and returns the owning user with a successor
// token. Only one caller can ever redeem a given token.
func (l *Ledger) Rotate(ctx context.Context, presented, clientIP string) (int64, string, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return 0, "", ErrRefreshMissing
	}

	now := l.now()
	current, err := l.tokens.GetByHash(ctx, hashTokenWithPepper(presented, l.pepper))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, "", ErrRefreshInvalid
		}
		return 0, "", storeErr("load refresh token", err)
	}

	if current.Revoked {
		l.reuseDetected(ctx, current, clientIP, now)
		return 0, "", ErrRefreshReused
	}
	if current.IsExpired(now) {
		return 0, "", ErrRefreshExpired
	}

	raw, hash, err := generateOpaqueRefreshToken(l.pepper)
	if err != nil {
		return 0, "", err
	}
	successor := &domain.RefreshToken{
		UserID:    current.UserID,
		TokenHash: hash,
		FamilyID:  current.FamilyID,
		ExpiresAt: now.Add(l.ttl),
		CreatedIP: nullableString(clientIP),
	}

	swapped, err := l.tokens.Rotate(ctx, current.ID, successor, now)
	if err != nil {
		return 0, "", storeErr("rotate refresh token", err)
	}
	if !swapped {
		// lost the race to a concurrent rotation (or expiry at the same instant)
		l.reuseDetected(ctx, current, clientIP, now)
		return 0, "", ErrRefreshReused
	}
	return current.UserID, raw, nil
}

// Revoke ends a single token without a successor. Unknown and already
// revoked tokens are not errors.
func (l *Ledger) Revoke(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}
	if _, err := l.tokens.Revoke(ctx, hashTokenWithPepper(presented, l.pepper), l.now()); err != nil {
		return storeErr("revoke refresh token", err)
	}
	return nil
}

// RevokeAll ends every live session of the user.
func (l *Ledger) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := l.tokens.RevokeByUser(ctx, userID, l.now())
	if err != nil {
		return 0, storeErr("revoke user refresh tokens", err)
	}
	return n, nil
}

func (l *Ledger) reuseDetected(ctx context.Context, t *domain.RefreshToken, clientIP string, now time.Time) {
	l.logger.Warn("refresh token reuse detected",
		zap.Int64("user_id", t.UserID),
		zap.Int64("token_id", t.ID),
		zap.String("family_id", t.FamilyID),
		zap.Bool("rotated", t.IsRotated()),
		zap.String("ip", clientIP),
	)
	if !l.revokeFamilyOnReuse {
		return
	}
	n, err := l.tokens.RevokeFamily(ctx, t.FamilyID, now)
	if err != nil {
		l.logger.Error("revoke token family failed", zap.String("family_id", t.FamilyID), zap.Error(err))
		return
	}
	l.logger.Warn("token family revoked after reuse", zap.Int64("user_id", t.UserID), zap.String("family_id", t.FamilyID), zap.Int64("revoked", n))
}

func generateOpaqueRefreshToken(pepper string) (raw string, hash string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, hashTokenWithPepper(raw, pepper), nil
}

func hashTokenWithPepper(raw, pepper string) string {
	sum := sha256.Sum256([]byte(raw + pepper))
	return hex.EncodeToString(sum[:])
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
