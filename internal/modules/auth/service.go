package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"wonderclimb/internal/domain"
	"wonderclimb/internal/pkg/jwt"
	"wonderclimb/internal/pkg/mailer"
	"wonderclimb/internal/repository"

	"go.uber.org/zap"
)

const oauthStateTTL = 10 * time.Minute

type Deps struct {
	Users            UserStore
	RefreshTokens    RefreshTokenStore
	ActivationTokens ActivationTokenStore
	Hasher           PasswordHasher
	Signer           TokenSigner
	Mailer           mailer.Mailer
	Provider         IdentityProvider
	States           StateStore
}

type Options struct {
	RefreshTTL             time.Duration
	RefreshTokenPepper     string
	RevokeFamilyOnReuse    bool
	ActivationEmailEnabled bool
	ActivationTTL          time.Duration
	ActivationEmail        ActivationEmail
	Development            bool
}

// Service orchestrates every authentication flow. It is the only piece the
// HTTP layer talks to.
type Service struct {
	users      UserStore
	hasher     PasswordHasher
	signer     TokenSigner
	mailer     mailer.Mailer
	states     StateStore
	ledger     *Ledger
	activation *ActivationIssuer
	federation *Federation
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// Session is what a successful login-like flow hands back.
type Session struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

type RegisterResult struct {
	User               *domain.User
	Session            *Session
	RequiresActivation bool
}

func NewService(d Deps, opts Options, logger *zap.Logger) *Service {
	states := d.States
	if states == nil {
		states = CookieStateStore{}
	}
	m := d.Mailer
	if m == nil {
		m = mailer.NewLogMailer(logger)
	}
	return &Service{
		users:      d.Users,
		hasher:     d.Hasher,
		signer:     d.Signer,
		mailer:     m,
		states:     states,
		ledger:     NewLedger(d.RefreshTokens, opts.RefreshTokenPepper, opts.RefreshTTL, opts.RevokeFamilyOnReuse, logger),
		activation: NewActivationIssuer(d.ActivationTokens, opts.ActivationTTL),
		federation: NewFederation(d.Provider, d.Users, opts.ActivationEmailEnabled),
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest, clientIP string) (*RegisterResult, error) {
	email := domain.NormalizeEmail(req.Email)
	roles, err := parseRoles(req.Roles)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, validationErr("first and last name are required")
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("check email", err)
	}
	if exists {
		return nil, ErrDuplicateAccount
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, validationErr(err.Error())
	}

	u := &domain.User{
		Email:            email,
		PasswordHash:     &hash,
		FirstName:        strings.TrimSpace(req.FirstName),
		MiddleName:       nullableString(req.MiddleName),
		LastName:         strings.TrimSpace(req.LastName),
		Phone:            strings.TrimSpace(req.Phone),
		Roles:            roles,
		AccountStatus:    domain.AccountInactive,
		ActivationStatus: domain.ActivationNotActivated,
	}
	if !s.opts.ActivationEmailEnabled {
		// without activation mail the address counts as verified on sign-up
		now := s.now()
		u.AccountStatus = domain.AccountActive
		u.EmailVerified = true
		u.EmailVerifiedAt = &now
		u.ActivationStatus = domain.ActivationActivated
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, storeErr("create user", err)
	}

	if s.opts.ActivationEmailEnabled {
		// the account exists from here on; mail problems are recoverable via resend
		if err := s.sendActivation(ctx, u); err != nil {
			s.logger.Error("activation email not sent", zap.Int64("user_id", u.ID), zap.Error(err))
		}
		return &RegisterResult{User: u, RequiresActivation: true}, nil
	}

	sess, err := s.issueSession(ctx, u, clientIP)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: u, Session: sess}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest, clientIP string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("load user", err)
	}
	if !u.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrAccountInactive
	}
	if !s.hasher.Verify(req.Password, *u.PasswordHash) {
		s.logger.Warn("failed login", zap.Int64("user_id", u.ID), zap.String("ip", clientIP))
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, u, clientIP)
}

// Refresh rotates the presented refresh token.
func (s *Service) Refresh(ctx context.Context, presented, clientIP string) (*Session, error) {
	userID, next, err := s.ledger.Rotate(ctx, presented, clientIP)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, storeErr("load user", err)
	}
	if !u.IsActive() {
		// a deactivated account keeps no sessions, including the one just rotated
		if n, err := s.ledger.RevokeAll(ctx, u.ID); err != nil {
			s.logger.Error("revoke sessions of inactive user", zap.Int64("user_id", u.ID), zap.Error(err))
		} else {
			s.logger.Info("sessions of inactive user revoked", zap.Int64("user_id", u.ID), zap.Int64("revoked", n))
		}
		return nil, ErrAccountInactive
	}
	access, err := s.signer.GenerateToken(subjectOf(u))
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: next}, nil
}

func (s *Service) Logout(ctx context.Context, presented string) error {
	return s.ledger.Revoke(ctx, presented)
}

func (s *Service) Activate(ctx context.Context, token, clientIP string) (*Session, error) {
	userID, err := s.activation.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.users.MarkActivated(ctx, userID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivationInvalid
		}
		return nil, storeErr("activate user", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	return s.issueSession(ctx, u, clientIP)
}

// ResendActivation replaces any outstanding activation token with a new one.
// Unknown, verified, and disabled cases return nil so callers learn nothing
// about which addresses are registered.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	if !s.opts.ActivationEmailEnabled {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storeErr("load user", err)
	}
	if u.EmailVerified {
		return nil
	}
	if err := s.activation.InvalidateFor(ctx, u.ID); err != nil {
		return err
	}
	if err := s.sendActivation(ctx, u); err != nil {
		s.logger.Error("activation email not resent", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("load user", err)
	}
	return u, nil
}

// OAuthStart returns the provider URL and the state the caller must pin to
// the browser.
func (s *Service) OAuthStart(ctx context.Context) (string, string, error) {
	if !s.federation.Enabled() {
		return "", "", ErrFederationDisabled
	}
	state, err := secureRandomString(32)
	if err != nil {
		return "", "", err
	}
	if err := s.states.Save(ctx, state, oauthStateTTL); err != nil {
		return "", "", storeErr("save oauth state", err)
	}
	u, err := s.federation.AuthCodeURL(state)
	if err != nil {
		return "", "", err
	}
	return u, state, nil
}

func (s *Service) OAuthCallback(ctx context.Context, code, returnedState, pinnedState, clientIP string) (*Session, error) {
	if returnedState == "" || pinnedState == "" ||
		subtle.ConstantTimeCompare([]byte(returnedState), []byte(pinnedState)) != 1 {
		return nil, ErrInvalidState
	}
	ok, err := s.states.Consume(ctx, returnedState)
	if err != nil {
		return nil, storeErr("consume oauth state", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	u, err := s.federation.Authenticate(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, u, clientIP)
}

func (s *Service) RefreshTTL() time.Duration { return s.ledger.TTL() }

func (s *Service) issueSession(ctx context.Context, u *domain.User, clientIP string) (*Session, error) {
	access, err := s.signer.GenerateToken(subjectOf(u))
	if err != nil {
		return nil, err
	}
	refresh, err := s.ledger.Issue(ctx, u.ID, clientIP)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

func subjectOf(u *domain.User) jwt.Subject {
	return jwt.Subject{UserID: u.ID, Email: u.Email, Roles: u.RoleNames()}
}

func parseRoles(in []string) ([]domain.UserRole, error) {
	if len(in) == 0 {
		return []domain.UserRole{domain.DefaultRole}, nil
	}
	seen := make(map[domain.UserRole]bool, len(in))
	out := make([]domain.UserRole, 0, len(in))
	for _, raw := range in {
		r := domain.UserRole(strings.ToLower(strings.TrimSpace(raw)))
		if !r.Valid() {
			return nil, validationErr("unknown role " + raw)
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out, nil
}

func secureRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
