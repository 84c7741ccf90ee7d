package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wonderclimb/internal/domain"
	"wonderclimb/internal/pkg/mailer"
	"wonderclimb/internal/repository"

	"go.uber.org/zap"
)

// ActivationIssuer hands out and redeems single-use email activation tokens.
type ActivationIssuer struct {
	tokens ActivationTokenStore
	ttl    time.Duration
	now    func() time.Time
}

func NewActivationIssuer(tokens ActivationTokenStore, ttl time.Duration) *ActivationIssuer {
	return &ActivationIssuer{
		tokens: tokens,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *ActivationIssuer) Issue(ctx context.Context, userID int64) (*domain.ActivationToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	t := &domain.ActivationToken{
		UserID:    userID,
		Token:     hex.EncodeToString(b),
		ExpiresAt: a.now().Add(a.ttl),
	}
	if err := a.tokens.Create(ctx, t); err != nil {
		return nil, storeErr("issue activation token", err)
	}
	return t, nil
}

// Consume marks the token used and returns its owner.
func (a *ActivationIssuer) Consume(ctx context.Context, presented string) (int64, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return 0, ErrActivationInvalid
	}
	t, err := a.tokens.GetByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrActivationInvalid
		}
		return 0, storeErr("load activation token", err)
	}

	now := a.now()
	if t.IsExpired(now) {
		return 0, ErrActivationExpired
	}
	if t.IsUsed() {
		return 0, ErrActivationUsed
	}

	won, err := a.tokens.Consume(ctx, t.ID, now)
	if err != nil {
		return 0, storeErr("consume activation token", err)
	}
	if !won {
		return 0, ErrActivationUsed
	}
	return t.UserID, nil
}

// InvalidateFor burns every outstanding token of the user.
func (a *ActivationIssuer) InvalidateFor(ctx context.Context, userID int64) error {
	if _, err := a.tokens.InvalidateForUser(ctx, userID, a.now()); err != nil {
		return storeErr("invalidate activation tokens", err)
	}
	return nil
}

// ActivationEmail holds the branding and template of the activation message.
type ActivationEmail struct {
	AppName     string
	FrontendURL string
	Subject     string
	Template    string
}

func (e ActivationEmail) link(token string) string {
	return strings.TrimRight(e.FrontendURL, "/") + "/activate?token=" + url.QueryEscape(token)
}

func (e ActivationEmail) build(u *domain.User, token string, ttl time.Duration) mailer.Message {
	vars := map[string]string{
		"firstName":      u.FirstName,
		"lastName":       u.LastName,
		"activationLink": e.link(token),
		"appName":        e.AppName,
		"expiryHours":    strconv.Itoa(int(ttl.Hours())),
	}
	// Names are user input; the HTML body gets them escaped.
	escaped := make(map[string]string, len(vars))
	for k, v := range vars {
		escaped[k] = html.EscapeString(v)
	}
	return mailer.Message{
		To:      u.Email,
		Subject: mailer.RenderTemplate(e.Subject, vars),
		HTML:    mailer.RenderTemplate(e.Template, escaped),
		Text:    mailer.PlainText(mailer.RenderTemplate(e.Template, vars)),
	}
}

// sendActivation issues a fresh token and mails it. The user status moves to
// email_sent only once the provider accepted the message.
func (s *Service) sendActivation(ctx context.Context, u *domain.User) error {
	t, err := s.activation.Issue(ctx, u.ID)
	if err != nil {
		return err
	}
	if s.opts.Development {
		s.logger.Info("activation link", zap.String("email", u.Email), zap.String("link", s.opts.ActivationEmail.link(t.Token)))
	}

	msg := s.opts.ActivationEmail.build(u, t.Token, s.opts.ActivationTTL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send activation email: %w", err)
	}
	if err := s.users.SetActivationStatus(ctx, u.ID, domain.ActivationEmailSent); err != nil {
		return storeErr("set activation status", err)
	}
	u.ActivationStatus = domain.ActivationEmailSent
	return nil
}
