// Package oauth talks to the Google identity provider: it builds the consent
// URL and turns an authorization code into a verified profile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var (
	ErrNotConfigured = errors.New("oauth: google provider is not configured")
	ErrNoEmail       = errors.New("oauth: provider returned no email")
)

type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Name          string `json:"name"`
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Overrides for tests.
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	client      *http.Client
}

func NewGoogleProvider(c GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if c.Endpoint != nil {
		endpoint = *c.Endpoint
	}
	userInfo := c.UserInfoURL
	if userInfo == "" {
		userInfo = DefaultUserInfoURL
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfo,
		client:      client,
	}
}

func (p *GoogleProvider) Configured() bool {
	return p != nil && p.cfg.ClientID != "" && p.cfg.ClientSecret != "" && p.cfg.RedirectURL != ""
}

func (p *GoogleProvider) AuthCodeURL(state string) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

// Exchange trades the authorization code for a token and fetches the profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth: code exchange: %w", err)
	}

	resp, err := p.cfg.Client(ctx, tok).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("oauth: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth: userinfo returned %d", resp.StatusCode)
	}

	var prof Profile
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		return nil, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	prof.Email = strings.TrimSpace(prof.Email)
	if prof.Email == "" {
		return nil, ErrNoEmail
	}
	return &prof, nil
}
