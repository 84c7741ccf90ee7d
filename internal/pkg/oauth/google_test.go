package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T, userinfo string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userinfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func providerFor(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(GoogleConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/api/v1/auth/google/callback",
		Endpoint:     &oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
		UserInfoURL:  srv.URL + "/userinfo",
		HTTPClient:   srv.Client(),
	})
}

func TestAuthCodeURL(t *testing.T) {
	srv := newFakeGoogle(t, `{}`)
	p := providerFor(srv)

	raw, err := p.AuthCodeURL("state-123")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestExchangeReturnsProfile(t *testing.T) {
	srv := newFakeGoogle(t, `{"sub":"g-1","email":" climber@example.com ","email_verified":true,"given_name":"Alex","family_name":"Honnold"}`)
	p := providerFor(srv)

	prof, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "g-1", prof.Subject)
	assert.Equal(t, "climber@example.com", prof.Email)
	assert.True(t, prof.EmailVerified)
	assert.Equal(t, "Alex", prof.GivenName)
	assert.Equal(t, "Honnold", prof.FamilyName)
}

func TestExchangeRequiresEmail(t *testing.T) {
	srv := newFakeGoogle(t, `{"sub":"g-1"}`)
	_, err := providerFor(srv).Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestExchangeBadCode(t *testing.T) {
	srv := newFakeGoogle(t, `{}`)
	_, err := providerFor(srv).Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestUnconfiguredProvider(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{})
	assert.False(t, p.Configured())

	_, err := p.AuthCodeURL("s")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = p.Exchange(context.Background(), "c")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
