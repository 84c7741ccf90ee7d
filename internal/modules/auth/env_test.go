package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wonderclimb/internal/database"
	"wonderclimb/internal/middleware"
	"wonderclimb/internal/pkg/jwt"
	"wonderclimb/internal/pkg/mailer"
	"wonderclimb/internal/pkg/oauth"
	"wonderclimb/internal/pkg/password"
	"wonderclimb/internal/pkg/validator"
	"wonderclimb/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	registerValidators sync.Once
	dbSeq              atomic.Int64
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) mailer.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email sent")
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

type fakeProvider struct {
	configured bool
	profile    *oauth.Profile
	err        error
}

func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) AuthCodeURL(state string) (string, error) {
	return "https://accounts.example.test/o/oauth2/auth?state=" + state, nil
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth.Profile, error) {
	if p.err != nil {
		return nil, p.err
	}
	if code != "good-code" {
		return nil, fmt.Errorf("invalid_grant")
	}
	return p.profile, nil
}

type testEnv struct {
	router      *gin.Engine
	service     *Service
	signer      *jwt.Service
	users       *repository.UserRepository
	refresh     *repository.RefreshTokenRepository
	activations *repository.ActivationTokenRepository
	mail        *captureMailer
	provider    *fakeProvider
}

type envOption func(*Options, *Deps)

func withActivation() envOption {
	return func(o *Options, _ *Deps) { o.ActivationEmailEnabled = true }
}

func withStates(s StateStore) envOption {
	return func(_ *Options, d *Deps) { d.States = s }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	registerValidators.Do(func() { require.NoError(t, validator.RegisterGinValidators()) })

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	h := database.NewHandle(fmt.Sprintf("file:auth_%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)), nil)
	db, err := h.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = h.Close() })

	env := &testEnv{
		signer:      jwt.New("test-secret", 15*time.Minute),
		users:       repository.NewUserRepository(h),
		refresh:     repository.NewRefreshTokenRepository(h),
		activations: repository.NewActivationTokenRepository(h),
		mail:        &captureMailer{},
		provider:    &fakeProvider{},
	}

	deps := Deps{
		Users:            env.users,
		RefreshTokens:    env.refresh,
		ActivationTokens: env.activations,
		Hasher:           password.NewHasher(bcrypt.MinCost),
		Signer:           env.signer,
		Mailer:           env.mail,
		Provider:         env.provider,
	}
	options := Options{
		RefreshTTL:         7 * 24 * time.Hour,
		RefreshTokenPepper: "test-pepper",
		ActivationTTL:      48 * time.Hour,
		ActivationEmail: ActivationEmail{
			AppName:     "WonderClimb",
			FrontendURL: "http://frontend.test",
			Subject:     "Activate your {appName} account",
			Template:    `<p>Hi {firstName}, open <a href="{activationLink}">this link</a> within {expiryHours} hours.</p>`,
		},
	}
	for _, o := range opts {
		o(&options, &deps)
	}

	env.service = NewService(deps, options, zap.NewNop())
	handler := NewHandler(env.service, CookieConfig{SameSite: "Lax", Path: "/api/v1/auth"}, "http://frontend.test", true, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.RegisterPublicRoutes(v1)
	handler.RegisterProtectedRoutes(v1.Group("", middleware.JWTAuth(env.signer)))
	env.router = r
	return env
}

type call struct {
	method string
	path   string
	body   any
	cookie *http.Cookie
	bearer string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, "/api/v1/auth"+c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func cookieFrom(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e := decode(t, w)["error"].(map[string]any)
	return e["message"].(string)
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"email":     email,
		"password":  "secret",
		"firstName": "A",
		"lastName":  "B",
	}
}

// loginCookie registers (activation off) and logs in, returning the refresh cookie.
func (e *testEnv) loginCookie(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := e.do(t, call{method: http.MethodPost, path: "/register", body: registerBody(email)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]any{"email": email, "password": "secret"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := cookieFrom(w, refreshCookieName)
	require.NotNil(t, c)
	return c
}
