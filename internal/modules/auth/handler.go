package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wonderclimb/internal/middleware"
	"wonderclimb/internal/pkg/response"
	"wonderclimb/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	refreshCookieName = "refreshToken"
	stateCookieName   = "oauthState"
)

type CookieConfig struct {
	Secure   bool
	SameSite string
	Path     string
}

// Handler exposes the auth flows over HTTP.
type Handler struct {
	service     *Service
	cookies     CookieConfig
	frontendURL string
	development bool
	logger      *zap.Logger
}

func NewHandler(service *Service, cookies CookieConfig, frontendURL string, development bool, logger *zap.Logger) *Handler {
	return &Handler{
		service:     service,
		cookies:     cookies,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		development: development,
		logger:      logger,
	}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/activate", h.Activate)
		authGroup.POST("/resend-activation", h.ResendActivation)
		authGroup.GET("/google", h.GoogleStart)
		authGroup.GET("/google/callback", h.GoogleCallback)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.Group("/auth").GET("/me", h.Me)
}

// Register creates an account.
// @Summary		Register
// @Description	Creates an account. Returns a session, or requiresActivation when email activation is on.
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	RegisterRequest	true	"payload"
// @Success		201	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.Register(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.RequiresActivation {
		response.Success(c, http.StatusCreated, gin.H{
			"requiresActivation": true,
			"message":            "Check your email to activate your account",
			"user":               toUserPublic(res.User),
		})
		return
	}

	h.setRefreshCookie(c, res.Session.RefreshToken)
	response.Success(c, http.StatusCreated, gin.H{
		"token": res.Session.AccessToken,
		"user":  toUserPublic(res.User),
	})
}

// Login
// @Summary		Login
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	LoginRequest	true	"credentials"
// @Success		200	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Failure		403	{object}	map[string]interface{}
// @Router		/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}

	sess, err := h.service.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"token": sess.AccessToken,
		"user":  toUserPublic(sess.User),
	})
}

// Refresh rotates the refresh token cookie and returns a new access token.
// @Summary		Refresh token
// @Tags		Auth
// @Produce		json
// @Success		200	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Router		/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookieName)

	sess, err := h.service.Refresh(c.Request.Context(), raw, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"accessToken": sess.AccessToken,
	})
}

// Logout revokes the refresh token from the cookie and clears it.
// @Summary		Logout
// @Tags		Auth
// @Success		200	{object}	map[string]interface{}
// @Router		/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookieName)
	if err := h.service.Logout(c.Request.Context(), raw); err != nil {
		h.logger.Error("logout: revoke failed", zap.Error(err))
	}

	h.clearCookie(c, refreshCookieName, h.cookies.Path)
	response.Success(c, http.StatusOK, gin.H{
		"message": "Logged out",
	})
}

// Activate
// @Summary		Activate account
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	ActivateRequest	true	"activation token"
// @Success		200	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Router		/auth/activate [post]
func (h *Handler) Activate(c *gin.Context) {
	var req ActivateRequest
	if !h.bind(c, &req) {
		return
	}

	sess, err := h.service.Activate(c.Request.Context(), req.Token, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"token": sess.AccessToken,
		"user":  toUserPublic(sess.User),
	})
}

// ResendActivation
// @Summary		Resend activation email
// @Tags		Auth
// @Accept		json
// @Param		body	body	ResendActivationRequest	true	"email"
// @Success		200	{object}	map[string]interface{}
// @Router		/auth/resend-activation [post]
func (h *Handler) ResendActivation(c *gin.Context) {
	var req ResendActivationRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.service.ResendActivation(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"message": "If an account with that email is awaiting activation, a new link has been sent",
	})
}

// Me
// @Summary		Current user
// @Tags		Auth
// @Security	BearerAuth
// @Produce		json
// @Success		200	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Router		/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	u, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": toUserPublic(u)})
}

// GoogleStart redirects the browser to Google's consent screen.
// @Summary		Google sign-in
// @Tags		Auth
// @Success		307
// @Router		/auth/google [get]
func (h *Handler) GoogleStart(c *gin.Context) {
	target, state, err := h.service.OAuthStart(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	// Lax so the cookie survives the top-level redirect back from Google.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, int(oauthStateTTL.Seconds()), h.callbackPath(), "", h.cookies.Secure, true)
	c.Redirect(http.StatusTemporaryRedirect, target)
}

// GoogleCallback finishes the authorization-code flow and hands the access
// token to the frontend.
// @Summary		Google callback
// @Tags		Auth
// @Param		code	query	string	true	"authorization code"
// @Param		state	query	string	true	"state"
// @Success		307
// @Router		/auth/google/callback [get]
func (h *Handler) GoogleCallback(c *gin.Context) {
	pinned, _ := c.Cookie(stateCookieName)
	h.clearCookie(c, stateCookieName, h.callbackPath())

	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Warn("oauth callback: provider returned error", zap.String("error", providerErr))
		h.redirectToFrontend(c, "error", "access_denied")
		return
	}

	sess, err := h.service.OAuthCallback(c.Request.Context(), c.Query("code"), c.Query("state"), pinned, c.ClientIP())
	if err != nil {
		code := "oauth_failed"
		switch {
		case errors.Is(err, ErrInvalidState):
			code = "invalid_state"
		case errors.Is(err, ErrAccountInactive):
			code = "account_inactive"
		}
		h.logger.Warn("oauth callback failed", zap.Error(err))
		h.redirectToFrontend(c, "error", code)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	h.redirectToFrontend(c, "token", sess.AccessToken)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validator.Messages(err))
		return false
	}
	return true
}

// fail writes err using the public taxonomy. Unclassified errors are logged
// in full and only described to the client in development.
func (h *Handler) fail(c *gin.Context, err error) {
	if api, ok := classify(err); ok {
		if api.Status >= http.StatusInternalServerError {
			h.logger.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		msg := api.Message
		if errors.Is(err, ErrValidation) {
			msg = strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
		}
		response.Error(c, api.Status, api.Code, msg)
		return
	}

	h.logger.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err), zap.Stack("stack"))
	if h.development {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(parseSameSite(h.cookies.SameSite))
	c.SetCookie(refreshCookieName, token, int(h.service.RefreshTTL()/time.Second), h.cookies.Path, "", h.cookies.Secure, true)
}

func (h *Handler) clearCookie(c *gin.Context, name, path string) {
	c.SetSameSite(parseSameSite(h.cookies.SameSite))
	c.SetCookie(name, "", -1, path, "", h.cookies.Secure, true)
}

func (h *Handler) callbackPath() string {
	return strings.TrimRight(h.cookies.Path, "/") + "/google/callback"
}

func (h *Handler) redirectToFrontend(c *gin.Context, key, value string) {
	q := url.Values{}
	q.Set(key, value)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth/callback?"+q.Encode())
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
