package auth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateAccount   = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrUserNotFound       = errors.New("user not found")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrReusedToken  = errors.New("token reused")
	ErrAlreadyUsed  = errors.New("token already used")

	ErrInvalidState       = errors.New("invalid oauth state")
	ErrFederation         = errors.New("identity provider exchange failed")
	ErrFederationDisabled = errors.New("identity provider not configured")

	ErrTransientStore = errors.New("store unavailable")
)

// Flow-specific variants keep the taxonomy (errors.Is on the generic
// sentinel still matches) while letting the client see which case it hit.
var (
	ErrRefreshMissing = fmt.Errorf("refresh token missing: %w", ErrInvalidToken)
	ErrRefreshInvalid = fmt.Errorf("refresh token unknown: %w", ErrInvalidToken)
	ErrRefreshExpired = fmt.Errorf("refresh token: %w", ErrExpiredToken)
	ErrRefreshReused  = fmt.Errorf("refresh token: %w", ErrReusedToken)

	ErrActivationInvalid = fmt.Errorf("activation token unknown: %w", ErrInvalidToken)
	ErrActivationExpired = fmt.Errorf("activation token: %w", ErrExpiredToken)
	ErrActivationUsed    = fmt.Errorf("activation token: %w", ErrAlreadyUsed)
)

type apiError struct {
	Status  int
	Code    string
	Message string
}

// most specific first
var errorTable = []struct {
	err error
	api apiError
}{
	{ErrRefreshMissing, apiError{http.StatusUnauthorized, "REFRESH_TOKEN_MISSING", "Refresh token missing"}},
	{ErrRefreshInvalid, apiError{http.StatusUnauthorized, "REFRESH_TOKEN_INVALID", "Invalid refresh token"}},
	{ErrRefreshExpired, apiError{http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token expired"}},
	{ErrRefreshReused, apiError{http.StatusUnauthorized, "REFRESH_TOKEN_REUSED", "Refresh token has been revoked or already used"}},

	{ErrActivationInvalid, apiError{http.StatusBadRequest, "ACTIVATION_TOKEN_INVALID", "Invalid activation token"}},
	{ErrActivationExpired, apiError{http.StatusBadRequest, "ACTIVATION_TOKEN_EXPIRED", "Activation token expired"}},
	{ErrActivationUsed, apiError{http.StatusBadRequest, "ACTIVATION_TOKEN_USED", "Activation token already used"}},

	{ErrValidation, apiError{http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request"}},
	{ErrDuplicateAccount, apiError{http.StatusConflict, "EMAIL_EXISTS", "This email is already registered"}},
	{ErrInvalidCredentials, apiError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}},
	{ErrAccountInactive, apiError{http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is not active"}},
	{ErrUserNotFound, apiError{http.StatusNotFound, "USER_NOT_FOUND", "User not found"}},

	{ErrInvalidToken, apiError{http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token"}},
	{ErrExpiredToken, apiError{http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired"}},
	{ErrReusedToken, apiError{http.StatusUnauthorized, "TOKEN_REUSED", "Token has been revoked"}},
	{ErrAlreadyUsed, apiError{http.StatusBadRequest, "TOKEN_ALREADY_USED", "Token already used"}},

	{ErrInvalidState, apiError{http.StatusBadRequest, "INVALID_STATE", "Invalid OAuth state"}},
	{ErrFederationDisabled, apiError{http.StatusNotFound, "OAUTH_DISABLED", "Google sign-in is not configured"}},
	{ErrFederation, apiError{http.StatusBadGateway, "OAUTH_FAILED", "Identity provider exchange failed"}},

	{ErrTransientStore, apiError{http.StatusInternalServerError, "STORE_UNAVAILABLE", "Service temporarily unavailable, please retry"}},
}

// classify maps err onto the public taxonomy. ok is false for errors that
// must be reported as a generic internal failure.
func classify(err error) (apiError, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.api, true
		}
	}
	return apiError{}, false
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientStore, err)
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
