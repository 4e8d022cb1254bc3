package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/auth"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/service"
)

const (
	stateCookieName   = "oauth_state"
	stateCookieMaxAge = 600 // 10 minutes
)

// LoginService is the part of service.AuthService the auth handler needs.
type LoginService interface {
	AuthURL(provider, state string) (string, error)
	Login(ctx context.Context, provider, code string) (*service.AuthResult, error)
}

// AuthHandler drives the browser side of the OAuth login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to the provider's consent page
//   - HandleCallback → verify state, log in, hand the token to the frontend
//   - HandleMe       → return the authenticated user's profile
//   - HandleLogout   → acknowledge; sessions are stateless bearer tokens
type AuthHandler struct {
	auth          LoginService
	frontendURL   string
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. frontendURL is where a successful
// callback sends the browser; secureCookies marks the state cookie Secure.
func NewAuthHandler(svc LoginService, frontendURL string, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          svc,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleLogin redirects to the provider's authorization page.
//
// HTTP: GET /auth/login/{provider} (and the older /auth/signin/{provider})
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and
// into the authorization URL. The callback only proceeds when the two
// match, which proves this browser started the flow.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := xid.New().String()

	target, err := h.auth.AuthURL(provider, state)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/callback/{provider}?code=xxx&state=yyy
//
// FLOW:
//  1. check the state parameter against the cookie, then clear the cookie
//  2. surface a provider-side error (e.g. the user denied access)
//  3. exchange the code, upsert the user, issue a token
//  4. 303 to {frontend}/auth/success?token=...
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", provider))
		writeError(h.logger, w, apperror.BadRequest("invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := q.Get("error"); errParam != "" {
		reason := errParam
		if desc := q.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		h.logger.Info("auth callback: provider returned an error",
			slog.String("provider", provider),
			slog.String("error", reason),
		)
		writeError(h.logger, w, apperror.UpstreamAuth(provider, errors.New(reason)))
		return
	}

	res, err := h.auth.Login(r.Context(), provider, q.Get("code"))
	if err != nil {
		h.logger.Warn("auth callback: login failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		writeError(h.logger, w, err)
		return
	}

	http.Redirect(w, r, h.successURL(res.Token), http.StatusSeeOther)
}

func (h *AuthHandler) successURL(token string) string {
	return h.frontendURL + "/auth/success?" + url.Values{"token": {token}}.Encode()
}

// ProfileResponse is the body of GET /auth/me. The provider-side account
// id stays internal.
type ProfileResponse struct {
	ID          int64          `json:"id"`
	Email       string         `json:"email"`
	Username    string         `json:"username"`
	FullName    *string        `json:"full_name"`
	AvatarURL   *string        `json:"avatar_url"`
	Provider    model.Provider `json:"provider"`
	IsActive    bool           `json:"is_active"`
	IsVerified  bool           `json:"is_verified"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	LastLoginAt *time.Time     `json:"last_login_at"`
}

func newProfileResponse(u *model.User) ProfileResponse {
	return ProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		AvatarURL:   u.AvatarURL,
		Provider:    u.Provider,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /auth/me
// Auth: required; RequireAuth has already loaded the user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, apperror.Unauthenticated("missing_credential", "a bearer token is required"))
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(user))
}

// HandleLogout acknowledges a logout.
//
// HTTP: POST /auth/logout
//
// Tokens are not tracked server-side, so there is nothing to revoke; the
// client drops its token and it expires on its own.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}
