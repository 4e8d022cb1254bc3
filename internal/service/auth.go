package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/auth"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository"
)

// AuthService implements auth.Authenticator.
var _ auth.Authenticator = (*AuthService)(nil)

// AuthService is the business layer for login and session checks:
//
//	AuthHandler (HTTP) → AuthService → Providers (OAuth exchange)
//	                                 → UserDirectory (upsert)
//	                                 → TokenCodec (JWT)
//
// It never touches cookies, redirects or status codes; those belong to the
// handler.
type AuthService struct {
	providers auth.Providers
	directory *UserDirectory
	users     repository.UserRepository
	tokens    *auth.TokenCodec
	logger    *slog.Logger
}

func NewAuthService(
	providers auth.Providers,
	directory *UserDirectory,
	users repository.UserRepository,
	tokens *auth.TokenCodec,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		providers: providers,
		directory: directory,
		users:     users,
		tokens:    tokens,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user and their session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// AuthURL returns the provider's authorization URL for state.
func (s *AuthService) AuthURL(provider, state string) (string, error) {
	p, err := s.providers.Lookup(provider)
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// Login completes an OAuth callback:
//
//  1. exchange the code with the provider for a normalized identity
//  2. find or create the local account
//  3. stamp last_login_at
//  4. issue a session token
func (s *AuthService) Login(ctx context.Context, provider, code string) (*AuthResult, error) {
	p, err := s.providers.Lookup(provider)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperror.BadRequest("missing OAuth code")
	}

	identity, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %s exchange: %w", provider, err)
	}

	user, err := s.directory.FindOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: resolving user: %w", err)
	}

	user, err = s.directory.TouchLastLogin(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.Int64("userID", user.ID),
		slog.String("provider", string(user.Provider)),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user.
//
// A token that fails verification for any reason is 401 invalid_credential.
// A valid token whose subject no longer exists is 404 unknown_subject.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthenticated("invalid_credential", "could not validate credentials")
	}

	user, err := s.users.GetUserByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: "user not found with id " + strconv.FormatInt(claims.SubjectID, 10),
				Code:    "unknown_subject",
			}
		}
		return nil, fmt.Errorf("service/auth: loading user %d: %w", claims.SubjectID, err)
	}
	return user, nil
}
